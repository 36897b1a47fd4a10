package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/medminder/internal/infrastructure/config"
)

// Client is the medminder connection to the broker.
//
// Received messages are queued and handled one at a time on a worker owned by
// the client, never on paho's router. A handler may therefore publish and
// wait for the acknowledgement without stalling inbound traffic.
//
// All methods are safe for concurrent use.
type Client struct {
	conn   pahomqtt.Client
	cfg    config.MQTTConfig
	online atomic.Bool
	in     *inbox

	// mu guards routes, hooks and log.
	mu     sync.RWMutex
	routes map[string]route
	hooks  hooks
	log    Logger
}

// Logger is the optional logger for handler failures and connection changes.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type hooks struct {
	up   func()
	down func(err error)
}

// Connect dials the broker with the LWT registered, starts the inbound
// worker, and returns once the first connection is up.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		routes: make(map[string]route),
		in:     newInbox(inboxSize),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) })
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, o *pahomqtt.ClientOptions) {
		c.logger().Info("reconnecting to MQTT broker", "servers", len(o.Servers))
	})

	c.in.start(c.dispatch)
	c.conn = pahomqtt.NewClient(opts)

	tok := c.conn.Connect()
	if !tok.WaitTimeout(defaultConnectTimeout) {
		c.in.stop()
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		c.in.stop()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// OnConnect fires asynchronously; callers may subscribe straight away.
	c.online.Store(true)
	return c, nil
}

// connected runs on every (re)connect: restore routes, announce online, then
// call the user hook.
func (c *Client) connected() {
	c.online.Store(true)

	c.mu.RLock()
	for _, r := range c.routes {
		c.conn.Subscribe(r.topic, r.qos, c.receive(r.handler))
	}
	up := c.hooks.up
	c.mu.RUnlock()

	c.conn.Publish(Topics{}.SystemStatus(), c.QoS(), true, buildOnlinePayload(c.cfg.Broker.ClientID))

	if up != nil {
		up()
	}
}

func (c *Client) lost(err error) {
	c.online.Store(false)
	c.logger().Warn("MQTT connection lost", "error", err)

	c.mu.RLock()
	down := c.hooks.down
	c.mu.RUnlock()
	if down != nil {
		down(err)
	}
}

// Close announces a graceful offline status, disconnects, and waits for the
// handler in flight, if any.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if c.IsConnected() {
		c.conn.Publish(Topics{}.SystemStatus(), c.QoS(), true, buildOfflinePayload(c.cfg.Broker.ClientID)).
			WaitTimeout(defaultPublishTimeout)
	}
	c.conn.Disconnect(defaultDisconnectQuiesce)
	c.online.Store(false)

	if c.in != nil {
		c.in.stop()
	}
	return nil
}

// HealthCheck fails with ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.online.Load() && c.conn.IsConnected()
}

// SetOnConnect sets fn to run after every (re)connect.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.hooks.up = fn
	c.mu.Unlock()
}

// SetOnDisconnect sets fn to run when the connection drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.hooks.down = fn
	c.mu.Unlock()
}

// SetLogger sets the logger. Without one, messages are discarded.
func (c *Client) SetLogger(l Logger) {
	c.mu.Lock()
	c.log = l
	c.mu.Unlock()
}

func (c *Client) logger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.log == nil {
		return discard{}
	}
	return c.log
}

type discard struct{}

func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}
