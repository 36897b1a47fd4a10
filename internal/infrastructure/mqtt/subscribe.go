package mqtt

import (
	"fmt"
	"slices"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// inboxSize is how many received messages may wait for the handler worker.
const inboxSize = 64

// MessageHandler handles one received message. A returned error is logged;
// the message is acknowledged either way.
type MessageHandler func(topic string, payload []byte) error

type route struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Subscribe routes messages on topic (wildcards allowed) to h. The route is
// kept and re-subscribed after every reconnect.
//
//	err := client.Subscribe(mqtt.Topics{}.TagScanned(), 1,
//	    func(topic string, payload []byte) error {
//	        return svc.HandleTag(payload)
//	    })
func (c *Client) Subscribe(topic string, qos byte, h MessageHandler) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case h == nil:
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	case !c.IsConnected():
		return ErrNotConnected
	}

	c.mu.Lock()
	if c.routes == nil {
		c.routes = make(map[string]route)
	}
	c.routes[topic] = route{topic: topic, qos: qos, handler: h}
	c.mu.Unlock()

	if err := wait(c.conn.Subscribe(topic, qos, c.receive(h)), ErrSubscribeFailed); err != nil {
		c.dropRoute(topic)
		return err
	}
	return nil
}

// Unsubscribe removes the route for topic. Messages already queued are still
// handled.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.dropRoute(topic)
	return wait(c.conn.Unsubscribe(topic), ErrUnsubscribeFailed)
}

// Subscribed lists the routed topics in sorted order.
func (c *Client) Subscribed() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.routes))
	for topic := range c.routes {
		out = append(out, topic)
	}
	slices.Sort(out)
	return out
}

func (c *Client) dropRoute(topic string) {
	c.mu.Lock()
	delete(c.routes, topic)
	c.mu.Unlock()
}

// wait blocks on tok for at most defaultPublishTimeout and wraps any failure
// in sentinel.
func wait(tok pahomqtt.Token, sentinel error) error {
	if !tok.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, defaultPublishTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}

// receive is the paho callback for h. It only queues the message.
func (c *Client) receive(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.enqueue(delivery{topic: msg.Topic(), payload: msg.Payload(), handler: h})
	}
}

// enqueue hands d to the worker. A full queue drops d with a warning. A
// client without an inbox handles d inline.
func (c *Client) enqueue(d delivery) {
	if c.in == nil {
		c.dispatch(d)
		return
	}
	if !c.in.put(d) {
		c.logger().Warn("MQTT inbound queue full, message dropped", "topic", d.topic)
	}
}

// dispatch runs one handler, logging its error and recovering a panic.
func (c *Client) dispatch(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger().Error("MQTT handler panic recovered", "topic", d.topic, "panic", r)
		}
	}()
	if err := d.handler(d.topic, d.payload); err != nil {
		c.logger().Warn("MQTT handler returned error", "topic", d.topic, "error", err)
	}
}

type delivery struct {
	topic   string
	payload []byte
	handler MessageHandler
}

// inbox is a bounded FIFO drained by a single worker goroutine.
type inbox struct {
	queue chan delivery
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func newInbox(size int) *inbox {
	return &inbox{queue: make(chan delivery, size), done: make(chan struct{})}
}

func (b *inbox) start(handle func(delivery)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.done:
				return
			case d := <-b.queue:
				handle(d)
			}
		}
	}()
}

// put queues d without blocking and reports whether it was accepted.
func (b *inbox) put(d delivery) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.queue <- d:
		return true
	default:
		return false
	}
}

// stop ends the worker after the delivery in progress. Queued deliveries
// are discarded. Safe to call more than once.
func (b *inbox) stop() {
	b.once.Do(func() {
		close(b.done)
		b.wg.Wait()
	})
}
