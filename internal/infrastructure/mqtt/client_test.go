package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/medminder/internal/infrastructure/config"
)

// testConfig returns an MQTT configuration pointing at a local broker.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "medminder-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

type mockLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *mockLogger) Info(string, ...any) {}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name, got, want string
	}{
		{"Notify", topics.Notify(), "medminder/notify"},
		{"Event", topics.Event("medication_updated"), "medminder/event/medication_updated"},
		{"State", topics.State("home", "aspirin"), "medminder/state/home/aspirin"},
		{"SystemStatus", topics.SystemStatus(), "medminder/system/status"},
		{"ServiceRecordDose", topics.ServiceRecordDose(), "medminder/service/record_dose"},
		{"ServiceUpdateInventory", topics.ServiceUpdateInventory(), "medminder/service/update_inventory"},
		{"TagScanned", topics.TagScanned(), "medminder/event/tag_scanned"},
		{"AllStates", topics.AllStates(), "medminder/state/+/+"},
		{"AllEvents", topics.AllEvents(), "medminder/event/+"},
		{"AllTopics", topics.AllTopics(), "medminder/#"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "user", Password: "pass"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "medminder-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "user" || opts.Password != "pass" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("expected auto-reconnect and clean session")
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS should not be configured when disabled")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)
	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config should enforce the minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "medminder-test")

	if !opts.WillEnabled || opts.WillTopic != "medminder/system/status" || !opts.WillRetained {
		t.Errorf("will = enabled:%v topic:%q retained:%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}

	var p statusPayload
	if err := json.Unmarshal(opts.WillPayload, &p); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if p.Status != "offline" || p.Reason != "unexpected_disconnect" || p.ClientID != "medminder-test" {
		t.Errorf("will payload = %+v", p)
	}
}

func TestStatusPayloads(t *testing.T) {
	var online, offline statusPayload
	if err := json.Unmarshal(buildOnlinePayload("c1"), &online); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(buildOfflinePayload("c1"), &offline); err != nil {
		t.Fatal(err)
	}
	if online.Status != "online" || online.Reason != "" {
		t.Errorf("online = %+v", online)
	}
	if offline.Status != "offline" || offline.Reason != "graceful_shutdown" {
		t.Errorf("offline = %+v", offline)
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestDisconnectedClient(t *testing.T) {
	c := &Client{}
	handler := func(string, []byte) error { return nil }

	if c.IsConnected() {
		t.Error("IsConnected() should be false for an unconnected client")
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", c.Publish("", nil, 1, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("t", nil, 3, false), ErrInvalidQoS},
		{"publish too large", c.Publish("t", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"publish disconnected", c.Publish("t", []byte("x"), 1, false), ErrNotConnected},
		{"publish json disconnected", c.PublishJSON("t", map[string]int{"a": 1}, false), ErrNotConnected},
		{"publish json unmarshalable", c.PublishJSON("t", func() {}, false), ErrPublishFailed},
		{"subscribe empty topic", c.Subscribe("", 1, handler), ErrInvalidTopic},
		{"subscribe bad qos", c.Subscribe("t", 5, handler), ErrInvalidQoS},
		{"subscribe nil handler", c.Subscribe("t", 1, nil), ErrSubscribeFailed},
		{"subscribe disconnected", c.Subscribe("t", 1, handler), ErrNotConnected},
		{"unsubscribe empty topic", c.Unsubscribe(""), ErrInvalidTopic},
		{"unsubscribe disconnected", c.Unsubscribe("t"), ErrNotConnected},
		{"health", c.HealthCheck(context.Background()), ErrNotConnected},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.name, tt.err, tt.want)
		}
	}

	if len(c.Subscribed()) != 0 {
		t.Error("failed subscribe should not be tracked")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (&Client{}).HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Inbound Delivery Tests
// =============================================================================

func TestDispatch_RecoversPanicAndLogsErrors(t *testing.T) {
	logger := &mockLogger{}
	c := &Client{}
	c.SetLogger(logger)

	c.dispatch(delivery{topic: "medminder/x", handler: func(string, []byte) error { panic("boom") }})
	c.dispatch(delivery{topic: "medminder/x", handler: func(string, []byte) error { return errors.New("bad payload") }})

	var got []byte
	c.dispatch(delivery{topic: "medminder/x", payload: []byte("ok"), handler: func(_ string, p []byte) error {
		got = p
		return nil
	}})

	if len(logger.errs) != 1 || len(logger.warns) != 1 {
		t.Errorf("errs=%v warns=%v, want one each", logger.errs, logger.warns)
	}
	if string(got) != "ok" {
		t.Errorf("payload = %q, want ok", got)
	}
}

// A handler that blocks, as one waiting on a QoS 1 acknowledgement would,
// must not hold up the receive path; later messages queue behind it in order.
func TestEnqueueDoesNotWaitForHandler(t *testing.T) {
	c := &Client{in: newInbox(4)}
	c.in.start(c.dispatch)
	defer c.in.stop()

	release := make(chan struct{})
	handled := make(chan string, 4)
	h := func(_ string, p []byte) error {
		if string(p) == "first" {
			<-release
		}
		handled <- string(p)
		return nil
	}

	returned := make(chan struct{})
	go func() {
		for _, p := range []string{"first", "second", "third"} {
			c.enqueue(delivery{topic: "medminder/service/record_dose", payload: []byte(p), handler: h})
		}
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked behind a running handler")
	}

	close(release)
	for _, want := range []string{"first", "second", "third"} {
		select {
		case got := <-handled:
			if got != want {
				t.Fatalf("handled %q, want %q", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("%q not handled", want)
		}
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	logger := &mockLogger{}
	c := &Client{in: newInbox(1)}
	c.SetLogger(logger)

	noop := func(string, []byte) error { return nil }
	// No worker is running, so the second delivery finds the queue full.
	c.enqueue(delivery{topic: "a", handler: noop})
	c.enqueue(delivery{topic: "b", handler: noop})

	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one drop warning", logger.warns)
	}

	c.in.stop()
	if c.in.put(delivery{topic: "c", handler: noop}) {
		t.Error("put() after stop accepted a delivery")
	}
}

func TestCallbacksRegistered(t *testing.T) {
	c := &Client{}
	c.SetOnConnect(func() {})
	c.SetOnDisconnect(func(error) {})

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.hooks.up == nil || c.hooks.down == nil {
		t.Error("callbacks should be stored")
	}
}
