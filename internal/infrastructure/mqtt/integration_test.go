//go:build integration

package mqtt

import (
	"errors"
	"testing"
	"time"
)

// Integration tests need a broker at 127.0.0.1:1883.
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...

func TestIntegration_Connect(t *testing.T) {
	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}

func TestIntegration_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_Roundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "medminder-int-roundtrip"
	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	received := make(chan []byte, 1)
	topic := Topics{}.Service("integration_test")
	if err := client.Subscribe(topic, 1, func(_ string, p []byte) error {
		received <- p
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if got := client.Subscribed(); len(got) != 1 || got[0] != topic {
		t.Errorf("Subscribed() = %v, want [%s]", got, topic)
	}

	if err := client.PublishJSON(topic, map[string]string{"medication_id": "aspirin"}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case p := <-received:
		if string(p) != `{"medication_id":"aspirin"}` {
			t.Errorf("payload = %s", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	if err := client.Unsubscribe(topic); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if len(client.Subscribed()) != 0 {
		t.Error("subscription should be removed")
	}
}
