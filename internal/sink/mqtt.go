package sink

import (
	"context"
	"errors"

	"github.com/nerrad567/medminder/internal/infrastructure/mqtt"
	"github.com/nerrad567/medminder/internal/medication"
)

// jsonPublisher is satisfied by *mqtt.Client.
type jsonPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// MQTTNotifier publishes notifications to medminder/notify.
type MQTTNotifier struct {
	client jsonPublisher
	topics mqtt.Topics
}

// NewMQTTNotifier returns a notifier over an MQTT client.
func NewMQTTNotifier(client jsonPublisher) *MQTTNotifier {
	return &MQTTNotifier{client: client}
}

// Notify implements medication.Notifier.
func (n *MQTTNotifier) Notify(_ context.Context, msg medication.Notification) error {
	return n.client.PublishJSON(n.topics.Notify(), msg, false)
}

// MQTTPublisher publishes each event to medminder/event/{type} and the
// medication state, retained, to medminder/state/{entry}/{medication}.
type MQTTPublisher struct {
	client jsonPublisher
	topics mqtt.Topics
}

// NewMQTTPublisher returns a publisher over an MQTT client.
func NewMQTTPublisher(client jsonPublisher) *MQTTPublisher {
	return &MQTTPublisher{client: client}
}

// Publish implements medication.Publisher.
func (p *MQTTPublisher) Publish(_ context.Context, ev medication.Event) error {
	evErr := p.client.PublishJSON(p.topics.Event(string(ev.Type)), ev, false)
	stErr := p.client.PublishJSON(p.topics.State(ev.EntryID, ev.MedicationID), ev.State, true)
	return errors.Join(evErr, stErr)
}
