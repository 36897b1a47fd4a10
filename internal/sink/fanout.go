package sink

import (
	"context"
	"errors"

	"github.com/nerrad567/medminder/internal/medication"
)

// Fanout delivers each event to every publisher in order.
type Fanout []medication.Publisher

// Publish calls every publisher and joins their errors.
func (f Fanout) Publish(ctx context.Context, ev medication.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyFanout delivers each notification to every notifier in order.
type NotifyFanout []medication.Notifier

// Notify calls every notifier and joins their errors.
func (f NotifyFanout) Notify(ctx context.Context, n medication.Notification) error {
	var errs []error
	for _, nt := range f {
		if nt == nil {
			continue
		}
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notifications to the log. It is the fallback when
// no MQTT broker is configured.
type LogNotifier struct {
	Logger medication.Logger
}

// Notify implements medication.Notifier.
func (l LogNotifier) Notify(_ context.Context, n medication.Notification) error {
	if l.Logger == nil {
		return nil
	}
	l.Logger.Info("notification",
		"entry_id", n.EntryID,
		"medication_id", n.MedicationID,
		"kind", n.Kind,
		"message", n.Message,
	)
	return nil
}
