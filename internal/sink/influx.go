package sink

import (
	"context"
	"time"

	"github.com/nerrad567/medminder/internal/infrastructure/influxdb"
	"github.com/nerrad567/medminder/internal/medication"
)

// pointRecorder is satisfied by *influxdb.Client.
type pointRecorder interface {
	WriteDose(p influxdb.DosePoint)
	WriteInventory(entryID, medicationID string, inventory, refills int, low bool, ts time.Time)
	WriteNotification(entryID, medicationID, kind string, ts time.Time)
}

// InfluxRecorder turns events and notifications into time-series points.
// It is both a Publisher and a Notifier.
type InfluxRecorder struct {
	w pointRecorder
}

// NewInfluxRecorder returns a recorder over an InfluxDB client.
func NewInfluxRecorder(w pointRecorder) *InfluxRecorder {
	return &InfluxRecorder{w: w}
}

// Publish writes an inventory point for every event and a dose point
// for dose events.
func (r *InfluxRecorder) Publish(_ context.Context, ev medication.Event) error {
	st := ev.State
	if ev.Cause == medication.CauseDose {
		r.w.WriteDose(influxdb.DosePoint{
			EntryID:        ev.EntryID,
			MedicationID:   ev.MedicationID,
			PersonID:       st.PersonID,
			Source:         string(ev.Source),
			InventoryAfter: st.Inventory,
			DosesToday:     st.DosesToday,
			DosesPerDay:    st.DosesPerDay,
			Time:           ev.Timestamp,
		})
	}
	r.w.WriteInventory(ev.EntryID, ev.MedicationID, st.Inventory, st.RefillsRemaining, st.IsLow, ev.Timestamp)
	return nil
}

// Notify counts the notification by kind.
func (r *InfluxRecorder) Notify(_ context.Context, n medication.Notification) error {
	r.w.WriteNotification(n.EntryID, n.MedicationID, string(n.Kind), n.Timestamp)
	return nil
}
