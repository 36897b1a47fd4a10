package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDose         = "medication_dose"
	MeasurementInventory    = "medication_inventory"
	MeasurementNotification = "medication_notification"
)

// DosePoint describes one recorded dose.
type DosePoint struct {
	EntryID        string
	MedicationID   string
	PersonID       string
	Source         string
	InventoryAfter int
	DosesToday     int
	DosesPerDay    int
	Time           time.Time
}

// WriteDose records a dose. Tags are entry, medication, person and source.
func (c *Client) WriteDose(p DosePoint) {
	tags := map[string]string{
		"entry_id":      p.EntryID,
		"medication_id": p.MedicationID,
		"source":        p.Source,
	}
	if p.PersonID != "" {
		tags["person_id"] = p.PersonID
	}
	c.writePoint(MeasurementDose, tags, map[string]any{
		"count":           1,
		"inventory_after": p.InventoryAfter,
		"doses_today":     p.DosesToday,
		"doses_per_day":   p.DosesPerDay,
	}, p.Time)
}

// WriteInventory records the stock level after any state change.
func (c *Client) WriteInventory(entryID, medicationID string, inventory, refills int, low bool, ts time.Time) {
	c.writePoint(MeasurementInventory, map[string]string{
		"entry_id":      entryID,
		"medication_id": medicationID,
	}, map[string]any{
		"inventory":         inventory,
		"refills_remaining": refills,
		"is_low":            low,
	}, ts)
}

// WriteNotification counts a delivered notification by kind.
func (c *Client) WriteNotification(entryID, medicationID, kind string, ts time.Time) {
	c.writePoint(MeasurementNotification, map[string]string{
		"entry_id":      entryID,
		"medication_id": medicationID,
		"kind":          kind,
	}, map[string]any{"count": 1}, ts)
}

// WritePoint writes an arbitrary point. A zero ts means now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	c.writePoint(measurement, tags, fields, ts)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	if ts.IsZero() {
		ts = c.now()
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
