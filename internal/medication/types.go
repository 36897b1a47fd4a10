package medication

import (
	"fmt"
	"strings"
	"time"
)

// Status is the derived daily-intake status of a medication.
type Status string

// Status values.
const (
	StatusNotTaken       Status = "not_taken"
	StatusPartiallyTaken Status = "partially_taken"
	StatusTaken          Status = "taken"
)

// Source identifies what triggered a dose record.
type Source string

// Dose sources.
const (
	SourceAPI  Source = "api"
	SourceMQTT Source = "mqtt"
	SourceNFC  Source = "nfc"
	SourceCLI  Source = "cli"
)

// Default values applied when neither the options override nor the
// medication declaration supplies a field.
const (
	DefaultDosesPerDay             = 1
	DefaultRefillsRemaining        = 0
	DefaultLowInventoryThreshold   = 7
	DefaultDoctorReminderThreshold = 14
	DefaultInventory               = 30
	DefaultDosage                  = 1
	DefaultDoseTime                = "08:00:00"
)

// Person is someone medications can be assigned to.
type Person struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	MedicationIDs []string `json:"medication_ids"`
}

// Medication is one tracked medication and its runtime counters.
//
// ID, Name, NFCID, PersonID, Dosage, DoseTime, DosesPerDay and both thresholds
// are fixed once the registry is built. The remaining fields are mutated only
// by a Manager while it holds its lock.
type Medication struct {
	ID                      string
	Name                    string
	NFCID                   string
	PersonID                string
	Dosage                  int
	DoseTime                string
	DosesPerDay             int
	LowInventoryThreshold   int
	DoctorReminderThreshold int

	Inventory        int
	DosesToday       int
	RefillsRemaining int
	LastDose         *time.Time

	displayName string
	configured  baseline
}

// baseline is the inventory and refill count a medication was built with.
type baseline struct {
	inventory int
	refills   int
}

// Status derives the intake status from the dose counters.
func (m *Medication) Status() Status {
	switch {
	case m.DosesToday >= m.DosesPerDay:
		return StatusTaken
	case m.DosesToday > 0:
		return StatusPartiallyTaken
	default:
		return StatusNotTaken
	}
}

// DisplayName is "{person}'s {medication}" when a person is assigned, else the name.
func (m *Medication) DisplayName() string {
	if m.displayName != "" {
		return m.displayName
	}
	return m.Name
}

// IsLow reports whether inventory is at or below the low threshold.
func (m *Medication) IsLow() bool {
	return m.Inventory <= m.LowInventoryThreshold
}

// State builds the external view of m for entryID.
func (m *Medication) State(entryID string) State {
	st := State{
		EntryID:                 entryID,
		ID:                      m.ID,
		Name:                    m.Name,
		DisplayName:             m.DisplayName(),
		PersonID:                m.PersonID,
		Status:                  m.Status(),
		Inventory:               m.Inventory,
		Dosage:                  m.Dosage,
		DoseTime:                m.DoseTime,
		DosesToday:              m.DosesToday,
		DosesPerDay:             m.DosesPerDay,
		LowInventoryThreshold:   m.LowInventoryThreshold,
		DoctorReminderThreshold: m.DoctorReminderThreshold,
		RefillsRemaining:        m.RefillsRemaining,
		IsLow:                   m.IsLow(),
		HasNFCTag:               m.NFCID != "",
	}
	if m.LastDose != nil {
		t := *m.LastDose
		st.LastDose = &t
	}
	return st
}

// State is an immutable snapshot of a medication for display and publishing.
// It never carries the raw NFC tag identifier.
type State struct {
	EntryID                 string     `json:"entry_id"`
	ID                      string     `json:"id"`
	Name                    string     `json:"name"`
	DisplayName             string     `json:"display_name"`
	PersonID                string     `json:"person_id,omitempty"`
	Status                  Status     `json:"status"`
	Inventory               int        `json:"inventory"`
	Dosage                  int        `json:"dosage"`
	DoseTime                string     `json:"dose_time"`
	DosesToday              int        `json:"doses_today"`
	DosesPerDay             int        `json:"doses_per_day"`
	LowInventoryThreshold   int        `json:"low_inventory_threshold"`
	DoctorReminderThreshold int        `json:"doctor_reminder_threshold"`
	RefillsRemaining        int        `json:"refills_remaining"`
	LastDose                *time.Time `json:"last_dose,omitempty"`
	IsLow                   bool       `json:"is_low"`
	HasNFCTag               bool       `json:"has_nfc_tag"`
}

// DoseResult reports the outcome of RecordDose.
// Recorded is false when the daily target had already been reached.
type DoseResult struct {
	Recorded bool  `json:"recorded"`
	State    State `json:"state"`
}

// doseTimeLayouts are the accepted wall-clock formats, most specific first.
var doseTimeLayouts = []string{"15:04:05", "15:04"}

// ParseDoseTime parses an "HH:MM:SS" (or "HH:MM") wall-clock string and
// returns the offset from midnight.
func ParseDoseTime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	for _, layout := range doseTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDoseTime, s)
}

// scheduledAt returns the instant on now's calendar day (in now's location)
// at the given offset from midnight.
func scheduledAt(now time.Time, offset time.Duration) time.Time {
	y, mo, d := now.Date()
	h := int(offset / time.Hour)
	mi := int(offset % time.Hour / time.Minute)
	s := int(offset % time.Minute / time.Second)
	return time.Date(y, mo, d, h, mi, s, 0, now.Location())
}

// sameDay reports whether a and b fall on the same calendar date in loc.
func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
