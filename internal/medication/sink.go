package medication

import (
	"context"
	"time"
)

// Logger defines the logging interface used throughout this package.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NotificationKind classifies a user-facing message.
type NotificationKind string

// Notification kinds.
const (
	KindReminder         NotificationKind = "reminder"
	KindLowInventory     NotificationKind = "low_inventory"
	KindDoctorReminder   NotificationKind = "doctor_reminder"
	KindAlreadyTaken     NotificationKind = "already_taken"
	KindDoseRecorded     NotificationKind = "dose_recorded"
	KindInventoryUpdated NotificationKind = "inventory_updated"
)

// Notification is a message for the people being reminded.
type Notification struct {
	EntryID      string           `json:"entry_id"`
	MedicationID string           `json:"medication_id"`
	Kind         NotificationKind `json:"kind"`
	Message      string           `json:"message"`
	Timestamp    time.Time        `json:"timestamp"`
}

// Notifier delivers notifications. Delivery is best-effort: the Manager logs
// a returned error and carries on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// EventType names a state-change event.
type EventType string

// Event types.
const (
	EventMedicationUpdated EventType = "medication_updated"
	EventStatusReset       EventType = "status_reset"
)

// Cause records which operation produced a medication_updated event.
type Cause string

// Causes.
const (
	CauseDose      Cause = "dose"
	CauseInventory Cause = "inventory"
	CauseReset     Cause = "reset"
)

// Event is published after every state mutation, for UI refresh and mirrors.
type Event struct {
	Type         EventType `json:"type"`
	Cause        Cause     `json:"cause"`
	EntryID      string    `json:"entry_id"`
	MedicationID string    `json:"medication_id"`
	Source       Source    `json:"source,omitempty"`
	State        State     `json:"state"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher receives state-change events. Failures are logged, never propagated.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// SavedState is the persisted runtime portion of a medication.
type SavedState struct {
	EntryID          string
	MedicationID     string
	Inventory        int
	DosesToday       int
	RefillsRemaining int
	LastDose         *time.Time
	SavedAt          time.Time

	// ConfiguredInventory and ConfiguredRefills are the configured values the
	// counters started from. Nil when the store predates them.
	ConfiguredInventory *int
	ConfiguredRefills   *int
}

// DoseRecord is one entry in the dose history.
type DoseRecord struct {
	ID             string
	EntryID        string
	MedicationID   string
	PersonID       string
	Source         Source
	TakenAt        time.Time
	InventoryAfter int
	DosesToday     int
}

// Store persists runtime state and dose history across restarts.
type Store interface {
	SaveState(ctx context.Context, st SavedState) error
	LoadStates(ctx context.Context, entryID string) ([]SavedState, error)
	AppendDose(ctx context.Context, rec DoseRecord) error
}
