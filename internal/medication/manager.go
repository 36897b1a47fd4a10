package medication

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// sideEffectTimeout bounds the notify, publish and persist calls of one
// transaction.
const sideEffectTimeout = 10 * time.Second

// ManagerOptions carries the collaborators of a Manager. Every field is optional.
type ManagerOptions struct {
	Notifier  Notifier
	Publisher Publisher
	Store     Store
	Logger    Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Location is the household's wall-clock zone for dose times and
	// day boundaries. Defaults to time.Local.
	Location *time.Location
}

// Manager is the per-entry context object. It owns the registry's mutable state
// and serialises every mutation behind a single lock.
//
// The lock is not re-entrant. Code running under it must never call back into
// RecordDose, UpdateInventory, ScheduleCheck or DailyReset; tag scans reach
// RecordDose through a Dispatcher for that reason.
//
// Notifications and events are sent while the lock is held. Their failures
// are logged and never roll back a mutation. They run under a context that
// ignores the caller's cancellation.
type Manager struct {
	entryID  string
	registry *Registry

	notifier  Notifier
	publisher Publisher
	store     Store
	logger    Logger
	now       func() time.Time
	loc       *time.Location

	mu sync.Mutex
}

// NewManager creates a Manager for one registry.
func NewManager(registry *Registry, opts ManagerOptions) *Manager {
	m := &Manager{
		entryID:   registry.EntryID(),
		registry:  registry,
		notifier:  opts.Notifier,
		publisher: opts.Publisher,
		store:     opts.Store,
		logger:    opts.Logger,
		now:       opts.Now,
		loc:       opts.Location,
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.loc == nil {
		m.loc = time.Local
	}
	return m
}

// EntryID returns the ID of the entry this manager serves.
func (m *Manager) EntryID() string {
	return m.entryID
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// RecordDose records one dose of a medication.
//
// If the daily target is already met, only the "already taken" notification is
// sent and the result has Recorded=false; this is not an error. Otherwise the
// last dose time is set, the daily count increases, and inventory decreases by
// one without going below zero.
//
// Returns ErrMedicationNotFound for an unknown ID.
func (m *Manager) RecordDose(ctx context.Context, medicationID string, source Source) (DoseResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := detach(ctx)
	defer cancel()

	med, ok := m.registry.FindByID(medicationID)
	if !ok {
		m.logger.Error("record dose: unknown medication", "entry_id", m.entryID, "medication_id", medicationID)
		return DoseResult{}, fmt.Errorf("%w: %q", ErrMedicationNotFound, medicationID)
	}

	if med.DosesToday >= med.DosesPerDay {
		m.logger.Info("dose already complete for today",
			"entry_id", m.entryID,
			"medication_id", med.ID,
			"display_name", med.DisplayName(),
			"doses_today", med.DosesToday,
		)
		m.notify(ctx, med, KindAlreadyTaken,
			fmt.Sprintf("Warning: You've already taken all doses of %s today.", med.DisplayName()))
		return DoseResult{Recorded: false, State: med.State(m.entryID)}, nil
	}

	now := m.now()
	med.LastDose = &now
	med.DosesToday++
	if med.Inventory > 0 {
		med.Inventory--
	}

	m.logger.Info("dose recorded",
		"entry_id", m.entryID,
		"medication_id", med.ID,
		"display_name", med.DisplayName(),
		"source", source,
		"doses_today", med.DosesToday,
		"inventory", med.Inventory,
	)

	m.notify(ctx, med, KindDoseRecorded,
		fmt.Sprintf("Recorded dose for %s. %d doses remaining.", med.DisplayName(), med.Inventory))

	st := med.State(m.entryID)
	m.publish(ctx, Event{
		Type:         EventMedicationUpdated,
		Cause:        CauseDose,
		EntryID:      m.entryID,
		MedicationID: med.ID,
		Source:       source,
		State:        st,
		Timestamp:    now,
	})

	m.persist(ctx, med, now)
	if m.store != nil {
		rec := DoseRecord{
			EntryID:        m.entryID,
			MedicationID:   med.ID,
			PersonID:       med.PersonID,
			Source:         source,
			TakenAt:        now,
			InventoryAfter: med.Inventory,
			DosesToday:     med.DosesToday,
		}
		if err := m.store.AppendDose(ctx, rec); err != nil {
			m.logger.Error("failed to append dose history", "medication_id", med.ID, "error", err)
		}
	}

	return DoseResult{Recorded: true, State: st}, nil
}

// UpdateInventory sets a medication's inventory to an absolute value.
//
// Returns ErrInvalidInventory for a negative value and ErrMedicationNotFound
// for an unknown ID. Neither changes any state.
func (m *Manager) UpdateInventory(ctx context.Context, medicationID string, inventory int, source Source) (State, error) {
	if inventory < 0 {
		return State{}, fmt.Errorf("%w: %d is negative", ErrInvalidInventory, inventory)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := detach(ctx)
	defer cancel()

	med, ok := m.registry.FindByID(medicationID)
	if !ok {
		m.logger.Error("update inventory: unknown medication", "entry_id", m.entryID, "medication_id", medicationID)
		return State{}, fmt.Errorf("%w: %q", ErrMedicationNotFound, medicationID)
	}

	previous := med.Inventory
	med.Inventory = inventory

	m.logger.Info("inventory updated",
		"entry_id", m.entryID,
		"medication_id", med.ID,
		"display_name", med.DisplayName(),
		"previous", previous,
		"inventory", inventory,
	)

	m.notify(ctx, med, KindInventoryUpdated,
		fmt.Sprintf("Updated inventory for %s: %d doses.", med.DisplayName(), inventory))

	now := m.now()
	st := med.State(m.entryID)
	m.publish(ctx, Event{
		Type:         EventMedicationUpdated,
		Cause:        CauseInventory,
		EntryID:      m.entryID,
		MedicationID: med.ID,
		Source:       source,
		State:        st,
		Timestamp:    now,
	})
	m.persist(ctx, med, now)

	return st, nil
}

// ResolveNFC maps a tag to a medication ID. It reads only immutable registry
// fields and never takes the lock. An unknown tag is a benign miss.
func (m *Manager) ResolveNFC(tagID string) (string, bool) {
	med, ok := m.registry.FindByNFC(tagID)
	if !ok {
		m.logger.Info("no medication bound to scanned tag; add this tag to a medication to use it",
			"entry_id", m.entryID)
		return "", false
	}
	m.logger.Debug("tag resolved", "entry_id", m.entryID, "medication_id", med.ID)
	return med.ID, true
}

// ScheduleCheck sweeps every medication once.
//
// For each medication, a reminder is sent when now's time of day is past the
// dose time and the daily target is not met. Independently, inventory at or
// below the low threshold sends a refill notice while refills remain; with no
// refills left, inventory also at or below the doctor threshold sends a
// doctor-appointment notice instead.
//
// A medication whose dose time cannot be parsed is logged and skipped; the
// sweep continues with the others.
func (m *Manager) ScheduleCheck(ctx context.Context, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now = now.In(m.loc)
	checked := 0
	for _, med := range m.registry.meds {
		if err := m.checkMedication(ctx, med, now); err != nil {
			m.logger.Error("schedule check skipped medication",
				"entry_id", m.entryID,
				"medication_id", med.ID,
				"display_name", med.DisplayName(),
				"error", err,
			)
			continue
		}
		checked++
	}
	m.logger.Debug("schedule check complete", "entry_id", m.entryID, "checked", checked)
}

func (m *Manager) checkMedication(ctx context.Context, med *Medication, now time.Time) error {
	offset, err := ParseDoseTime(med.DoseTime)
	if err != nil {
		return err
	}

	if now.After(scheduledAt(now, offset)) && med.DosesToday < med.DosesPerDay {
		m.notify(ctx, med, KindReminder,
			fmt.Sprintf("Reminder: Time to take %s medication.", med.DisplayName()))
	}

	if med.Inventory <= med.LowInventoryThreshold {
		switch {
		case med.RefillsRemaining > 0:
			m.notify(ctx, med, KindLowInventory, fmt.Sprintf(
				"Low inventory alert: Only %d doses of %s remaining. Please order a refill.",
				med.Inventory, med.DisplayName()))
		case med.Inventory <= med.DoctorReminderThreshold:
			m.notify(ctx, med, KindDoctorReminder, fmt.Sprintf(
				"Doctor appointment needed: Only %d doses of %s remaining and no refills left. Please schedule a doctor appointment.",
				med.Inventory, med.DisplayName()))
		}
	}
	return nil
}

// DailyReset zeroes the daily dose count of every medication and publishes a
// status reset for each. No notification is sent.
func (m *Manager) DailyReset(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := detach(ctx)
	defer cancel()

	now := m.now()
	for _, med := range m.registry.meds {
		med.DosesToday = 0
		m.publish(ctx, Event{
			Type:         EventStatusReset,
			Cause:        CauseReset,
			EntryID:      m.entryID,
			MedicationID: med.ID,
			State:        med.State(m.entryID),
			Timestamp:    now,
		})
		m.persist(ctx, med, now)
	}
	m.logger.Info("daily dose counters reset", "entry_id", m.entryID, "medications", len(m.registry.meds))
}

// Restore loads persisted runtime state into the registry.
//
// Inventory and refills are restored unless their configured value differs
// from the one the saved counters started from; an edited config wins over
// the stored count. Last dose is always restored, the daily count only when
// it was saved on today's date. Unknown medication IDs in the store are
// ignored.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	saved, err := m.store.LoadStates(ctx, m.entryID)
	if err != nil {
		return fmt.Errorf("loading saved state for %q: %w", m.entryID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	restored := 0
	for _, s := range saved {
		med, ok := m.registry.FindByID(s.MedicationID)
		if !ok {
			m.logger.Debug("ignoring saved state for unknown medication", "entry_id", m.entryID, "medication_id", s.MedicationID)
			continue
		}
		if reconfigured(s.ConfiguredInventory, med.configured.inventory) {
			m.logger.Info("configured inventory changed; saved count discarded",
				"entry_id", m.entryID, "medication_id", med.ID, "inventory", med.Inventory)
		} else {
			med.Inventory = max(s.Inventory, 0)
		}
		if reconfigured(s.ConfiguredRefills, med.configured.refills) {
			m.logger.Info("configured refills changed; saved count discarded",
				"entry_id", m.entryID, "medication_id", med.ID, "refills_remaining", med.RefillsRemaining)
		} else {
			med.RefillsRemaining = max(s.RefillsRemaining, 0)
		}
		if s.LastDose != nil {
			t := *s.LastDose
			med.LastDose = &t
		}
		if sameDay(s.SavedAt, now, m.loc) {
			med.DosesToday = min(max(s.DosesToday, 0), med.DosesPerDay)
		} else {
			med.DosesToday = 0
		}
		restored++
	}
	m.logger.Info("medication state restored", "entry_id", m.entryID, "restored", restored)
	return nil
}

// reconfigured reports whether the configured value now differs from the one
// saved alongside the counters. Unknown saved values never count as a change.
func reconfigured(saved *int, now int) bool {
	return saved != nil && *saved != now
}

// Snapshot returns the state of every medication in declaration order.
func (m *Manager) Snapshot() []State {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]State, 0, len(m.registry.meds))
	for _, med := range m.registry.meds {
		out = append(out, med.State(m.entryID))
	}
	return out
}

// State returns the state of one medication.
func (m *Manager) State(medicationID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	med, ok := m.registry.FindByID(medicationID)
	if !ok {
		return State{}, fmt.Errorf("%w: %q", ErrMedicationNotFound, medicationID)
	}
	return med.State(m.entryID), nil
}

// detach returns the context a transaction's side effects run under: the
// caller's values without its cancellation, bounded by sideEffectTimeout.
// A mutation applied in memory is always offered to the store and sinks.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
}

func (m *Manager) notify(ctx context.Context, med *Medication, kind NotificationKind, message string) {
	if m.notifier == nil {
		return
	}
	n := Notification{
		EntryID:      m.entryID,
		MedicationID: med.ID,
		Kind:         kind,
		Message:      message,
		Timestamp:    m.now(),
	}
	if err := m.notifier.Notify(ctx, n); err != nil {
		m.logger.Error("failed to send notification",
			"entry_id", m.entryID,
			"medication_id", med.ID,
			"display_name", med.DisplayName(),
			"kind", kind,
			"error", fmt.Errorf("%w: %w", ErrNotificationFailed, err),
		)
	}
}

func (m *Manager) publish(ctx context.Context, ev Event) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.logger.Error("failed to publish event",
			"entry_id", m.entryID,
			"medication_id", ev.MedicationID,
			"type", ev.Type,
			"error", err,
		)
	}
}

func (m *Manager) persist(ctx context.Context, med *Medication, now time.Time) {
	if m.store == nil {
		return
	}
	cfgInv, cfgRefills := med.configured.inventory, med.configured.refills
	s := SavedState{
		EntryID:          m.entryID,
		MedicationID:     med.ID,
		Inventory:        med.Inventory,
		DosesToday:       med.DosesToday,
		RefillsRemaining: med.RefillsRemaining,
		LastDose:         med.LastDose,
		SavedAt:          now,

		ConfiguredInventory: &cfgInv,
		ConfiguredRefills:   &cfgRefills,
	}
	if err := m.store.SaveState(ctx, s); err != nil {
		m.logger.Error("failed to save medication state", "medication_id", med.ID, "error", err)
	}
}
