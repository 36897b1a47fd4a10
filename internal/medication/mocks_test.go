package medication

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/medminder/internal/infrastructure/config"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// mockNotifier captures all notifications.
type mockNotifier struct {
	mu    sync.Mutex
	sent  []Notification
	fail  bool
	calls int
}

func (m *mockNotifier) Notify(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail {
		return errors.New("notify service unavailable")
	}
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockNotifier) all() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := make([]Notification, len(m.sent))
	copy(cpy, m.sent)
	return cpy
}

func (m *mockNotifier) kinds() []NotificationKind {
	var out []NotificationKind
	for _, n := range m.all() {
		out = append(out, n.Kind)
	}
	return out
}

func (m *mockNotifier) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.calls = 0
}

// mockPublisher captures all events.
type mockPublisher struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (m *mockPublisher) Publish(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("broker down")
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockPublisher) all() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := make([]Event, len(m.events))
	copy(cpy, m.events)
	return cpy
}

// mockStore keeps saved state and dose history in memory.
type mockStore struct {
	mu      sync.Mutex
	states  map[string]SavedState
	doses   []DoseRecord
	loadErr error
	saveErr error
}

func newMockStore() *mockStore {
	return &mockStore{states: make(map[string]SavedState)}
}

func (m *mockStore) SaveState(_ context.Context, st SavedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.states[st.EntryID+"/"+st.MedicationID] = st
	return nil
}

func (m *mockStore) LoadStates(_ context.Context, entryID string) ([]SavedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	var out []SavedState
	for _, st := range m.states {
		if st.EntryID == entryID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (m *mockStore) AppendDose(_ context.Context, rec DoseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doses = append(m.doses, rec)
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func intp(v int) *int { return &v }

// fixedNow is 2026-03-10 09:30:00 UTC.
var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	mgr       *Manager
	notifier  *mockNotifier
	publisher *mockPublisher
	store     *mockStore
}

func newFixture(t *testing.T, entry config.EntryConfig) *fixture {
	t.Helper()
	reg, errs := Build(entry, nil)
	if len(errs) != 0 {
		t.Fatalf("Build() errors = %v", errs)
	}
	f := &fixture{
		notifier:  &mockNotifier{},
		publisher: &mockPublisher{},
		store:     newMockStore(),
	}
	f.mgr = NewManager(reg, ManagerOptions{
		Notifier:  f.notifier,
		Publisher: f.publisher,
		Store:     f.store,
		Now:       func() time.Time { return fixedNow },
		Location:  time.UTC,
	})
	return f
}

func aspirinEntry() config.EntryConfig {
	return config.EntryConfig{
		ID:     "home",
		Title:  "Home",
		People: []config.PersonConfig{{Name: "Alice"}},
		Medications: []config.MedicationConfig{{
			Name:                    "Aspirin",
			Person:                  "Alice",
			NFCID:                   "04:AA:BB",
			Inventory:               intp(10),
			DosesPerDay:             intp(2),
			LowInventoryThreshold:   intp(3),
			DoctorReminderThreshold: intp(1),
			RefillsRemaining:        intp(0),
			DoseTime:                "08:00:00",
		}},
	}
}

func mustState(t *testing.T, m *Manager, id string) State {
	t.Helper()
	st, err := m.State(id)
	if err != nil {
		t.Fatalf("State(%q) error = %v", id, err)
	}
	return st
}
