package medication

import (
	"context"
	"fmt"
)

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// QueueSize is the per-entry tag-scan queue capacity.
	QueueSize int

	// Learner receives every scanned tag. Nil disables tag learning.
	Learner *TagLearner

	Logger Logger
}

// Service routes inbound calls to the Manager that owns each medication.
// It holds one Manager and one Dispatcher per configured entry.
type Service struct {
	managers    []*Manager
	byEntry     map[string]*Manager
	dispatchers []*Dispatcher
	learner     *TagLearner
	logger      Logger
}

// NewService creates a service over managers, kept in the given order.
func NewService(managers []*Manager, opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Service{
		managers: managers,
		byEntry:  make(map[string]*Manager, len(managers)),
		learner:  opts.Learner,
		logger:   logger,
	}
	for _, m := range managers {
		s.byEntry[m.EntryID()] = m
		s.dispatchers = append(s.dispatchers, NewDispatcher(m, opts.QueueSize, logger))
	}
	return s
}

// Start launches every entry's tag-scan worker.
func (s *Service) Start(ctx context.Context) {
	for _, d := range s.dispatchers {
		d.Start(ctx)
	}
}

// Close drains and stops every tag-scan worker.
func (s *Service) Close() {
	for _, d := range s.dispatchers {
		d.Close()
	}
}

// Managers returns the managers in configuration order.
func (s *Service) Managers() []*Manager {
	return append([]*Manager(nil), s.managers...)
}

// Sweepers returns the managers as scheduler sweepers.
func (s *Service) Sweepers() []Sweeper {
	out := make([]Sweeper, len(s.managers))
	for i, m := range s.managers {
		out[i] = m
	}
	return out
}

// Learner returns the tag learner, or nil when learning is disabled.
func (s *Service) Learner() *TagLearner {
	return s.learner
}

// RecordDose records a dose for req.MedicationID.
func (s *Service) RecordDose(ctx context.Context, req ServiceRequest, source Source) (DoseResult, error) {
	m, err := s.route(req)
	if err != nil {
		return DoseResult{}, err
	}
	return m.RecordDose(ctx, req.MedicationID, source)
}

// UpdateInventory sets the inventory of req.MedicationID to *req.Inventory.
func (s *Service) UpdateInventory(ctx context.Context, req ServiceRequest, source Source) (State, error) {
	if req.Inventory == nil {
		return State{}, fmt.Errorf("%w: inventory is required", ErrInvalidInventory)
	}
	m, err := s.route(req)
	if err != nil {
		return State{}, err
	}
	return m.UpdateInventory(ctx, req.MedicationID, *req.Inventory, source)
}

// TagScanned hands a scanned tag to every entry's dispatcher and to the tag
// learner. It never blocks and returns how many entries queued the scan.
func (s *Service) TagScanned(tagID string) int {
	if tagID == "" {
		s.logger.Warn("tag scan without tag id ignored")
		return 0
	}
	if s.learner != nil {
		if n := s.learner.Offer(tagID); n > 0 {
			s.logger.Info("tag captured for learning", "sessions", n)
		}
	}
	queued := 0
	for _, d := range s.dispatchers {
		if d.Enqueue(tagID) {
			queued++
		}
	}
	return queued
}

// Medications returns the state of every medication across all entries.
func (s *Service) Medications() []State {
	var out []State
	for _, m := range s.managers {
		out = append(out, m.Snapshot()...)
	}
	return out
}

// MedicationsFor returns the medications assigned to personID across every
// entry that has that person, in entry then assignment order. Returns
// ErrPersonNotFound when no entry does.
func (s *Service) MedicationsFor(personID string) ([]State, error) {
	out := []State{}
	found := false
	for _, m := range s.managers {
		p, ok := m.Registry().PersonByID(personID)
		if !ok {
			continue
		}
		found = true
		for _, id := range p.MedicationIDs {
			st, err := m.State(id)
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrPersonNotFound, personID)
	}
	return out, nil
}

// Medication returns one medication. An empty entryID searches every entry.
func (s *Service) Medication(entryID, medicationID string) (State, error) {
	m, err := s.route(ServiceRequest{EntryID: entryID, MedicationID: medicationID})
	if err != nil {
		return State{}, err
	}
	return m.State(medicationID)
}

// Diagnostics returns the diagnostics of every entry.
func (s *Service) Diagnostics() []Diagnostics {
	out := make([]Diagnostics, 0, len(s.managers))
	for _, m := range s.managers {
		out = append(out, m.Diagnostics())
	}
	return out
}

// route picks the named entry, or the first entry that has the medication.
func (s *Service) route(req ServiceRequest) (*Manager, error) {
	if req.MedicationID == "" {
		return nil, fmt.Errorf("%w: medication_id is required", ErrInvalidRequest)
	}
	if req.EntryID != "" {
		m, ok := s.byEntry[req.EntryID]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, req.EntryID)
		}
		return m, nil
	}
	for _, m := range s.managers {
		if _, ok := m.Registry().FindByID(req.MedicationID); ok {
			return m, nil
		}
	}
	s.logger.Error("no entry owns medication", "medication_id", req.MedicationID)
	return nil, fmt.Errorf("%w: %q", ErrMedicationNotFound, req.MedicationID)
}
