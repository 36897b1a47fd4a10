package medication

import (
	"fmt"

	"github.com/nerrad567/medminder/internal/infrastructure/config"
)

// Registry owns the medications and people of one configured entry.
//
// A Registry is built once and its membership never changes afterwards.
// Lookups touch only the immutable identity fields, so they are safe without
// the Manager lock. Mutable counters on each Medication belong to the Manager.
type Registry struct {
	entry config.EntryConfig

	meds       []*Medication
	medsByID   map[string]*Medication
	people     []*Person
	peopleByID map[string]*Person
}

// Build constructs a Registry from an entry declaration.
//
// Every person and medication is processed independently: a malformed record
// is logged, skipped, and returned in the error slice, and the rest still load.
// A medication naming an unknown person creates that person.
//
// Field precedence for inventory, refills and both thresholds is the entry's
// options override, then the medication declaration, then the package defaults.
// A second medication declaring an already-bound NFC ID is kept without a tag.
func Build(entry config.EntryConfig, logger Logger) (*Registry, []error) {
	if logger == nil {
		logger = noopLogger{}
	}

	r := &Registry{
		entry:      entry,
		medsByID:   make(map[string]*Medication, len(entry.Medications)),
		peopleByID: make(map[string]*Person, len(entry.People)),
	}

	var errs []error
	for i, pc := range entry.People {
		if _, err := r.addPerson(pc.Name); err != nil {
			err = fmt.Errorf("people[%d]: %w", i, err)
			logger.Error("skipping person", "entry_id", entry.ID, "error", err)
			errs = append(errs, err)
		}
	}

	nfcOwner := make(map[string]string)
	for i, mc := range entry.Medications {
		med, err := r.buildMedication(mc, entry.Options)
		if err != nil {
			err = fmt.Errorf("medications[%d]: %w", i, err)
			logger.Error("skipping medication", "entry_id", entry.ID, "name", mc.Name, "error", err)
			errs = append(errs, err)
			continue
		}

		if med.NFCID != "" {
			if owner, taken := nfcOwner[med.NFCID]; taken {
				err := fmt.Errorf("medications[%d] %q: %w: already bound to %q", i, med.ID, ErrDuplicateNFC, owner)
				logger.Error("dropping duplicate tag binding",
					"entry_id", entry.ID, "medication_id", med.ID, "bound_to", owner)
				errs = append(errs, err)
				med.NFCID = ""
			} else {
				nfcOwner[med.NFCID] = med.ID
			}
		}

		if _, err := ParseDoseTime(med.DoseTime); err != nil {
			logger.Warn("medication has malformed dose time; reminders will be skipped",
				"entry_id", entry.ID, "medication_id", med.ID, "dose_time", med.DoseTime)
		}

		if mc.Person != "" {
			p, perr := r.addPerson(mc.Person)
			if perr != nil {
				logger.Warn("ignoring medication person",
					"entry_id", entry.ID, "medication_id", med.ID, "error", perr)
			} else {
				med.PersonID = p.ID
				med.displayName = p.Name + "'s " + med.Name
				p.MedicationIDs = append(p.MedicationIDs, med.ID)
			}
		}

		r.meds = append(r.meds, med)
		r.medsByID[med.ID] = med
	}

	logger.Info("medication registry built",
		"entry_id", entry.ID,
		"medications", len(r.meds),
		"people", len(r.people),
		"errors", len(errs),
	)
	return r, errs
}

// addPerson returns the person with name's slug, creating it if needed.
func (r *Registry) addPerson(name string) (*Person, error) {
	id := Slugify(name)
	if id == "" {
		return nil, fmt.Errorf("%w: name %q has no usable characters", ErrInvalidPerson, name)
	}
	if p, ok := r.peopleByID[id]; ok {
		return p, nil
	}
	p := &Person{ID: id, Name: name, MedicationIDs: []string{}}
	r.people = append(r.people, p)
	r.peopleByID[id] = p
	return p, nil
}

func (r *Registry) buildMedication(mc config.MedicationConfig, opts config.OptionsConfig) (*Medication, error) {
	if mc.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidMedication)
	}
	id := Slugify(mc.Name)
	if id == "" {
		return nil, fmt.Errorf("%w: name %q has no usable characters", ErrInvalidMedication, mc.Name)
	}
	if _, exists := r.medsByID[id]; exists {
		return nil, fmt.Errorf("%w: duplicate medication id %q", ErrInvalidMedication, id)
	}

	med := &Medication{
		ID:                      id,
		Name:                    mc.Name,
		NFCID:                   mc.NFCID,
		Dosage:                  pick(nil, mc.Dosage, DefaultDosage),
		DoseTime:                mc.DoseTime,
		DosesPerDay:             pick(nil, mc.DosesPerDay, DefaultDosesPerDay),
		Inventory:               pick(opts.Inventory, mc.Inventory, DefaultInventory),
		RefillsRemaining:        pick(opts.RefillsRemaining, mc.RefillsRemaining, DefaultRefillsRemaining),
		LowInventoryThreshold:   pick(opts.LowInventoryThreshold, mc.LowInventoryThreshold, DefaultLowInventoryThreshold),
		DoctorReminderThreshold: pick(opts.DoctorReminderThreshold, mc.DoctorReminderThreshold, DefaultDoctorReminderThreshold),
	}
	if med.DoseTime == "" {
		med.DoseTime = DefaultDoseTime
	}

	switch {
	case med.Dosage < 1:
		return nil, fmt.Errorf("%w: %q dosage must be positive", ErrInvalidMedication, id)
	case med.DosesPerDay < 1:
		return nil, fmt.Errorf("%w: %q doses_per_day must be positive", ErrInvalidMedication, id)
	case med.Inventory < 0:
		return nil, fmt.Errorf("%w: %q inventory must not be negative", ErrInvalidMedication, id)
	case med.RefillsRemaining < 0:
		return nil, fmt.Errorf("%w: %q refills_remaining must not be negative", ErrInvalidMedication, id)
	case med.LowInventoryThreshold < 0 || med.DoctorReminderThreshold < 0:
		return nil, fmt.Errorf("%w: %q thresholds must not be negative", ErrInvalidMedication, id)
	}
	med.configured = baseline{inventory: med.Inventory, refills: med.RefillsRemaining}
	return med, nil
}

// pick returns the first non-nil of override and declared, else def.
func pick(override, declared *int, def int) int {
	if override != nil {
		return *override
	}
	if declared != nil {
		return *declared
	}
	return def
}

// EntryID returns the ID of the entry this registry was built from.
func (r *Registry) EntryID() string {
	return r.entry.ID
}

// Entry returns the declaration this registry was built from.
func (r *Registry) Entry() config.EntryConfig {
	return r.entry
}

// FindByNFC returns the medication bound to tagID. Medications are scanned in
// declaration order and the first match wins.
func (r *Registry) FindByNFC(tagID string) (*Medication, bool) {
	if tagID == "" {
		return nil, false
	}
	for _, m := range r.meds {
		if m.NFCID == tagID {
			return m, true
		}
	}
	return nil, false
}

// FindByID returns the medication with the given ID.
func (r *Registry) FindByID(id string) (*Medication, bool) {
	m, ok := r.medsByID[id]
	return m, ok
}

// Medications returns all medications in declaration order.
// The slice is a copy; the pointed-to medications are shared.
func (r *Registry) Medications() []*Medication {
	out := make([]*Medication, len(r.meds))
	copy(out, r.meds)
	return out
}

// People returns copies of all people in creation order.
func (r *Registry) People() []Person {
	out := make([]Person, 0, len(r.people))
	for _, p := range r.people {
		cp := *p
		cp.MedicationIDs = append([]string(nil), p.MedicationIDs...)
		out = append(out, cp)
	}
	return out
}

// PersonByID returns a copy of the person with the given ID.
func (r *Registry) PersonByID(id string) (Person, bool) {
	p, ok := r.peopleByID[id]
	if !ok {
		return Person{}, false
	}
	cp := *p
	cp.MedicationIDs = append([]string(nil), p.MedicationIDs...)
	return cp, true
}
