package medication

import (
	"time"

	"github.com/nerrad567/medminder/internal/infrastructure/config"
)

// Redacted replaces sensitive values in diagnostics output.
const Redacted = "**REDACTED**"

// Diagnostics is a support dump of one entry with tag identifiers redacted.
type Diagnostics struct {
	EntryID      string                    `json:"entry_id"`
	Title        string                    `json:"title"`
	People       []Person                  `json:"people"`
	Medications  []config.MedicationConfig `json:"medications"`
	Options      config.OptionsConfig      `json:"options"`
	RuntimeState map[string]RuntimeState   `json:"runtime_state"`
}

// RuntimeState is the per-medication live portion of Diagnostics.
type RuntimeState struct {
	Status                Status     `json:"status"`
	DosesToday            int        `json:"doses_today"`
	DosesPerDay           int        `json:"doses_per_day"`
	Inventory             int        `json:"inventory"`
	LowInventoryThreshold int        `json:"low_threshold"`
	IsLow                 bool       `json:"is_low"`
	RefillsRemaining      int        `json:"refills_remaining"`
	LastDose              *time.Time `json:"last_dose,omitempty"`
}

// Diagnostics returns the entry's declaration and live state.
func (m *Manager) Diagnostics() Diagnostics {
	entry := m.registry.Entry()

	meds := make([]config.MedicationConfig, len(entry.Medications))
	for i, mc := range entry.Medications {
		if mc.NFCID != "" {
			mc.NFCID = Redacted
		}
		meds[i] = mc
	}

	d := Diagnostics{
		EntryID:      m.entryID,
		Title:        entry.Title,
		People:       m.registry.People(),
		Medications:  meds,
		Options:      entry.Options,
		RuntimeState: make(map[string]RuntimeState),
	}

	for _, st := range m.Snapshot() {
		d.RuntimeState[st.ID] = RuntimeState{
			Status:                st.Status,
			DosesToday:            st.DosesToday,
			DosesPerDay:           st.DosesPerDay,
			Inventory:             st.Inventory,
			LowInventoryThreshold: st.LowInventoryThreshold,
			IsLow:                 st.IsLow,
			RefillsRemaining:      st.RefillsRemaining,
			LastDose:              st.LastDose,
		}
	}
	return d
}
