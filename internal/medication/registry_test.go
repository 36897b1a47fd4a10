package medication

import (
	"errors"
	"testing"

	"github.com/nerrad567/medminder/internal/infrastructure/config"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Aspirin", "aspirin"},
		{"Vitamin D3", "vitamin_d3"},
		{"Alice's  Pills", "alice_s_pills"},
		{"  --Fish Oil--  ", "fish_oil"},
		{"Ibuprofène", "ibuprofene"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuild_Defaults(t *testing.T) {
	reg, errs := Build(config.EntryConfig{
		ID:          "home",
		Medications: []config.MedicationConfig{{Name: "Fish Oil"}},
	}, nil)
	if len(errs) != 0 {
		t.Fatalf("Build() errors = %v", errs)
	}

	med, ok := reg.FindByID("fish_oil")
	if !ok {
		t.Fatal("FindByID(fish_oil) not found")
	}

	checks := []struct {
		name      string
		got, want int
	}{
		{"DosesPerDay", med.DosesPerDay, DefaultDosesPerDay},
		{"RefillsRemaining", med.RefillsRemaining, DefaultRefillsRemaining},
		{"LowInventoryThreshold", med.LowInventoryThreshold, 7},
		{"DoctorReminderThreshold", med.DoctorReminderThreshold, 14},
		{"Inventory", med.Inventory, 30},
		{"Dosage", med.Dosage, 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	if med.DoseTime != "08:00:00" {
		t.Errorf("DoseTime = %q, want 08:00:00", med.DoseTime)
	}
	if med.Status() != StatusNotTaken {
		t.Errorf("Status() = %q, want not_taken", med.Status())
	}
	if med.DisplayName() != "Fish Oil" {
		t.Errorf("DisplayName() = %q, want %q", med.DisplayName(), "Fish Oil")
	}
}

func TestBuild_OptionsOverrideMedicationConfig(t *testing.T) {
	reg, _ := Build(config.EntryConfig{
		ID: "home",
		Medications: []config.MedicationConfig{{
			Name:                  "Aspirin",
			Inventory:             intp(10),
			RefillsRemaining:      intp(2),
			LowInventoryThreshold: intp(5),
			DosesPerDay:           intp(3),
		}},
		Options: config.OptionsConfig{
			Inventory:               intp(50),
			DoctorReminderThreshold: intp(2),
		},
	}, nil)

	med, _ := reg.FindByID("aspirin")
	if med.Inventory != 50 {
		t.Errorf("Inventory = %d, want options value 50", med.Inventory)
	}
	if med.RefillsRemaining != 2 {
		t.Errorf("RefillsRemaining = %d, want medication value 2", med.RefillsRemaining)
	}
	if med.LowInventoryThreshold != 5 {
		t.Errorf("LowInventoryThreshold = %d, want medication value 5", med.LowInventoryThreshold)
	}
	if med.DoctorReminderThreshold != 2 {
		t.Errorf("DoctorReminderThreshold = %d, want options value 2", med.DoctorReminderThreshold)
	}
	if med.DosesPerDay != 3 {
		t.Errorf("DosesPerDay = %d, want 3", med.DosesPerDay)
	}
}

func TestBuild_PeopleAndImplicitPerson(t *testing.T) {
	reg, errs := Build(config.EntryConfig{
		ID:     "home",
		People: []config.PersonConfig{{Name: "Alice"}},
		Medications: []config.MedicationConfig{
			{Name: "Aspirin", Person: "Alice"},
			{Name: "Insulin", Person: "Bob Smith"},
			{Name: "Zinc"},
		},
	}, nil)
	if len(errs) != 0 {
		t.Fatalf("Build() errors = %v", errs)
	}

	people := reg.People()
	if len(people) != 2 {
		t.Fatalf("len(People()) = %d, want 2", len(people))
	}
	if people[0].ID != "alice" || people[1].ID != "bob_smith" {
		t.Errorf("people IDs = %q, %q", people[0].ID, people[1].ID)
	}

	bob, ok := reg.PersonByID("bob_smith")
	if !ok || len(bob.MedicationIDs) != 1 || bob.MedicationIDs[0] != "insulin" {
		t.Errorf("PersonByID(bob_smith) = %+v, %v", bob, ok)
	}

	insulin, _ := reg.FindByID("insulin")
	if insulin.PersonID != "bob_smith" {
		t.Errorf("insulin.PersonID = %q, want bob_smith", insulin.PersonID)
	}
	if insulin.DisplayName() != "Bob Smith's Insulin" {
		t.Errorf("DisplayName() = %q", insulin.DisplayName())
	}

	zinc, _ := reg.FindByID("zinc")
	if zinc.PersonID != "" {
		t.Errorf("zinc.PersonID = %q, want empty", zinc.PersonID)
	}
}

func TestBuild_MalformedRecordsAreIsolated(t *testing.T) {
	reg, errs := Build(config.EntryConfig{
		ID:     "home",
		People: []config.PersonConfig{{Name: "???"}, {Name: "Carol"}},
		Medications: []config.MedicationConfig{
			{Name: ""},
			{Name: "Aspirin", DosesPerDay: intp(0)},
			{Name: "Ibuprofen", Inventory: intp(-1)},
			{Name: "Zinc", RefillsRemaining: intp(-2)},
			{Name: "Metformin"},
			{Name: "metformin"},
			{Name: "Statin", DoseTime: "25:99"},
		},
	}, nil)

	if len(errs) != 6 {
		t.Fatalf("len(errs) = %d, want 6: %v", len(errs), errs)
	}
	for _, err := range errs[1:] {
		if !errors.Is(err, ErrInvalidMedication) {
			t.Errorf("error %v should wrap ErrInvalidMedication", err)
		}
	}
	if !errors.Is(errs[0], ErrInvalidPerson) {
		t.Errorf("error %v should wrap ErrInvalidPerson", errs[0])
	}

	meds := reg.Medications()
	if len(meds) != 2 {
		t.Fatalf("len(Medications()) = %d, want 2", len(meds))
	}
	if meds[0].ID != "metformin" || meds[1].ID != "statin" {
		t.Errorf("medications = %q, %q", meds[0].ID, meds[1].ID)
	}
	if meds[1].DoseTime != "25:99" {
		t.Errorf("malformed dose time should be kept for the sweep to isolate, got %q", meds[1].DoseTime)
	}
	if _, ok := reg.PersonByID("carol"); !ok {
		t.Error("valid person after an invalid one should load")
	}
}

func TestBuild_DuplicateNFCRejected(t *testing.T) {
	reg, errs := Build(config.EntryConfig{
		ID: "home",
		Medications: []config.MedicationConfig{
			{Name: "Aspirin", NFCID: "tag-1"},
			{Name: "Ibuprofen", NFCID: "tag-1"},
		},
	}, nil)

	if len(errs) != 1 || !errors.Is(errs[0], ErrDuplicateNFC) {
		t.Fatalf("errs = %v, want one ErrDuplicateNFC", errs)
	}

	ibu, ok := reg.FindByID("ibuprofen")
	if !ok {
		t.Fatal("medication with duplicate tag should still load")
	}
	if ibu.NFCID != "" {
		t.Errorf("duplicate tag binding should be dropped, got %q", ibu.NFCID)
	}

	med, ok := reg.FindByNFC("tag-1")
	if !ok || med.ID != "aspirin" {
		t.Errorf("FindByNFC(tag-1) = %v, %v; want aspirin", med, ok)
	}
}

func TestRegistry_FindByNFC(t *testing.T) {
	reg, _ := Build(config.EntryConfig{
		ID: "home",
		Medications: []config.MedicationConfig{
			{Name: "Aspirin", NFCID: "tag-a"},
			{Name: "Zinc"},
			{Name: "Iron", NFCID: "tag-b"},
		},
	}, nil)

	tests := []struct {
		tag    string
		wantID string
		wantOK bool
	}{
		{"tag-a", "aspirin", true},
		{"tag-b", "iron", true},
		{"tag-unknown", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		med, ok := reg.FindByNFC(tt.tag)
		if ok != tt.wantOK {
			t.Errorf("FindByNFC(%q) ok = %v, want %v", tt.tag, ok, tt.wantOK)
			continue
		}
		if ok && med.ID != tt.wantID {
			t.Errorf("FindByNFC(%q) = %q, want %q", tt.tag, med.ID, tt.wantID)
		}
	}
}

func TestMedication_Status(t *testing.T) {
	tests := []struct {
		today, perDay int
		want          Status
	}{
		{0, 2, StatusNotTaken},
		{1, 2, StatusPartiallyTaken},
		{2, 2, StatusTaken},
		{1, 1, StatusTaken},
	}
	for _, tt := range tests {
		m := &Medication{DosesToday: tt.today, DosesPerDay: tt.perDay}
		if got := m.Status(); got != tt.want {
			t.Errorf("Status(%d/%d) = %q, want %q", tt.today, tt.perDay, got, tt.want)
		}
	}
}

func TestParseDoseTime(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"08:00:00", "8h0m0s", false},
		{"21:30:15", "21h30m15s", false},
		{"07:45", "7h45m0s", false},
		{"25:99", "", true},
		{"24:00:00", "", true},
		{"noon", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDoseTime(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDoseTime(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidDoseTime) {
					t.Errorf("error should wrap ErrInvalidDoseTime: %v", err)
				}
				return
			}
			if got.String() != tt.want {
				t.Errorf("ParseDoseTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
