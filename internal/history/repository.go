// Package history persists medication runtime state and the dose log in
// SQLite. SQLiteRepository implements medication.Store.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/medminder/internal/medication"
)

// Page size limits for ListDoses.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// Filter selects dose records. Empty fields match everything.
type Filter struct {
	EntryID      string
	MedicationID string
	Since        time.Time
	Limit        int
	Offset       int
}

// ListResult is one page of dose records, most recent first.
type ListResult struct {
	Doses  []Dose `json:"doses"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// Dose is the JSON view of a medication.DoseRecord.
type Dose struct {
	ID             string            `json:"id"`
	EntryID        string            `json:"entry_id"`
	MedicationID   string            `json:"medication_id"`
	PersonID       string            `json:"person_id,omitempty"`
	Source         medication.Source `json:"source"`
	TakenAt        time.Time         `json:"taken_at"`
	InventoryAfter int               `json:"inventory_after"`
	DosesToday     int               `json:"doses_today"`
}

// SQLiteRepository stores state in medication_state and doses in dose_history.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ medication.Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository returns a repository over an already-migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// SaveState upserts the runtime state of one medication.
func (r *SQLiteRepository) SaveState(ctx context.Context, st medication.SavedState) error {
	if st.SavedAt.IsZero() {
		st.SavedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO medication_state
		    (entry_id, medication_id, inventory, doses_today, refills_remaining, last_dose, saved_at,
		     configured_inventory, configured_refills)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (entry_id, medication_id) DO UPDATE SET
		    inventory = excluded.inventory,
		    doses_today = excluded.doses_today,
		    refills_remaining = excluded.refills_remaining,
		    last_dose = excluded.last_dose,
		    saved_at = excluded.saved_at,
		    configured_inventory = excluded.configured_inventory,
		    configured_refills = excluded.configured_refills`,
		st.EntryID, st.MedicationID,
		st.Inventory, st.DosesToday, st.RefillsRemaining,
		nullableTime(st.LastDose), formatTime(st.SavedAt),
		nullableInt(st.ConfiguredInventory), nullableInt(st.ConfiguredRefills),
	)
	if err != nil {
		return fmt.Errorf("saving state for %s/%s: %w", st.EntryID, st.MedicationID, err)
	}
	return nil
}

// LoadStates returns every saved state for an entry.
func (r *SQLiteRepository) LoadStates(ctx context.Context, entryID string) ([]medication.SavedState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT medication_id, inventory, doses_today, refills_remaining, last_dose, saved_at,
		        configured_inventory, configured_refills
		 FROM medication_state WHERE entry_id = ? ORDER BY medication_id`,
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state for %s: %w", entryID, err)
	}
	defer rows.Close()

	var out []medication.SavedState
	for rows.Next() {
		st := medication.SavedState{EntryID: entryID}
		var (
			lastDose           sql.NullString
			savedAt            string
			cfgInv, cfgRefills sql.NullInt64
		)
		if err := rows.Scan(&st.MedicationID, &st.Inventory, &st.DosesToday,
			&st.RefillsRemaining, &lastDose, &savedAt, &cfgInv, &cfgRefills); err != nil {
			return nil, fmt.Errorf("scanning state: %w", err)
		}
		st.ConfiguredInventory = intPtr(cfgInv)
		st.ConfiguredRefills = intPtr(cfgRefills)
		if lastDose.Valid {
			t, err := parseTime(lastDose.String)
			if err != nil {
				return nil, err
			}
			st.LastDose = &t
		}
		if st.SavedAt, err = parseTime(savedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state: %w", err)
	}
	return out, nil
}

// AppendDose inserts a dose record, generating its ID when empty.
func (r *SQLiteRepository) AppendDose(ctx context.Context, rec medication.DoseRecord) error {
	if rec.ID == "" {
		rec.ID = "dose-" + uuid.NewString()
	}
	if rec.TakenAt.IsZero() {
		rec.TakenAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dose_history
		    (id, entry_id, medication_id, person_id, source, taken_at, inventory_after, doses_today)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EntryID, rec.MedicationID, nullableString(rec.PersonID),
		string(rec.Source), formatTime(rec.TakenAt), rec.InventoryAfter, rec.DosesToday,
	)
	if err != nil {
		return fmt.Errorf("inserting dose for %s/%s: %w", rec.EntryID, rec.MedicationID, err)
	}
	return nil
}

// ListDoses returns one page of dose records matching f.
func (r *SQLiteRepository) ListDoses(ctx context.Context, f Filter) (*ListResult, error) {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	// Empty filter values are passed as NULL and match every row.
	const where = ` WHERE (?1 IS NULL OR entry_id = ?1)
		AND (?2 IS NULL OR medication_id = ?2)
		AND (?3 IS NULL OR taken_at >= ?3)`
	var since any
	if !f.Since.IsZero() {
		since = formatTime(f.Since)
	}
	args := []any{nullableString(f.EntryID), nullableString(f.MedicationID), since}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dose_history"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting doses: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entry_id, medication_id, person_id, source, taken_at, inventory_after, doses_today
		 FROM dose_history`+where+` ORDER BY taken_at DESC, id LIMIT ?4 OFFSET ?5`,
		append(args, f.Limit, f.Offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying doses: %w", err)
	}
	defer rows.Close()

	doses := []Dose{}
	for rows.Next() {
		var (
			d        Dose
			personID sql.NullString
			source   string
			takenAt  string
		)
		if err := rows.Scan(&d.ID, &d.EntryID, &d.MedicationID, &personID,
			&source, &takenAt, &d.InventoryAfter, &d.DosesToday); err != nil {
			return nil, fmt.Errorf("scanning dose: %w", err)
		}
		d.PersonID = personID.String
		d.Source = medication.Source(source)
		if d.TakenAt, err = parseTime(takenAt); err != nil {
			return nil, err
		}
		doses = append(doses, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating doses: %w", err)
	}

	return &ListResult{Doses: doses, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// PruneDoses deletes dose records older than the retention window and
// returns how many were removed.
func (r *SQLiteRepository) PruneDoses(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(r.now().Add(-olderThan))
	res, err := r.db.ExecContext(ctx, "DELETE FROM dose_history WHERE taken_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning doses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning doses: %w", err)
	}
	return n, nil
}

// Timestamps are stored as UTC RFC 3339 with fixed nanosecond width so
// that string order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// nullableString maps "" to SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
