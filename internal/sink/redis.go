package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/medminder/internal/medication"
)

// stateMirror is satisfied by *redis.Client.
type stateMirror interface {
	SetState(ctx context.Context, entryID, medicationID string, state []byte) error
	AppendEvent(ctx context.Context, values map[string]any) (string, error)
}

// RedisMirror keeps the latest state of each medication in a Redis hash
// and appends every event to a stream.
type RedisMirror struct {
	r stateMirror
}

// NewRedisMirror returns a mirror over a Redis client.
func NewRedisMirror(r stateMirror) *RedisMirror {
	return &RedisMirror{r: r}
}

// Publish implements medication.Publisher.
func (m *RedisMirror) Publish(ctx context.Context, ev medication.Event) error {
	state, err := json.Marshal(ev.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	setErr := m.r.SetState(ctx, ev.EntryID, ev.MedicationID, state)

	_, addErr := m.r.AppendEvent(ctx, map[string]any{
		"type":          string(ev.Type),
		"cause":         string(ev.Cause),
		"entry_id":      ev.EntryID,
		"medication_id": ev.MedicationID,
		"source":        string(ev.Source),
		"status":        string(ev.State.Status),
		"inventory":     ev.State.Inventory,
		"doses_today":   ev.State.DosesToday,
		"timestamp":     ev.Timestamp.UTC().Format(time.RFC3339),
	})
	return errors.Join(setErr, addErr)
}
