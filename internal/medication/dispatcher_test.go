package medication

import (
	"context"
	"sync"
	"testing"
)

// blockingTarget records dose calls and can hold the worker until released.
type blockingTarget struct {
	mu      sync.Mutex
	doses   []string
	release chan struct{}
	tags    map[string]string
}

func (b *blockingTarget) EntryID() string { return "home" }

func (b *blockingTarget) ResolveNFC(tagID string) (string, bool) {
	id, ok := b.tags[tagID]
	return id, ok
}

func (b *blockingTarget) RecordDose(_ context.Context, id string, _ Source) (DoseResult, error) {
	if b.release != nil {
		<-b.release
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doses = append(b.doses, id)
	return DoseResult{Recorded: true}, nil
}

func (b *blockingTarget) recorded() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.doses...)
}

func TestDispatcher_RecordsResolvedTagsInOrder(t *testing.T) {
	target := &blockingTarget{tags: map[string]string{"t1": "aspirin", "t2": "zinc"}}
	d := NewDispatcher(target, 8, nil)
	d.Start(context.Background())

	for _, tag := range []string{"t1", "unknown", "t2", "t1"} {
		if !d.Enqueue(tag) {
			t.Fatalf("Enqueue(%q) = false", tag)
		}
	}
	d.Close()

	got := target.recorded()
	want := []string{"aspirin", "zinc", "aspirin"}
	if len(got) != len(want) {
		t.Fatalf("recorded = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("recorded[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDispatcher_FullQueueDropsScan(t *testing.T) {
	target := &blockingTarget{tags: map[string]string{"t1": "aspirin"}, release: make(chan struct{})}
	d := NewDispatcher(target, 1, nil)

	// Worker not started: the single slot fills and the next scan is dropped.
	if !d.Enqueue("t1") {
		t.Fatal("first Enqueue should succeed")
	}
	if d.Enqueue("t1") {
		t.Error("Enqueue on a full queue should return false")
	}

	close(target.release)
	d.Start(context.Background())
	d.Close()
	if n := len(target.recorded()); n != 1 {
		t.Errorf("recorded %d doses, want 1", n)
	}
}

func TestDispatcher_EnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(&blockingTarget{}, 4, nil)
	d.Start(context.Background())
	d.Close()
	d.Close()

	if d.Enqueue("t1") {
		t.Error("Enqueue after Close should return false")
	}
}

func TestDispatcher_DrivesManager(t *testing.T) {
	f := newFixture(t, aspirinEntry())
	d := NewDispatcher(f.mgr, 4, nil)
	d.Start(context.Background())

	d.Enqueue("04:AA:BB")
	d.Enqueue("not-a-tag")
	d.Close()

	st := mustState(t, f.mgr, "aspirin")
	if st.DosesToday != 1 || st.Inventory != 9 {
		t.Errorf("state = %+v, want one dose recorded", st)
	}
	events := f.publisher.all()
	if len(events) != 1 || events[0].Source != SourceNFC {
		t.Errorf("events = %+v, want one nfc-sourced event", events)
	}
}
