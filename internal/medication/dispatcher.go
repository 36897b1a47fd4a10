package medication

import (
	"context"
	"sync"
)

// DefaultQueueSize is the tag-scan queue capacity when none is configured.
const DefaultQueueSize = 32

// doseTarget is what the Dispatcher drives. *Manager implements it.
type doseTarget interface {
	EntryID() string
	ResolveNFC(tagID string) (string, bool)
	RecordDose(ctx context.Context, medicationID string, source Source) (DoseResult, error)
}

// Dispatcher decouples tag-scan events from dose recording.
//
// Enqueue never blocks and never takes the Manager lock. A single worker
// drains the queue in arrival order, resolving each tag and recording the
// dose, so scans are applied one at a time.
type Dispatcher struct {
	target doseTarget
	queue  chan string
	logger Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher with a buffered queue of the given size.
func NewDispatcher(target doseTarget, size int, logger Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		target: target,
		queue:  make(chan string, size),
		logger: logger,
	}
}

// Start launches the worker. It exits when ctx is cancelled or Close drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.run(ctx)
}

// Enqueue submits a scanned tag. It returns false when the queue is full or
// the dispatcher is closed; the scan is dropped and logged.
func (d *Dispatcher) Enqueue(tagID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("tag scan dropped: dispatcher closed", "entry_id", d.target.EntryID())
		return false
	}
	select {
	case d.queue <- tagID:
		return true
	default:
		d.logger.Warn("tag scan dropped: queue full", "entry_id", d.target.EntryID(), "capacity", cap(d.queue))
		return false
	}
}

// Close stops accepting scans, lets the worker drain what is queued, and waits for it.
// Safe to call multiple times.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case tagID, ok := <-d.queue:
			if !ok {
				return
			}
			d.handle(ctx, tagID)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, tagID string) {
	medID, ok := d.target.ResolveNFC(tagID)
	if !ok {
		return
	}
	if _, err := d.target.RecordDose(ctx, medID, SourceNFC); err != nil {
		d.logger.Error("tag-triggered dose failed", "entry_id", d.target.EntryID(), "medication_id", medID, "error", err)
	}
}
