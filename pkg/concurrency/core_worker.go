package concurrency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/engine"
)

// Operation types for the worker
type OpType int

const (
	OpSpike    OpType = iota // Handle one spike event
	OpSpikes                 // Handle a batch of spike events in order
	OpAddRow                 // Install or replace a synaptic row
	OpSnapshot               // Copy out the processor state
	OpRestore                // Replace the processor state
	OpGetStats               // Get processor statistics
	OpShutdown               // Shutdown worker
)

// Operation represents a queued operation
type Operation struct {
	Type    OpType
	Payload any
	Result  chan any
	Error   chan error
}

// CoreWorker owns one simulated core. Every operation on the processor runs
// on the worker goroutine, so the processor itself needs no locking.
type CoreWorker struct {
	coreID    int
	processor *engine.Processor

	// Operation queue
	ops chan *Operation

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	opsProcessed uint64
	opsDropped   uint64
	lastOp       time.Time

	mu sync.RWMutex
}

// NewCoreWorker starts a worker around p with a queue of queueSize ops.
func NewCoreWorker(coreID int, p *engine.Processor, queueSize int) *CoreWorker {
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	w := &CoreWorker{
		coreID:    coreID,
		processor: p,
		ops:       make(chan *Operation, queueSize),
		ctx:       ctx,
		cancel:    cancel,
		lastOp:    time.Now(),
	}

	w.wg.Add(1)
	go w.run()

	return w
}

// run is the main worker loop
func (w *CoreWorker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			w.drainOps()
			return

		case op := <-w.ops:
			w.processOp(op)
		}
	}
}

// processOp handles a single operation
func (w *CoreWorker) processOp(op *Operation) {
	w.mu.Lock()
	w.opsProcessed++
	w.lastOp = time.Now()
	w.mu.Unlock()

	var result any
	var err error

	switch op.Type {
	case OpSpike:
		err = w.processor.Handle(op.Payload.(core.SpikeEvent))

	case OpSpikes:
		events := op.Payload.([]core.SpikeEvent)
		for i, ev := range events {
			if err = w.processor.Handle(ev); err != nil {
				err = fmt.Errorf("core %d event %d (%s): %w", w.coreID, i, ev, err)
				break
			}
		}
		result = w.processor.Stats()

	case OpAddRow:
		err = w.processor.AddRow(op.Payload.(*engine.Row))

	case OpSnapshot:
		result = w.processor.State()

	case OpRestore:
		err = w.processor.Restore(op.Payload.(*engine.State))

	case OpGetStats:
		result = w.processor.Stats()

	case OpShutdown:
		w.cancel()
		return

	default:
		err = fmt.Errorf("unknown operation %d", op.Type)
	}

	if op.Result != nil {
		op.Result <- result
	}
	if op.Error != nil {
		op.Error <- err
	}
}

// drainOps processes remaining operations before shutdown
func (w *CoreWorker) drainOps() {
	for {
		select {
		case op := <-w.ops:
			if op.Type == OpShutdown {
				return
			}
			w.processOp(op)
		default:
			return
		}
	}
}

// Submit queues an operation and waits for result
func (w *CoreWorker) Submit(op *Operation) (any, error) {
	op.Result = make(chan any, 1)
	op.Error = make(chan error, 1)

	select {
	case w.ops <- op:
	case <-w.ctx.Done():
		return nil, context.Canceled
	}

	select {
	case result := <-op.Result:
		err := <-op.Error
		return result, err
	case <-w.ctx.Done():
		return nil, context.Canceled
	}
}

// SubmitAsync queues an operation without waiting. It reports false when
// the queue is full and the operation was dropped.
func (w *CoreWorker) SubmitAsync(op *Operation) bool {
	select {
	case w.ops <- op:
		return true
	default:
		w.mu.Lock()
		w.opsDropped++
		w.mu.Unlock()
		return false
	}
}

// HandleSpikes plays events in order and returns the resulting statistics.
// Processing stops at the first rejected event.
func (w *CoreWorker) HandleSpikes(events []core.SpikeEvent) (engine.Stats, error) {
	result, err := w.Submit(&Operation{Type: OpSpikes, Payload: events})
	stats, _ := result.(engine.Stats)
	return stats, err
}

// AddRow installs row on the core.
func (w *CoreWorker) AddRow(row *engine.Row) error {
	_, err := w.Submit(&Operation{Type: OpAddRow, Payload: row})
	return err
}

// Snapshot returns a copy of the processor state.
func (w *CoreWorker) Snapshot() (*engine.State, error) {
	result, err := w.Submit(&Operation{Type: OpSnapshot})
	if err != nil {
		return nil, err
	}
	return result.(*engine.State), nil
}

// Restore replaces the processor state with st.
func (w *CoreWorker) Restore(st *engine.State) error {
	_, err := w.Submit(&Operation{Type: OpRestore, Payload: st})
	return err
}

// ProcessorStats returns the processor counters.
func (w *CoreWorker) ProcessorStats() (engine.Stats, error) {
	result, err := w.Submit(&Operation{Type: OpGetStats})
	stats, _ := result.(engine.Stats)
	return stats, err
}

// Stop gracefully stops the worker
func (w *CoreWorker) Stop() {
	w.cancel()
	w.wg.Wait()
}

// CoreID returns the index of the simulated core.
func (w *CoreWorker) CoreID() int { return w.coreID }

// Stats returns worker stats
func (w *CoreWorker) Stats() map[string]any {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return map[string]any{
		"core_id":        w.coreID,
		"rule":           w.processor.Rule().Kind().String(),
		"ops_processed":  w.opsProcessed,
		"ops_dropped":    w.opsDropped,
		"last_op":        w.lastOp,
		"queue_length":   len(w.ops),
		"queue_capacity": cap(w.ops),
	}
}
