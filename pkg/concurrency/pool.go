package concurrency

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/engine"
	"github.com/denizumutdereli/stdpcore/pkg/persistence"
)

// PoolOptions describes the cores of one run.
type PoolOptions struct {
	RunID     string
	Blob      *engine.Blob
	Rule      core.RuleConfig
	Cores     int
	Neurons   int
	QueueSize int
	Budget    datasize.ByteSize
}

// Pool drives a fixed set of simulated cores, one worker each. All cores run
// the same rule blob; each gets its own rule instance and generator.
type Pool struct {
	runID   string
	workers []*CoreWorker
	store   persistence.Store

	mu      sync.RWMutex
	stopped bool

	// Stats
	totalDispatched uint64
	totalPersisted  uint64
}

// NewPool boots opts.Cores processors from opts.Blob. store may be nil when
// the run is not persisted.
func NewPool(opts PoolOptions, store persistence.Store) (*Pool, error) {
	if opts.Blob == nil {
		return nil, errors.New("pool needs a rule blob")
	}
	if opts.Cores <= 0 {
		return nil, fmt.Errorf("pool needs at least one core, got %d", opts.Cores)
	}

	p := &Pool{
		runID:   opts.RunID,
		workers: make([]*CoreWorker, 0, opts.Cores),
		store:   store,
	}
	for i := 0; i < opts.Cores; i++ {
		src, err := engine.SourceFor(opts.Blob.Kind, opts.Rule, i)
		if err != nil {
			p.stopWorkers()
			return nil, err
		}
		rule, err := engine.LoadRule(opts.Blob, src)
		if err != nil {
			p.stopWorkers()
			return nil, fmt.Errorf("core %d: %w", i, err)
		}
		proc, err := engine.NewProcessor(rule, engine.Options{
			NumNeurons:      opts.Neurons,
			NumSynapseTypes: opts.Blob.NumTypes,
			Budget:          opts.Budget,
		})
		if err != nil {
			p.stopWorkers()
			return nil, fmt.Errorf("core %d: %w", i, err)
		}
		p.workers = append(p.workers, NewCoreWorker(i, proc, opts.QueueSize))
	}
	log.Printf("pool %s: %d cores running %s", p.runID, len(p.workers), opts.Blob.Kind)
	return p, nil
}

// RunID returns the run the pool belongs to.
func (p *Pool) RunID() string { return p.runID }

// Get returns the worker of core coreID.
func (p *Pool) Get(coreID int) (*CoreWorker, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped || coreID < 0 || coreID >= len(p.workers) {
		return nil, fmt.Errorf("%w: %d", core.ErrCoreNotFound, coreID)
	}
	return p.workers[coreID], nil
}

// ActiveCount returns number of active workers
func (p *Pool) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return 0
	}
	return len(p.workers)
}

// Dispatch plays events on one core and waits for them to finish.
func (p *Pool) Dispatch(coreID int, events []core.SpikeEvent) (engine.Stats, error) {
	w, err := p.Get(coreID)
	if err != nil {
		return engine.Stats{}, err
	}
	stats, err := w.HandleSpikes(events)

	p.mu.Lock()
	p.totalDispatched += uint64(len(events))
	p.mu.Unlock()
	return stats, err
}

// Run dispatches every core's batch concurrently and waits for all of them.
// The errors of all failing cores are joined.
func (p *Pool) Run(ctx context.Context, batches map[int][]core.SpikeEvent) error {
	for coreID := range batches {
		if _, err := p.Get(coreID); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, 0, len(batches))
	var errMu sync.Mutex

	for coreID, events := range batches {
		wg.Add(1)
		go func(coreID int, events []core.SpikeEvent) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
				return
			}
			if _, err := p.Dispatch(coreID, events); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(coreID, events)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// PersistAll saves a snapshot of every core.
func (p *Pool) PersistAll(ctx context.Context) error {
	if p.store == nil {
		return errors.New("pool has no snapshot store")
	}

	var errs []error
	p.ForEach(func(coreID int, w *CoreWorker) {
		st, err := w.Snapshot()
		if err != nil {
			errs = append(errs, fmt.Errorf("core %d: %w", coreID, err))
			return
		}
		snap := &persistence.Snapshot{
			RunID:   p.runID,
			CoreID:  coreID,
			SavedAt: time.Now().Unix(),
			State:   st,
		}
		if err := p.store.Save(ctx, snap); err != nil {
			errs = append(errs, fmt.Errorf("core %d: %w", coreID, err))
			return
		}
		p.mu.Lock()
		p.totalPersisted++
		p.mu.Unlock()
	})
	return errors.Join(errs...)
}

// Restore loads every core's snapshot of the pool's run.
func (p *Pool) Restore(ctx context.Context) error {
	if p.store == nil {
		return errors.New("pool has no snapshot store")
	}

	var errs []error
	p.ForEach(func(coreID int, w *CoreWorker) {
		snap, err := p.store.Load(ctx, p.runID, coreID)
		if err != nil {
			errs = append(errs, err)
			return
		}
		if err := w.Restore(snap.State); err != nil {
			errs = append(errs, fmt.Errorf("core %d: %w", coreID, err))
		}
	})
	return errors.Join(errs...)
}

// Shutdown stops all workers, persisting their state first when the pool
// has a store.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	if p.store != nil && p.ActiveCount() > 0 {
		err = p.PersistAll(ctx)
	}
	p.stopWorkers()
	return err
}

func (p *Pool) stopWorkers() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	workers := p.workers
	p.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
}

// Stats returns pool statistics
func (p *Pool) Stats() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workerStats := make(map[int]any, len(p.workers))
	for _, w := range p.workers {
		workerStats[w.CoreID()] = w.Stats()
	}

	return map[string]any{
		"run_id":           p.runID,
		"active_workers":   len(p.workers),
		"total_dispatched": p.totalDispatched,
		"total_persisted":  p.totalPersisted,
		"worker_details":   workerStats,
	}
}

// ForEach executes fn on each worker in core order.
func (p *Pool) ForEach(fn func(int, *CoreWorker)) {
	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		return
	}
	workers := append([]*CoreWorker(nil), p.workers...)
	p.mu.RUnlock()

	for _, w := range workers {
		fn(w.CoreID(), w)
	}
}
