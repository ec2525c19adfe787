package concurrency

import (
	"context"
	"errors"
	"testing"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/persistence"
)

func setupTestPool(t *testing.T, rule string, store persistence.Store) *Pool {
	t.Helper()
	pool, err := NewPool(PoolOptions{
		RunID:     "run-test",
		Blob:      newTestBlob(t, rule),
		Rule:      core.DefaultConfig().Rule,
		Cores:     3,
		Neurons:   4,
		QueueSize: 8,
	}, store)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	t.Cleanup(func() { pool.stopWorkers() })

	pool.ForEach(func(coreID int, w *CoreWorker) {
		if err := w.AddRow(testRow(0, 1, 2, 3)); err != nil {
			t.Fatalf("AddRow on core %d failed: %v", coreID, err)
		}
	})
	return pool
}

func trainFor(offset core.Time) []core.SpikeEvent {
	var events []core.SpikeEvent
	for k := core.Time(0); k < 10; k++ {
		base := offset + k*7
		events = append(events,
			core.SpikeEvent{Kind: core.SpikePost, Neuron: core.NeuronID(1 + k%3), Time: base},
			core.SpikeEvent{Kind: core.SpikePre, Neuron: 0, Time: base + 2},
		)
	}
	return events
}

func TestNewPoolValidation(t *testing.T) {
	if _, err := NewPool(PoolOptions{Cores: 1}, nil); err == nil {
		t.Error("expected error without a blob")
	}
	if _, err := NewPool(PoolOptions{Blob: newTestBlob(t, "recurrent-fixed")}, nil); err == nil {
		t.Error("expected error with zero cores")
	}
	_, err := NewPool(PoolOptions{Blob: newTestBlob(t, "recurrent-fixed"), Cores: 2}, nil)
	if err == nil {
		t.Error("expected error with zero neurons")
	}
}

func TestPoolGet(t *testing.T) {
	pool := setupTestPool(t, "recurrent-fixed", nil)

	if pool.ActiveCount() != 3 {
		t.Errorf("expected 3 workers, got %d", pool.ActiveCount())
	}
	w, err := pool.Get(2)
	if err != nil || w.CoreID() != 2 {
		t.Errorf("Get(2) returned %v, %v", w, err)
	}
	for _, id := range []int{-1, 3} {
		if _, err := pool.Get(id); !errors.Is(err, core.ErrCoreNotFound) {
			t.Errorf("expected ErrCoreNotFound for %d, got %v", id, err)
		}
	}
}

func TestPoolRun(t *testing.T) {
	pool := setupTestPool(t, "recurrent-dual-fsm", nil)

	batches := map[int][]core.SpikeEvent{
		0: trainFor(0),
		1: trainFor(100),
		2: trainFor(0),
	}
	if err := pool.Run(context.Background(), batches); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	pool.ForEach(func(coreID int, w *CoreWorker) {
		stats, err := w.ProcessorStats()
		if err != nil {
			t.Fatalf("ProcessorStats failed: %v", err)
		}
		if stats.PreSpikes != 10 || stats.PostSpikes != 10 || stats.SynapseUpdates != 30 {
			t.Errorf("core %d: unexpected stats %+v", coreID, stats)
		}
	})
	if got := pool.Stats()["total_dispatched"].(uint64); got != 60 {
		t.Errorf("expected 60 dispatched events, got %d", got)
	}
}

func TestPoolRunJoinsErrors(t *testing.T) {
	pool := setupTestPool(t, "recurrent-fixed", nil)

	bad := []core.SpikeEvent{
		{Kind: core.SpikePre, Neuron: 0, Time: 10},
		{Kind: core.SpikePre, Neuron: 0, Time: 1},
	}
	err := pool.Run(context.Background(), map[int][]core.SpikeEvent{
		0: trainFor(0),
		1: bad,
		2: bad,
	})
	if !errors.Is(err, core.ErrNonMonotonicTime) {
		t.Fatalf("expected ErrNonMonotonicTime, got %v", err)
	}

	stats, _ := pool.Dispatch(0, nil)
	if stats.PreSpikes != 10 {
		t.Errorf("healthy core must finish its batch, got %+v", stats)
	}

	if err := pool.Run(context.Background(), map[int][]core.SpikeEvent{7: nil}); !errors.Is(err, core.ErrCoreNotFound) {
		t.Errorf("expected ErrCoreNotFound, got %v", err)
	}
}

func TestPoolRunCanceled(t *testing.T) {
	pool := setupTestPool(t, "recurrent-fixed", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pool.Run(ctx, map[int][]core.SpikeEvent{0: trainFor(0)}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPoolPersistAndRestore(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()

	pool := setupTestPool(t, "recurrent-fixed", store)
	if err := pool.Run(ctx, map[int][]core.SpikeEvent{0: trainFor(0), 2: trainFor(50)}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := pool.PersistAll(ctx); err != nil {
		t.Fatalf("PersistAll failed: %v", err)
	}
	ids, err := store.List(ctx, "run-test")
	if err != nil || len(ids) != 3 {
		t.Fatalf("expected 3 saved cores, got %v (%v)", ids, err)
	}

	restored, err := NewPool(PoolOptions{
		RunID:     "run-test",
		Blob:      newTestBlob(t, "recurrent-fixed"),
		Rule:      core.DefaultConfig().Rule,
		Cores:     3,
		Neurons:   4,
		QueueSize: 8,
	}, store)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer restored.stopWorkers()
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	for coreID := 0; coreID < 3; coreID++ {
		a, _ := pool.Get(coreID)
		b, _ := restored.Get(coreID)
		want, _ := a.Snapshot()
		got, _ := b.Snapshot()
		if want.Stats != got.Stats || len(want.Rows) != len(got.Rows) {
			t.Fatalf("core %d: restored state differs", coreID)
		}
		for i, syn := range want.Rows[0].Synapses {
			if got.Rows[0].Synapses[i] != syn {
				t.Errorf("core %d synapse %d: expected %+v, got %+v", coreID, i, syn, got.Rows[0].Synapses[i])
			}
		}
	}
}

func TestPoolShutdownPersists(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	pool := setupTestPool(t, "recurrent-fixed", store)

	if _, err := pool.Dispatch(1, trainFor(0)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if err := pool.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if pool.ActiveCount() != 0 {
		t.Errorf("expected no active workers after shutdown")
	}
	if _, err := pool.Get(0); !errors.Is(err, core.ErrCoreNotFound) {
		t.Errorf("expected ErrCoreNotFound after shutdown, got %v", err)
	}

	snap, err := store.Load(ctx, "run-test", 1)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap.State.Stats.PreSpikes != 10 {
		t.Errorf("expected persisted pre-spikes, got %+v", snap.State.Stats)
	}
}

func TestPoolWithoutStore(t *testing.T) {
	pool := setupTestPool(t, "recurrent-fixed", nil)
	if err := pool.PersistAll(context.Background()); err == nil {
		t.Error("expected error when persisting without a store")
	}
	if err := pool.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown without store failed: %v", err)
	}
}
