package engine

import (
	"errors"
	"testing"

	"github.com/c2h5oh/datasize"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/synapse"
	"github.com/denizumutdereli/stdpcore/pkg/timing"
	"github.com/denizumutdereli/stdpcore/pkg/weight/weighttest"
)

func testConfig(rule string) *core.Config {
	cfg := core.DefaultConfig()
	cfg.Rule.Name = rule
	cfg.Rule.AccumulatorDepression = -5
	cfg.Rule.AccumulatorPotentiation = 5
	return cfg
}

func newRecordedProcessor(t *testing.T, rule string, neurons int) (*Processor, *weighttest.Recorder) {
	t.Helper()
	cfg := testConfig(rule)
	kind, err := timing.ParseKind(rule)
	if err != nil {
		t.Fatalf("ParseKind failed: %v", err)
	}
	rec := &weighttest.Recorder{}
	r, err := timing.New(kind, BuildRegion(kind, cfg.Rule), rec, nil)
	if err != nil {
		t.Fatalf("timing.New failed: %v", err)
	}
	p, err := NewProcessor(r, Options{NumNeurons: neurons, NumSynapseTypes: 1})
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}
	return p, rec
}

func newBootedProcessor(t *testing.T, cfg *core.Config, neurons int) *Processor {
	t.Helper()
	blob, err := BuildBlob(cfg)
	if err != nil {
		t.Fatalf("BuildBlob failed: %v", err)
	}
	r, err := LoadRule(blob, nil)
	if err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}
	p, err := NewProcessor(r, Options{NumNeurons: neurons, NumSynapseTypes: blob.NumTypes})
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}
	return p
}

func accumulatorOf(t *testing.T, p *Processor, pre core.NeuronID, i int) int32 {
	t.Helper()
	row, ok := p.Row(pre)
	if !ok {
		t.Fatalf("row n%d missing", pre)
	}
	return p.Rule().Layout().Unpack(row.Synapses[i].Word)[synapse.FieldAccumulator]
}

func TestProcessorReplaysPostBeforePre(t *testing.T) {
	p, rec := newRecordedProcessor(t, "recurrent-fixed", 2)
	if err := p.AddRow(&Row{Pre: 0, Synapses: []PlasticSynapse{{Target: 0}, {Target: 1}}}); err != nil {
		t.Fatalf("AddRow failed: %v", err)
	}

	// Post on n0 at 5 opens its post window; the pre-spike at 10 lands in it.
	mustHandle(t, p, core.SpikeEvent{Time: 5, Kind: core.SpikePost, Neuron: 0})
	mustHandle(t, p, core.SpikeEvent{Time: 10, Kind: core.SpikePre, Neuron: 0})

	if got := accumulatorOf(t, p, 0, 0); got != -1 {
		t.Errorf("synapse to n0: expected accumulator -1, got %d", got)
	}
	if got := accumulatorOf(t, p, 0, 1); got != 0 {
		t.Errorf("synapse to n1: expected accumulator 0, got %d", got)
	}

	row, _ := p.Row(0)
	if row.Header.LastPreTime != 10 {
		t.Errorf("expected header time 10, got %d", row.Header.LastPreTime)
	}

	// The post at 5 was consumed; the pre at 50 only opens a pre window.
	mustHandle(t, p, core.SpikeEvent{Time: 50, Kind: core.SpikePre, Neuron: 0})
	mustHandle(t, p, core.SpikeEvent{Time: 60, Kind: core.SpikePost, Neuron: 0})
	mustHandle(t, p, core.SpikeEvent{Time: 100, Kind: core.SpikePre, Neuron: 0})

	if got := accumulatorOf(t, p, 0, 0); got != 0 {
		t.Errorf("expected accumulator back at 0 after pre->post pairing, got %d", got)
	}
	if len(rec.Calls) != 0 {
		t.Errorf("unexpected weight calls %v", rec.Calls)
	}

	st := p.Stats()
	if st.PreSpikes != 3 || st.PostSpikes != 2 || st.SynapseUpdates != 6 || st.PostReplays != 2 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestProcessorUnroutedPreSpike(t *testing.T) {
	p, _ := newRecordedProcessor(t, "recurrent-fixed", 1)
	if err := p.ProcessPreSpike(42, 3); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if p.Stats().UnroutedPreSpikes != 1 {
		t.Errorf("expected one unrouted spike, got %+v", p.Stats())
	}
}

func TestProcessorRejectsNonMonotonicTime(t *testing.T) {
	p, _ := newRecordedProcessor(t, "recurrent-fixed", 1)
	if err := p.AddRow(&Row{Pre: 3, Synapses: []PlasticSynapse{{Target: 0}}}); err != nil {
		t.Fatalf("AddRow failed: %v", err)
	}

	mustHandle(t, p, core.SpikeEvent{Time: 20, Kind: core.SpikePost, Neuron: 0})
	if err := p.RecordPostSpike(0, 19); !errors.Is(err, core.ErrNonMonotonicTime) {
		t.Errorf("post: expected ErrNonMonotonicTime, got %v", err)
	}
	// Equal times are allowed.
	if err := p.RecordPostSpike(0, 20); err != nil {
		t.Errorf("post at same time: unexpected error %v", err)
	}

	mustHandle(t, p, core.SpikeEvent{Time: 30, Kind: core.SpikePre, Neuron: 3})
	if err := p.ProcessPreSpike(3, 29); !errors.Is(err, core.ErrNonMonotonicTime) {
		t.Errorf("pre: expected ErrNonMonotonicTime, got %v", err)
	}
}

func TestProcessorRejectsBadRows(t *testing.T) {
	p, _ := newRecordedProcessor(t, "recurrent-fixed", 2)

	err := p.AddRow(&Row{Pre: 0, Synapses: []PlasticSynapse{{Target: 2}}})
	if !errors.Is(err, core.ErrNeuronOutOfRange) {
		t.Errorf("expected ErrNeuronOutOfRange, got %v", err)
	}
	err = p.AddRow(&Row{Pre: 0, Synapses: []PlasticSynapse{{Target: 1, Type: 1}}})
	if !errors.Is(err, core.ErrUnknownSynapseType) {
		t.Errorf("expected ErrUnknownSynapseType, got %v", err)
	}
	if _, err := p.PostHistory(9); !errors.Is(err, core.ErrNeuronOutOfRange) {
		t.Errorf("expected ErrNeuronOutOfRange, got %v", err)
	}
	if err := p.Handle(core.SpikeEvent{Kind: 7}); !errors.Is(err, core.ErrUnknownSpikeKind) {
		t.Errorf("expected ErrUnknownSpikeKind, got %v", err)
	}
}

func TestProcessorBudget(t *testing.T) {
	rule := newRecordedRule(t)
	limit := Footprint(4, 1, 3)
	p, err := NewProcessor(rule, Options{NumNeurons: 4, Budget: limit})
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}

	three := []PlasticSynapse{{Target: 0}, {Target: 1}, {Target: 2}}
	if err := p.AddRow(&Row{Pre: 0, Synapses: three}); err != nil {
		t.Fatalf("row within budget rejected: %v", err)
	}
	if err := p.AddRow(&Row{Pre: 1, Synapses: three[:1]}); !errors.Is(err, core.ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded, got %v", err)
	}
	// Replacing a row only counts the difference.
	if err := p.AddRow(&Row{Pre: 0, Synapses: three[:2]}); err != nil {
		t.Errorf("replacing a row: unexpected error %v", err)
	}
	if p.Footprint() != Footprint(4, 1, 2) {
		t.Errorf("expected footprint %v, got %v", Footprint(4, 1, 2), p.Footprint())
	}

	if _, err := NewProcessor(rule, Options{NumNeurons: 1000, Budget: datasize.ByteSize(64)}); !errors.Is(err, core.ErrBudgetExceeded) {
		t.Errorf("histories alone over budget: expected ErrBudgetExceeded, got %v", err)
	}
	if _, err := NewProcessor(rule, Options{}); err == nil {
		t.Error("expected error for zero neurons")
	}
	if _, err := NewProcessor(nil, Options{NumNeurons: 1}); err == nil {
		t.Error("expected error for nil rule")
	}
}

func TestProcessorDualFSMDecayThroughRows(t *testing.T) {
	cfg := testConfig("recurrent-dual-fsm-decay")
	p := newBootedProcessor(t, cfg, 1)
	if err := p.AddRow(&Row{Pre: 0, Synapses: []PlasticSynapse{{Target: 0}}}); err != nil {
		t.Fatalf("AddRow failed: %v", err)
	}
	h, _ := p.PostHistory(0)
	if h.Last().Trace != timing.InitialDecayPostTrace {
		t.Errorf("expected sentinel trace %d, got %d", timing.InitialDecayPostTrace, h.Last().Trace)
	}

	for _, ev := range []core.SpikeEvent{
		{Time: 100, Kind: core.SpikePre},
		{Time: 101, Kind: core.SpikePost},
		{Time: 200, Kind: core.SpikePre},
	} {
		mustHandle(t, p, ev)
	}
	// Both cores boot the same generator, so they must agree.
	first := accumulatorOf(t, p, 0, 0)

	q := newBootedProcessor(t, cfg, 1)
	if err := q.AddRow(&Row{Pre: 0, Synapses: []PlasticSynapse{{Target: 0}}}); err != nil {
		t.Fatalf("AddRow failed: %v", err)
	}
	for _, ev := range []core.SpikeEvent{
		{Time: 100, Kind: core.SpikePre},
		{Time: 101, Kind: core.SpikePost},
		{Time: 200, Kind: core.SpikePre},
	} {
		mustHandle(t, q, ev)
	}
	if got := accumulatorOf(t, q, 0, 0); got != first {
		t.Errorf("fresh cores diverged: %d vs %d", first, got)
	}
	if first < -4 || first > 4 {
		t.Errorf("accumulator %d outside bounds", first)
	}
}

func TestProcessorVogelsChangesWeight(t *testing.T) {
	cfg := testConfig("vogels-2011")
	cfg.Weight.Types = []core.WeightTypeConfig{{MinWeight: 0, MaxWeight: 65535, A2Plus: 2048, A2Minus: 2048}}
	p := newBootedProcessor(t, cfg, 1)
	if err := p.AddRow(&Row{Pre: 0, Synapses: []PlasticSynapse{{Word: 1000, Target: 0}}}); err != nil {
		t.Fatalf("AddRow failed: %v", err)
	}

	mustHandle(t, p, core.SpikeEvent{Time: 10, Kind: core.SpikePost})
	mustHandle(t, p, core.SpikeEvent{Time: 10, Kind: core.SpikePre})

	// The replayed post sees an empty pre trace; the pre-spike then adds the
	// fresh post trace (One) minus alpha.
	row, _ := p.Row(0)
	want := synapse.Word(1000 + core.One - cfg.Rule.Alpha)
	if row.Synapses[0].Word != want {
		t.Errorf("expected weight %d, got %d", want, row.Synapses[0].Word)
	}
	if row.Header.LastPreTrace != timing.Trace(core.One) {
		t.Errorf("expected pre trace One, got %d", row.Header.LastPreTrace)
	}
}

func TestProcessorStateRoundTrip(t *testing.T) {
	p, _ := newRecordedProcessor(t, "recurrent-fixed", 2)
	if err := p.AddRow(&Row{Pre: 1, Synapses: []PlasticSynapse{{Target: 0}, {Target: 1}}}); err != nil {
		t.Fatalf("AddRow failed: %v", err)
	}
	mustHandle(t, p, core.SpikeEvent{Time: 5, Kind: core.SpikePost, Neuron: 1})
	mustHandle(t, p, core.SpikeEvent{Time: 9, Kind: core.SpikePre, Neuron: 1})
	mustHandle(t, p, core.SpikeEvent{Time: 12, Kind: core.SpikePost, Neuron: 0})

	st := p.State()
	q, _ := newRecordedProcessor(t, "recurrent-fixed", 2)
	if err := q.Restore(st); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	// Mutating the snapshot must not reach the restored processor.
	st.Rows[0].Synapses[0].Word = 0xffff

	pr, _ := p.Row(1)
	qr, _ := q.Row(1)
	if qr.Header != pr.Header || qr.Synapses[0] != pr.Synapses[0] || qr.Synapses[1] != pr.Synapses[1] {
		t.Errorf("restored row differs: %+v vs %+v", qr, pr)
	}
	for n := core.NeuronID(0); n < 2; n++ {
		ph, _ := p.PostHistory(n)
		qh, _ := q.PostHistory(n)
		if *ph != *qh {
			t.Errorf("history n%d differs: %+v vs %+v", n, ph.Entries(), qh.Entries())
		}
	}
	if q.Stats() != p.Stats() {
		t.Errorf("stats differ: %+v vs %+v", q.Stats(), p.Stats())
	}

	other, _ := newRecordedProcessor(t, "recurrent-stochastic", 2)
	if err := other.Restore(p.State()); err == nil {
		t.Error("expected error restoring into a different rule")
	}
	small, _ := newRecordedProcessor(t, "recurrent-fixed", 1)
	if err := small.Restore(p.State()); err == nil {
		t.Error("expected error restoring into a smaller core")
	}
}

func TestProcessorRestoreFailureKeepsState(t *testing.T) {
	p, _ := newRecordedProcessor(t, "recurrent-fixed", 2)
	if err := p.AddRow(&Row{Pre: 3, Synapses: []PlasticSynapse{{Target: 1}}}); err != nil {
		t.Fatalf("AddRow failed: %v", err)
	}
	mustHandle(t, p, core.SpikeEvent{Time: 4, Kind: core.SpikePost, Neuron: 1})
	mustHandle(t, p, core.SpikeEvent{Time: 6, Kind: core.SpikePre, Neuron: 3})
	before := p.State()

	bad := &State{
		Rule: before.Rule,
		Rows: []*Row{
			{Pre: 0, Synapses: []PlasticSynapse{{Target: 0}}},
			{Pre: 1, Synapses: []PlasticSynapse{{Target: 9}}},
		},
		Posts: [][]timing.Spike{nil, nil},
	}
	if err := p.Restore(bad); !errors.Is(err, core.ErrNeuronOutOfRange) {
		t.Fatalf("expected ErrNeuronOutOfRange, got %v", err)
	}

	if ids := p.RowIDs(); len(ids) != 1 || ids[0] != 3 {
		t.Errorf("rows changed by failed restore: %v", ids)
	}
	if p.Footprint() != Footprint(2, 1, 1) {
		t.Errorf("synapse count changed by failed restore: %v", p.Footprint())
	}
	h, _ := p.PostHistory(1)
	if h.Last().Time != 4 {
		t.Errorf("post history changed by failed restore: %+v", h.Entries())
	}
	if p.Stats() != before.Stats {
		t.Errorf("stats changed by failed restore: %+v", p.Stats())
	}
}

func TestRowIDsSorted(t *testing.T) {
	p, _ := newRecordedProcessor(t, "recurrent-fixed", 1)
	for _, id := range []core.NeuronID{9, 2, 5} {
		if err := p.AddRow(&Row{Pre: id}); err != nil {
			t.Fatalf("AddRow failed: %v", err)
		}
	}
	ids := p.RowIDs()
	if len(ids) != 3 || ids[0] != 2 || ids[1] != 5 || ids[2] != 9 {
		t.Errorf("expected [2 5 9], got %v", ids)
	}
}

func mustHandle(t *testing.T, p *Processor, ev core.SpikeEvent) {
	t.Helper()
	if err := p.Handle(ev); err != nil {
		t.Fatalf("Handle(%s) failed: %v", ev, err)
	}
}

func newRecordedRule(t *testing.T) timing.Rule {
	t.Helper()
	r, err := timing.New(timing.KindRecurrentFixed,
		BuildRegion(timing.KindRecurrentFixed, testConfig("recurrent-fixed").Rule),
		&weighttest.Recorder{}, nil)
	if err != nil {
		t.Fatalf("timing.New failed: %v", err)
	}
	return r
}
