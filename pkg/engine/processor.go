// Package engine drives a timing rule over the synaptic rows of one simulated
// core. Post-spikes are only recorded when they happen; the synapses they
// affect are updated later, when the next pre-spike loads the row, by
// replaying the recorded post-spikes in time order before the pre-spike
// itself.
package engine

import (
	"fmt"
	"sort"

	"github.com/c2h5oh/datasize"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/timing"
)

// Options configure a Processor.
type Options struct {
	// NumNeurons is the number of post-synaptic neurons on the core.
	NumNeurons int

	// NumSynapseTypes bounds PlasticSynapse.Type. Zero allows only type 0.
	NumSynapseTypes int

	// Budget caps the core's footprint.
	Budget datasize.ByteSize
}

// Stats counts what a processor has done.
type Stats struct {
	PreSpikes         uint64 `msgpack:"pre_spikes"`
	PostSpikes        uint64 `msgpack:"post_spikes"`
	UnroutedPreSpikes uint64 `msgpack:"unrouted_pre_spikes"`
	SynapseUpdates    uint64 `msgpack:"synapse_updates"`
	PostReplays       uint64 `msgpack:"post_replays"`
}

// Processor owns the rows and post histories of one core. It is not safe for
// concurrent use; pkg/concurrency gives each processor its own goroutine.
type Processor struct {
	rule     timing.Rule
	numTypes int

	posts        []PostHistory
	rows         map[core.NeuronID]*Row
	synapseCount int

	budget Budget
	stats  Stats
}

// NewProcessor creates a processor with empty histories and no rows.
func NewProcessor(rule timing.Rule, opts Options) (*Processor, error) {
	if rule == nil {
		return nil, fmt.Errorf("engine: nil timing rule")
	}
	if opts.NumNeurons <= 0 {
		return nil, fmt.Errorf("engine: neuron count must be positive, got %d", opts.NumNeurons)
	}
	numTypes := opts.NumSynapseTypes
	if numTypes <= 0 {
		numTypes = 1
	}
	p := &Processor{
		rule:     rule,
		numTypes: numTypes,
		posts:    make([]PostHistory, opts.NumNeurons),
		rows:     make(map[core.NeuronID]*Row),
		budget:   Budget{Limit: opts.Budget},
	}
	initial := rule.InitialPostTrace()
	for i := range p.posts {
		p.posts[i] = NewPostHistory(initial)
	}
	if err := p.budget.Check(p.Footprint()); err != nil {
		return nil, err
	}
	return p, nil
}

// Rule returns the processor's timing rule.
func (p *Processor) Rule() timing.Rule { return p.rule }

// NumNeurons returns the number of post-synaptic neurons.
func (p *Processor) NumNeurons() int { return len(p.posts) }

// Footprint estimates the processor's current memory use.
func (p *Processor) Footprint() datasize.ByteSize {
	return Footprint(len(p.posts), len(p.rows), p.synapseCount)
}

// Stats returns a copy of the counters.
func (p *Processor) Stats() Stats { return p.stats }

// AddRow installs or replaces the row of pre. Targets and synapse types are
// checked here so row passes never have to.
func (p *Processor) AddRow(row *Row) error {
	syns, err := p.fitRow(p.rows, p.synapseCount, row)
	if err != nil {
		return err
	}
	p.rows[row.Pre] = row
	p.synapseCount = syns
	return nil
}

// fitRow checks row against the core and the budget as if it were placed
// into rows, which currently hold synapses synapses, and returns the new
// synapse count. rows is not modified.
func (p *Processor) fitRow(rows map[core.NeuronID]*Row, synapses int, row *Row) (int, error) {
	for i, s := range row.Synapses {
		if int(s.Target) >= len(p.posts) {
			return 0, fmt.Errorf("%w: row n%d synapse %d targets n%d, core has %d neurons",
				core.ErrNeuronOutOfRange, row.Pre, i, s.Target, len(p.posts))
		}
		if int(s.Type) >= p.numTypes {
			return 0, fmt.Errorf("%w: row n%d synapse %d has type %d, %d configured",
				core.ErrUnknownSynapseType, row.Pre, i, s.Type, p.numTypes)
		}
	}

	n, syns := len(rows), synapses+len(row.Synapses)
	if old, ok := rows[row.Pre]; ok {
		syns -= len(old.Synapses)
	} else {
		n++
	}
	if err := p.budget.Check(Footprint(len(p.posts), n, syns)); err != nil {
		return 0, fmt.Errorf("row n%d: %w", row.Pre, err)
	}
	return syns, nil
}

// Row returns the row of pre.
func (p *Processor) Row(pre core.NeuronID) (*Row, bool) {
	r, ok := p.rows[pre]
	return r, ok
}

// RowIDs returns the pre-synaptic neurons with rows, ascending.
func (p *Processor) RowIDs() []core.NeuronID {
	ids := make([]core.NeuronID, 0, len(p.rows))
	for id := range p.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PostHistory returns the history of post-synaptic neuron n.
func (p *Processor) PostHistory(n core.NeuronID) (*PostHistory, error) {
	if int(n) >= len(p.posts) {
		return nil, fmt.Errorf("%w: n%d", core.ErrNeuronOutOfRange, n)
	}
	return &p.posts[n], nil
}

// Handle dispatches a spike event.
func (p *Processor) Handle(ev core.SpikeEvent) error {
	switch ev.Kind {
	case core.SpikePre:
		return p.ProcessPreSpike(ev.Neuron, ev.Time)
	case core.SpikePost:
		return p.RecordPostSpike(ev.Neuron, ev.Time)
	default:
		return fmt.Errorf("%w: %d", core.ErrUnknownSpikeKind, ev.Kind)
	}
}

// RecordPostSpike adds a post-spike of neuron n to its history.
func (p *Processor) RecordPostSpike(n core.NeuronID, time core.Time) error {
	h, err := p.PostHistory(n)
	if err != nil {
		return err
	}
	last := h.Last()
	if time < last.Time {
		return fmt.Errorf("%w: post n%d at %d, last at %d", core.ErrNonMonotonicTime, n, time, last.Time)
	}
	h.Add(time, p.rule.AddPostSpike(time, last.Time, last.Trace))
	p.stats.PostSpikes++
	return nil
}

// ProcessPreSpike runs a row pass for a pre-spike of neuron pre. A neuron
// without a row has no plastic targets on this core and is only counted.
func (p *Processor) ProcessPreSpike(pre core.NeuronID, time core.Time) error {
	row, ok := p.rows[pre]
	if !ok {
		p.stats.UnroutedPreSpikes++
		return nil
	}
	lastPre := row.Header.LastPre()
	if time < lastPre.Time {
		return fmt.Errorf("%w: pre n%d at %d, last at %d", core.ErrNonMonotonicTime, pre, time, lastPre.Time)
	}

	trace := p.rule.AddPreSpike(time, lastPre.Time, lastPre.Trace)
	row.Header = RowHeader{LastPreTime: time, LastPreTrace: trace}

	for i := range row.Synapses {
		syn := &row.Synapses[i]
		s := p.rule.Init(syn.Word, syn.Type)

		window := p.posts[syn.Target].Window(lastPre.Time, time)
		for {
			post, ok := window.Next()
			if !ok {
				break
			}
			s = p.rule.ApplyPostSpike(timing.Event{
				Time:     post.Time,
				Trace:    post.Trace,
				LastPre:  lastPre,
				LastPost: window.Prev,
			}, s)
			window.Advance(post)
			p.stats.PostReplays++
		}

		s = p.rule.ApplyPreSpike(timing.Event{
			Time:     time,
			Trace:    trace,
			LastPre:  lastPre,
			LastPost: window.Prev,
		}, s)
		syn.Word = p.rule.Final(s)
	}

	p.stats.PreSpikes++
	p.stats.SynapseUpdates += uint64(len(row.Synapses))
	return nil
}
