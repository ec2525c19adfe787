package engine

import (
	"fmt"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/timing"
)

// State is the persisted form of a processor: its rows, its post histories
// and its counters. Rule-internal bookkeeping and generator state are not
// part of it; a restored core continues with a fresh rule.
type State struct {
	Rule  string           `msgpack:"rule"`
	Rows  []*Row           `msgpack:"rows"`
	Posts [][]timing.Spike `msgpack:"posts"`
	Stats Stats            `msgpack:"stats"`
}

// State copies the processor out.
func (p *Processor) State() *State {
	st := &State{
		Rule:  p.rule.Kind().String(),
		Rows:  make([]*Row, 0, len(p.rows)),
		Posts: make([][]timing.Spike, len(p.posts)),
		Stats: p.stats,
	}
	for _, id := range p.RowIDs() {
		st.Rows = append(st.Rows, p.rows[id].Clone())
	}
	for i := range p.posts {
		st.Posts[i] = p.posts[i].Entries()
	}
	return st
}

// Restore replaces the processor's contents with st. The neuron count and
// rule must match. On error the processor is left unchanged.
func (p *Processor) Restore(st *State) error {
	if st.Rule != p.rule.Kind().String() {
		return fmt.Errorf("engine: state was written by %s, processor runs %s", st.Rule, p.rule.Kind())
	}
	if len(st.Posts) != len(p.posts) {
		return fmt.Errorf("engine: state has %d neurons, processor has %d", len(st.Posts), len(p.posts))
	}

	rows := make(map[core.NeuronID]*Row, len(st.Rows))
	syns := 0
	for _, r := range st.Rows {
		row := r.Clone()
		n, err := p.fitRow(rows, syns, row)
		if err != nil {
			return err
		}
		rows[row.Pre] = row
		syns = n
	}

	p.rows = rows
	p.synapseCount = syns
	initial := p.rule.InitialPostTrace()
	for i, entries := range st.Posts {
		p.posts[i] = RestorePostHistory(entries, initial)
	}
	p.stats = st.Stats
	return nil
}
