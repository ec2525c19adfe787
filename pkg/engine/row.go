package engine

import (
	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/synapse"
	"github.com/denizumutdereli/stdpcore/pkg/timing"
)

// RowHeader is the pre-synaptic history stored ahead of a row's plastic
// words: the time and trace of the row's previous pre-spike.
type RowHeader struct {
	LastPreTime  core.Time    `msgpack:"last_pre_time"`
	LastPreTrace timing.Trace `msgpack:"last_pre_trace"`
}

// LastPre returns the header as a spike.
func (h RowHeader) LastPre() timing.Spike {
	return timing.Spike{Time: h.LastPreTime, Trace: h.LastPreTrace}
}

// PlasticSynapse is one entry of a synaptic row.
type PlasticSynapse struct {
	Word   synapse.Word  `msgpack:"word"`
	Type   uint32        `msgpack:"type"`
	Target core.NeuronID `msgpack:"target"`
}

// Row holds every plastic synapse leaving one pre-synaptic neuron.
type Row struct {
	Pre      core.NeuronID    `msgpack:"pre"`
	Header   RowHeader        `msgpack:"header"`
	Synapses []PlasticSynapse `msgpack:"synapses"`
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	cp := &Row{Pre: r.Pre, Header: r.Header, Synapses: make([]PlasticSynapse, len(r.Synapses))}
	copy(cp.Synapses, r.Synapses)
	return cp
}
