package timing

import (
	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/lut"
	"github.com/denizumutdereli/stdpcore/pkg/random"
	"github.com/denizumutdereli/stdpcore/pkg/synapse"
	"github.com/denizumutdereli/stdpcore/pkg/weight"
)

// accumulatorRule holds what the two dual-window rules share: a weight and a
// 16-bit accumulator in the word, and a window length sampled per spike and
// carried as that spike's trace.
type accumulatorRule struct {
	kind   Kind
	params Params
	dep    weight.Dependence
	pre    lut.InverseCDF
	post   lut.InverseCDF
	src    random.Source
}

func (r *accumulatorRule) Kind() Kind { return r.kind }

func (r *accumulatorRule) Layout() synapse.Layout { return synapse.WeightAcc16 }

func (r *accumulatorRule) Init(word synapse.Word, synapseType uint32) UpdateState {
	v := synapse.WeightAcc16.Unpack(word)
	return UpdateState{
		Weight:      r.dep.Init(weight.Weight(v[synapse.FieldWeight]), synapseType),
		Accumulator: v[synapse.FieldAccumulator],
	}
}

func (r *accumulatorRule) Final(s UpdateState) synapse.Word {
	w := r.dep.Final(s.Weight)
	word, adjusted := synapse.WeightAcc16.Pack(synapse.Values{int32(w), s.Accumulator})
	if adjusted {
		runtimeLogf("\tPacked %s with clamped fields: %s", synapse.WeightAcc16.Name, synapse.WeightAcc16.Describe(word))
	}
	return word
}

func (r *accumulatorRule) drawWindow(table lut.InverseCDF, side string) Trace {
	length, draw := table.Draw(r.src)
	runtimeLogf("\t\tResetting %s-window: random=%d, window_length=%d", side, draw, length)
	return Trace(length)
}

// dualFSM is recurrent-dual-fsm. The two windows are independent: every
// spike draws its own window, and "open" only depends on the opposite
// train's last window and the time elapsed since it.
type dualFSM struct {
	accumulatorRule
}

func newDualFSM(p Params, pre, post lut.InverseCDF, dep weight.Dependence, src random.Source) *dualFSM {
	return &dualFSM{accumulatorRule{
		kind:   KindRecurrentDualFSM,
		params: p,
		dep:    dep,
		pre:    pre,
		post:   post,
		src:    src,
	}}
}

func (r *dualFSM) InitialPostTrace() Trace { return 0 }

func (r *dualFSM) AddPreSpike(_, _ core.Time, _ Trace) Trace {
	return r.drawWindow(r.pre, "pre")
}

func (r *dualFSM) AddPostSpike(_, _ core.Time, _ Trace) Trace {
	return r.drawWindow(r.post, "post")
}

func (r *dualFSM) ApplyPreSpike(ev Event, s UpdateState) UpdateState {
	dt := core.Elapsed(ev.Time, ev.LastPost.Time)
	window := ev.LastPost.Trace.windowLength()
	runtimeLogf("\t\t\ttime_since_last_post:%d, post_window_length:%d", dt, window)
	if dt > 0 && dt < window {
		s = r.params.stepDepression(s, r.dep)
	}
	return s
}

func (r *dualFSM) ApplyPostSpike(ev Event, s UpdateState) UpdateState {
	dt := core.Elapsed(ev.Time, ev.LastPre.Time)
	window := ev.LastPre.Trace.windowLength()
	runtimeLogf("\t\t\ttime_since_last_pre:%d, pre_window_length:%d", dt, window)
	if dt > 0 && dt < window {
		s = r.params.stepPotentiation(s, r.dep)
	}
	return s
}
