package timing

import (
	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/lut"
	"github.com/denizumutdereli/stdpcore/pkg/synapse"
	"github.com/denizumutdereli/stdpcore/pkg/weight"
)

// vogels is vogels-2011, the inhibitory rule of Vogels et al. (2011). Each
// train keeps an exponentially decaying trace and every spike changes the
// weight at once; there is no accumulator and no state machine.
type vogels struct {
	alpha int32
	tau   lut.Decay
	dep   weight.Dependence
}

func newVogels(p Params, tau lut.Decay, dep weight.Dependence) *vogels {
	tau.TimeShift = p.DecayShift
	return &vogels{alpha: p.Alpha, tau: tau, dep: dep}
}

func (r *vogels) Kind() Kind { return KindVogels2011 }

func (r *vogels) Layout() synapse.Layout { return synapse.WeightOnly }

func (r *vogels) InitialPostTrace() Trace { return 0 }

func (r *vogels) Init(word synapse.Word, synapseType uint32) UpdateState {
	v := synapse.WeightOnly.Unpack(word)
	return UpdateState{Weight: r.dep.Init(weight.Weight(v[synapse.FieldWeight]), synapseType)}
}

func (r *vogels) Final(s UpdateState) synapse.Word {
	word, _ := synapse.WeightOnly.Pack(synapse.Values{int32(r.dep.Final(s.Weight))})
	return word
}

// addSpike decays the previous trace to time and adds one spike.
func (r *vogels) addSpike(time, lastTime core.Time, lastTrace Trace) Trace {
	dt := core.Elapsed(time, lastTime)
	decayed := r.tau.Apply(int32(lastTrace), dt)
	next := core.SaturateInt16(decayed + core.One)
	runtimeLogf("\tdelta_time=%d, new_trace=%d", dt, next)
	return Trace(next)
}

func (r *vogels) AddPreSpike(time, lastTime core.Time, lastTrace Trace) Trace {
	return r.addSpike(time, lastTime, lastTrace)
}

func (r *vogels) AddPostSpike(time, lastTime core.Time, lastTrace Trace) Trace {
	return r.addSpike(time, lastTime, lastTrace)
}

// ApplyPreSpike potentiates by the post trace decayed to now, minus alpha. A
// weak post trace therefore depresses.
func (r *vogels) ApplyPreSpike(ev Event, s UpdateState) UpdateState {
	dt := core.Elapsed(ev.Time, ev.LastPost.Time)
	delta := r.tau.Apply(int32(ev.LastPost.Trace), dt) - r.alpha
	runtimeLogf("\t\t\ttime_since_last_post_event=%d, decayed_o1=%d", dt, delta)
	s.Weight = r.dep.ApplyPotentiation(s.Weight, delta)
	return s
}

func (r *vogels) ApplyPostSpike(ev Event, s UpdateState) UpdateState {
	dt := core.Elapsed(ev.Time, ev.LastPre.Time)
	delta := r.tau.Apply(int32(ev.LastPre.Trace), dt)
	runtimeLogf("\t\t\ttime_since_last_pre_event=%d, decayed_r1=%d", dt, delta)
	s.Weight = r.dep.ApplyPotentiation(s.Weight, delta)
	return s
}
