package timing

import (
	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/lut"
	"github.com/denizumutdereli/stdpcore/pkg/random"
	"github.com/denizumutdereli/stdpcore/pkg/synapse"
	"github.com/denizumutdereli/stdpcore/pkg/weight"
)

// AccumulatorDecayShift sets how fast recurrent-dual-fsm-decay forgets: the
// accumulator moves one step toward zero per 1<<AccumulatorDecayShift
// timesteps without events.
const AccumulatorDecayShift = 11

// InitialDecayPostTrace is the post trace recurrent-dual-fsm-decay starts
// from. The rule never reads post traces, so the value only marks "unset".
const InitialDecayPostTrace Trace = -9999

// dualFSMDecay is recurrent-dual-fsm-decay. Post-spikes extend a single
// closing time instead of keeping one window per spike, a pre-spike before
// that time depresses, and only the first post-spike after a pre-spike can
// potentiate.
type dualFSMDecay struct {
	accumulatorRule

	// lastEventTime is the most recent pre or post event seen by this core.
	lastEventTime core.Time
}

func newDualFSMDecay(p Params, pre, post lut.InverseCDF, dep weight.Dependence, src random.Source) *dualFSMDecay {
	return &dualFSMDecay{accumulatorRule: accumulatorRule{
		kind:   KindRecurrentDualFSMDecay,
		params: p,
		dep:    dep,
		pre:    pre,
		post:   post,
		src:    src,
	}}
}

func (r *dualFSMDecay) InitialPostTrace() Trace { return InitialDecayPostTrace }

// Init rebuilds the transient fields. A row is loaded because of a pre-spike,
// so the previous pre-spike of the row is still waiting for a post-spike. No
// post window is open until a replayed post-spike opens one.
func (r *dualFSMDecay) Init(word synapse.Word, synapseType uint32) UpdateState {
	s := r.accumulatorRule.Init(word, synapseType)
	s.PreWaitingPost = true
	return s
}

func (r *dualFSMDecay) AddPreSpike(_, lastTime core.Time, _ Trace) Trace {
	r.lastEventTime = lastTime
	return r.drawWindow(r.pre, "pre")
}

func (r *dualFSMDecay) AddPostSpike(_, _ core.Time, _ Trace) Trace {
	return 0
}

func (r *dualFSMDecay) ApplyPreSpike(ev Event, s UpdateState) UpdateState {
	steps := int32(core.Elapsed(ev.Time, r.lastEventTime) >> AccumulatorDecayShift)
	switch {
	case s.Accumulator > 0:
		s.Accumulator -= steps
		if s.Accumulator < 0 {
			s.Accumulator = 0
		}
	case s.Accumulator < 0:
		s.Accumulator += steps
		if s.Accumulator > 0 {
			s.Accumulator = 0
		}
	}

	if s.PostWindowOpen && !core.Before(s.ClosingTime, ev.Time) {
		runtimeLogf("\t\t\ttime_since_last_post:%d, closing_time:%d",
			core.Elapsed(ev.Time, ev.LastPost.Time), s.ClosingTime)
		s = r.params.stepDepression(s, r.dep)
	}

	s.ClosingTime = ev.Time - 1
	s.PostWindowOpen = false
	s.PreWaitingPost = true
	return s
}

func (r *dualFSMDecay) ApplyPostSpike(ev Event, s UpdateState) UpdateState {
	length, draw := r.post.Draw(r.src)
	closing := ev.Time + core.Time(length)
	if !s.PostWindowOpen || core.Before(s.ClosingTime, closing) {
		s.ClosingTime = closing
		s.PostWindowOpen = true
	}
	runtimeLogf("\t\tResetting post-window: random=%d, window_length=%d", draw, length)

	if core.Before(r.lastEventTime, ev.Time) {
		r.lastEventTime = ev.Time
	}

	dt := core.Elapsed(ev.Time, ev.LastPre.Time)
	window := ev.LastPre.Trace.windowLength()
	runtimeLogf("\t\t\ttime_since_last_pre:%d, pre_window_length:%d", dt, window)
	if s.PreWaitingPost && dt > 0 {
		s.PreWaitingPost = false
		if dt < window {
			s = r.params.stepPotentiation(s, r.dep)
		}
	}
	return s
}
