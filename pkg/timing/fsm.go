package timing

import (
	"log"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/synapse"
	"github.com/denizumutdereli/stdpcore/pkg/weight"
)

// windowPolicy is the part of the three-state machine that differs between
// recurrent-fixed, recurrent-pre-stochastic and recurrent-stochastic.
type windowPolicy interface {
	// openPre and openPost run whenever a window is (re)opened.
	openPre(s UpdateState) UpdateState
	openPost(s UpdateState) UpdateState

	// inPreWindow and inPostWindow test whether a window opened dt steps
	// ago is still open.
	inPreWindow(dt uint32, s UpdateState) bool
	inPostWindow(dt uint32, s UpdateState) bool
}

// fsmRule is the symmetric IDLE / PRE_OPEN / POST_OPEN machine. A pre-spike
// inside an open post window steps toward depression, a post-spike inside an
// open pre window toward potentiation; either closes the machine.
type fsmRule struct {
	kind    Kind
	layout  synapse.Layout
	params  Params
	dep     weight.Dependence
	windows windowPolicy
}

func (r *fsmRule) Kind() Kind { return r.kind }

func (r *fsmRule) Layout() synapse.Layout { return r.layout }

func (r *fsmRule) InitialPostTrace() Trace { return 0 }

func (r *fsmRule) AddPreSpike(time, lastTime core.Time, _ Trace) Trace {
	runtimeLogf("\tdelta_time=%d", core.Elapsed(time, lastTime))
	return 0
}

func (r *fsmRule) AddPostSpike(time, lastTime core.Time, _ Trace) Trace {
	runtimeLogf("\tdelta_time=%d", core.Elapsed(time, lastTime))
	return 0
}

func (r *fsmRule) Init(word synapse.Word, synapseType uint32) UpdateState {
	v := r.layout.Unpack(word)
	s := UpdateState{
		Weight:      r.dep.Init(weight.Weight(v[synapse.FieldWeight]), synapseType),
		Accumulator: v[synapse.FieldAccumulator],
		State:       FSMState(v[synapse.FieldState]),
	}
	if r.layout.NumFields() > synapse.FieldWindow {
		s.WindowLength = uint32(v[synapse.FieldWindow])
	}
	return s
}

func (r *fsmRule) Final(s UpdateState) synapse.Word {
	w := r.dep.Final(s.Weight)
	word, adjusted := r.layout.Pack(synapse.Values{int32(w), s.Accumulator, int32(s.State), int32(s.WindowLength)})
	if adjusted {
		runtimeLogf("\tPacked %s with clamped fields: %s", r.layout.Name, r.layout.Describe(word))
	}
	return word
}

func (r *fsmRule) ApplyPreSpike(ev Event, s UpdateState) UpdateState {
	switch s.State {
	case StateIdle:
		runtimeLogf("\tOpening pre-window")
		s.State = StatePreOpen
		s = r.windows.openPre(s)

	case StatePreOpen:
		dt := core.Elapsed(ev.Time, ev.LastPre.Time)
		runtimeLogf("\tTime_since_last_pre_event=%d", dt)
		if r.windows.inPreWindow(dt, s) {
			runtimeLogf("\t\tClosing pre-window")
			s.State = StateIdle
		} else {
			runtimeLogf("\t\tRe-opening pre-window")
			s = r.windows.openPre(s)
		}

	case StatePostOpen:
		dt := core.Elapsed(ev.Time, ev.LastPost.Time)
		runtimeLogf("\tTime_since_last_post_event=%d", dt)
		switch {
		case dt == 0:
			runtimeLogf("\t\tIgnoring coinciding spikes")
			s.State = StateIdle
		case r.windows.inPostWindow(dt, s):
			s = r.params.stepDepression(s, r.dep)
			s.State = StateIdle
		default:
			runtimeLogf("\t\tPost-window closed - Opening pre-window")
			s.State = StatePreOpen
			s = r.windows.openPre(s)
		}

	default:
		log.Printf("timing: %s: invalid FSM state %d on pre-spike at %d", r.kind, uint8(s.State), ev.Time)
	}
	return s
}

func (r *fsmRule) ApplyPostSpike(ev Event, s UpdateState) UpdateState {
	switch s.State {
	case StateIdle:
		runtimeLogf("\tOpening post-window")
		s.State = StatePostOpen
		s = r.windows.openPost(s)

	case StatePostOpen:
		dt := core.Elapsed(ev.Time, ev.LastPost.Time)
		runtimeLogf("\tTime_since_last_post_event=%d", dt)
		if r.windows.inPostWindow(dt, s) {
			runtimeLogf("\t\tClosing post-window")
			s.State = StateIdle
		} else {
			runtimeLogf("\t\tRe-opening post-window")
			s = r.windows.openPost(s)
		}

	case StatePreOpen:
		dt := core.Elapsed(ev.Time, ev.LastPre.Time)
		runtimeLogf("\tTime_since_last_pre_event=%d", dt)
		switch {
		case dt == 0:
			runtimeLogf("\t\tIgnoring coinciding spikes")
			s.State = StateIdle
		case r.windows.inPreWindow(dt, s):
			s = r.params.stepPotentiation(s, r.dep)
			s.State = StateIdle
		default:
			runtimeLogf("\t\tPre-window closed - Opening post-window")
			s.State = StatePostOpen
			s = r.windows.openPost(s)
		}

	default:
		log.Printf("timing: %s: invalid FSM state %d on post-spike at %d", r.kind, uint8(s.State), ev.Time)
	}
	return s
}
