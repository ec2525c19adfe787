// Package timing implements the STDP timing rules: the event-driven
// algorithms that decide, for each interacting pre/post spike pair, whether a
// synapse steps toward depression or potentiation.
//
// Every rule satisfies Rule. A rule value owns its random generator and any
// per-core bookkeeping, so one value serves exactly one simulated core and is
// not safe for concurrent use. Lookup tables and parameters inside a rule are
// read-only and may be shared.
package timing

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/synapse"
	"github.com/denizumutdereli/stdpcore/pkg/weight"
)

// Trace is the value a rule associates with each spike. Window rules store a
// sampled window length, vogels-2011 a decayed running sum, and the rest
// leave it zero.
type Trace int32

// windowLength reads a trace that holds a window length. Window lengths are
// 16-bit unsigned on the target.
func (t Trace) windowLength() uint32 {
	return uint32(uint16(t))
}

// Spike is a past spike of one train.
type Spike struct {
	Time  core.Time
	Trace Trace
}

// Event is the input of ApplyPreSpike and ApplyPostSpike: the arriving
// spike plus the last known spike of each train.
type Event struct {
	Time     core.Time
	Trace    Trace
	LastPre  Spike
	LastPost Spike
}

// FSMState is the state of the three-state window machine.
type FSMState uint8

const (
	StateIdle FSMState = iota
	StatePreOpen
	StatePostOpen
)

func (s FSMState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreOpen:
		return "pre-open"
	case StatePostOpen:
		return "post-open"
	default:
		return fmt.Sprintf("FSMState(%d)", uint8(s))
	}
}

// UpdateState is the working state of one synapse during a row pass. Fields a
// rule does not use stay zero.
type UpdateState struct {
	Weight      weight.State
	Accumulator int32
	State       FSMState

	// WindowLength is the sampled window of recurrent-pre-stochastic.
	WindowLength uint32

	// ClosingTime, PostWindowOpen and PreWaitingPost belong to
	// recurrent-dual-fsm-decay. They are not persisted in the synaptic word.
	// ClosingTime is only meaningful while PostWindowOpen is set.
	ClosingTime    core.Time
	PostWindowOpen bool
	PreWaitingPost bool
}

// Rule is the contract every timing rule implements.
type Rule interface {
	// Kind identifies the rule.
	Kind() Kind

	// Layout is the packed word layout Init reads and Final writes.
	Layout() synapse.Layout

	// InitialPostTrace is the trace used before any post-spike was seen.
	InitialPostTrace() Trace

	// Init unpacks a stored word into a working state.
	Init(word synapse.Word, synapseType uint32) UpdateState

	// AddPreSpike and AddPostSpike compute the trace of a newly observed
	// spike at time given the previous spike of the same train.
	AddPreSpike(time, lastTime core.Time, lastTrace Trace) Trace
	AddPostSpike(time, lastTime core.Time, lastTrace Trace) Trace

	// ApplyPreSpike and ApplyPostSpike update prev for an arriving spike.
	ApplyPreSpike(ev Event, prev UpdateState) UpdateState
	ApplyPostSpike(ev Event, prev UpdateState) UpdateState

	// Final packs the state back into a word.
	Final(s UpdateState) synapse.Word
}

var runtimeLog atomic.Bool

// SetRuntimeLog turns per-spike tracing on or off for every rule.
func SetRuntimeLog(on bool) {
	runtimeLog.Store(on)
}

// RuntimeLogEnabled reports whether per-spike tracing is on.
func RuntimeLogEnabled() bool {
	return runtimeLog.Load()
}

func runtimeLogf(format string, args ...any) {
	if runtimeLog.Load() {
		log.Printf(format, args...)
	}
}
