// Package weighttest provides a weight dependence double that records every
// call the timing rules make.
package weighttest

import "github.com/denizumutdereli/stdpcore/pkg/weight"

// Call is one recorded depression or potentiation.
type Call struct {
	Potentiation bool
	Magnitude    int32
}

// Recorder is an identity dependence: Final returns the stored weight, so
// packed words round-trip untouched and decisions are read from Calls.
type Recorder struct {
	Calls []Call
}

// Init records nothing.
func (r *Recorder) Init(w weight.Weight, synapseType uint32) weight.State {
	return weight.State{Initial: int32(w), SynapseType: synapseType}
}

// ApplyDepression records the call.
func (r *Recorder) ApplyDepression(s weight.State, magnitude int32) weight.State {
	r.Calls = append(r.Calls, Call{Magnitude: magnitude})
	s.Depression += magnitude
	return s
}

// ApplyPotentiation records the call.
func (r *Recorder) ApplyPotentiation(s weight.State, magnitude int32) weight.State {
	r.Calls = append(r.Calls, Call{Potentiation: true, Magnitude: magnitude})
	s.Potentiation += magnitude
	return s
}

// Final returns the stored weight unchanged.
func (r *Recorder) Final(s weight.State) weight.Weight {
	return weight.Weight(s.Initial)
}

// Depressions counts recorded depression calls.
func (r *Recorder) Depressions() int {
	n := 0
	for _, c := range r.Calls {
		if !c.Potentiation {
			n++
		}
	}
	return n
}

// Potentiations counts recorded potentiation calls.
func (r *Recorder) Potentiations() int {
	return len(r.Calls) - r.Depressions()
}

// Reset forgets all calls.
func (r *Recorder) Reset() {
	r.Calls = r.Calls[:0]
}
