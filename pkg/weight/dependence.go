// Package weight defines the contract between the timing rules and the module
// that turns depression/potentiation decisions into bounded synaptic weights,
// and provides the additive dependence used on the target.
package weight

// Weight is the 16-bit synaptic weight stored in a packed word.
type Weight uint16

// State is the working weight state of one synapse during a row pass. Timing
// rules carry it around without looking inside; only the Dependence that
// created it interprets the fields.
type State struct {
	Initial      int32
	Potentiation int32
	Depression   int32
	SynapseType  uint32
}

// Dependence converts accumulated decisions into a new weight. Magnitudes are
// in the core.One fixed-point unit.
type Dependence interface {
	Init(w Weight, synapseType uint32) State
	ApplyDepression(s State, magnitude int32) State
	ApplyPotentiation(s State, magnitude int32) State
	Final(s State) Weight
}
