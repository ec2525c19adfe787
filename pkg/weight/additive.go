package weight

import (
	"github.com/pkg/errors"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/lut"
)

// AdditiveParams holds the bounds and learning rates for one synapse type.
// A2Plus and A2Minus are the weight change per unit of potentiation or
// depression, in fixed point.
type AdditiveParams struct {
	MinWeight int32 `yaml:"minWeight"`
	MaxWeight int32 `yaml:"maxWeight"`
	A2Plus    int32 `yaml:"a2Plus"`
	A2Minus   int32 `yaml:"a2Minus"`
}

// Additive sums potentiation and depression independently of the current
// weight and clamps the result to the synapse type's bounds.
type Additive struct {
	params []AdditiveParams
}

// NewAdditive builds an additive dependence with one parameter set per
// synapse type.
func NewAdditive(params []AdditiveParams) (*Additive, error) {
	if len(params) == 0 {
		return nil, errors.New("additive weight dependence needs at least one synapse type")
	}
	for i, p := range params {
		if p.MinWeight > p.MaxWeight {
			return nil, errors.Errorf("synapse type %d: min weight %d above max weight %d", i, p.MinWeight, p.MaxWeight)
		}
	}
	cp := make([]AdditiveParams, len(params))
	copy(cp, params)
	return &Additive{params: cp}, nil
}

// ReadAdditiveRegion parses numTypes blocks of {min, max, a2+, a2-}.
func ReadAdditiveRegion(c *lut.Cursor, numTypes int) (*Additive, error) {
	params := make([]AdditiveParams, numTypes)
	for i := range params {
		var vals [4]int32
		for j := range vals {
			v, err := c.Int32()
			if err != nil {
				return nil, errors.Wrapf(err, "weight region, synapse type %d", i)
			}
			vals[j] = v
		}
		params[i] = AdditiveParams{MinWeight: vals[0], MaxWeight: vals[1], A2Plus: vals[2], A2Minus: vals[3]}
	}
	return NewAdditive(params)
}

// EncodeRegion is the inverse of ReadAdditiveRegion.
func (a *Additive) EncodeRegion(words []uint32) []uint32 {
	for _, p := range a.params {
		words = append(words, uint32(p.MinWeight), uint32(p.MaxWeight), uint32(p.A2Plus), uint32(p.A2Minus))
	}
	return words
}

// NumTypes returns the number of synapse types configured.
func (a *Additive) NumTypes() int {
	return len(a.params)
}

// Init starts a fresh state from the stored weight. Unknown synapse types
// fall back to type 0; the row loader rejects them before this point.
func (a *Additive) Init(w Weight, synapseType uint32) State {
	if synapseType >= uint32(len(a.params)) {
		synapseType = 0
	}
	return State{Initial: int32(w), SynapseType: synapseType}
}

// ApplyDepression accumulates depression.
func (a *Additive) ApplyDepression(s State, magnitude int32) State {
	s.Depression += magnitude
	return s
}

// ApplyPotentiation accumulates potentiation. A negative magnitude acts as
// depression.
func (a *Additive) ApplyPotentiation(s State, magnitude int32) State {
	s.Potentiation += magnitude
	return s
}

// Final scales the accumulated changes and clamps the weight.
func (a *Additive) Final(s State) Weight {
	p := a.params[s.SynapseType]
	scaledPlus := mulFixed(s.Potentiation, p.A2Plus)
	scaledMinus := mulFixed(s.Depression, p.A2Minus)
	w := s.Initial + scaledPlus - scaledMinus
	if w > p.MaxWeight {
		w = p.MaxWeight
	}
	if w < p.MinWeight {
		w = p.MinWeight
	}
	if w < 0 {
		w = 0
	}
	if w > 65535 {
		w = 65535
	}
	return Weight(w)
}

// mulFixed multiplies two fixed-point values without truncating operands to
// 16 bits; accumulated magnitudes can exceed that range within one row pass.
func mulFixed(a, b int32) int32 {
	return int32((int64(a) * int64(b)) >> core.FixedPointShift)
}
