package timing

import (
	"github.com/pkg/errors"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/lut"
	"github.com/denizumutdereli/stdpcore/pkg/synapse"
	"github.com/denizumutdereli/stdpcore/pkg/weight"
)

// Params are the process-wide plasticity parameters. The accumulator bounds
// are stored the way the region holds them: one inside the floor and one
// inside the ceiling, so a step from either stored value resets instead.
type Params struct {
	AccumulatorDepressionPlusOne    int32
	AccumulatorPotentiationMinusOne int32

	// Fixed windows of recurrent-fixed.
	PreWindowLength  uint32
	PostWindowLength uint32

	// Alpha is the vogels-2011 depression offset.
	Alpha int32

	// DecayShift scales the tau table of vogels-2011: elapsed time is shifted
	// right by it before indexing. It overrides the table's own TimeShift.
	DecayShift uint
}

// ParamsFromBounds converts an inclusive accumulator floor/ceiling into the
// stored form.
func ParamsFromBounds(floor, ceiling int32) Params {
	return Params{
		AccumulatorDepressionPlusOne:    floor + 1,
		AccumulatorPotentiationMinusOne: ceiling - 1,
	}
}

// Floor returns the inclusive accumulator floor.
func (p Params) Floor() int32 {
	return p.AccumulatorDepressionPlusOne - 1
}

// Ceiling returns the inclusive accumulator ceiling.
func (p Params) Ceiling() int32 {
	return p.AccumulatorPotentiationMinusOne + 1
}

// stepDepression moves the accumulator one step toward depression, or resets
// it and applies one unit of depression once the floor would be reached.
func (p Params) stepDepression(s UpdateState, dep weight.Dependence) UpdateState {
	if s.Accumulator > p.AccumulatorDepressionPlusOne {
		s.Accumulator--
		runtimeLogf("\t\tDecrementing accumulator=%d", s.Accumulator)
		return s
	}
	runtimeLogf("\t\tApplying depression")
	s.Accumulator = 0
	s.Weight = dep.ApplyDepression(s.Weight, core.One)
	return s
}

// stepPotentiation mirrors stepDepression.
func (p Params) stepPotentiation(s UpdateState, dep weight.Dependence) UpdateState {
	if s.Accumulator < p.AccumulatorPotentiationMinusOne {
		s.Accumulator++
		runtimeLogf("\t\tIncrementing accumulator=%d", s.Accumulator)
		return s
	}
	runtimeLogf("\t\tApplying potentiation")
	s.Accumulator = 0
	s.Weight = dep.ApplyPotentiation(s.Weight, core.One)
	return s
}

// Region is everything a rule loads from its region blob.
type Region struct {
	Params Params

	PreInverse  lut.InverseCDF
	PostInverse lut.InverseCDF

	PreCDF  lut.CDF
	PostCDF lut.CDF

	Tau lut.Decay
}

// TauTimeShift is the time shift of the vogels-2011 tau table.
const TauTimeShift = 0

// ReadRegion parses the region blob of kind from c and validates it against
// the kind's word layout. The cursor is left after the consumed words for the
// next region parser.
func ReadRegion(kind Kind, c *lut.Cursor) (*Region, error) {
	r := &Region{}
	var err error

	if kind == KindVogels2011 {
		if r.Params.Alpha, err = c.Int32(); err != nil {
			return nil, errors.Wrap(err, "vogels-2011 alpha")
		}
		r.Params.DecayShift = TauTimeShift
		if r.Tau, err = lut.ReadDecay(c, TauTimeShift); err != nil {
			return nil, errors.Wrap(err, "vogels-2011")
		}
		return r.validated(kind)
	}

	if r.Params.AccumulatorDepressionPlusOne, err = c.Int32(); err != nil {
		return nil, errors.Wrapf(err, "%s accumulator depression", kind)
	}
	if r.Params.AccumulatorPotentiationMinusOne, err = c.Int32(); err != nil {
		return nil, errors.Wrapf(err, "%s accumulator potentiation", kind)
	}

	switch kind {
	case KindRecurrentFixed:
		var w uint32
		if w, err = c.Word(); err != nil {
			return nil, errors.Wrap(err, "recurrent-fixed pre window")
		}
		r.Params.PreWindowLength = w
		if w, err = c.Word(); err != nil {
			return nil, errors.Wrap(err, "recurrent-fixed post window")
		}
		r.Params.PostWindowLength = w
	case KindRecurrentPreStochastic, KindRecurrentDualFSM, KindRecurrentDualFSMDecay:
		if r.PreInverse, err = lut.ReadInverseCDF(c); err != nil {
			return nil, errors.Wrapf(err, "%s pre", kind)
		}
		if r.PostInverse, err = lut.ReadInverseCDF(c); err != nil {
			return nil, errors.Wrapf(err, "%s post", kind)
		}
	case KindRecurrentStochastic:
		if r.PreCDF, err = lut.ReadCDF(c); err != nil {
			return nil, errors.Wrapf(err, "%s pre", kind)
		}
		if r.PostCDF, err = lut.ReadCDF(c); err != nil {
			return nil, errors.Wrapf(err, "%s post", kind)
		}
	default:
		return nil, errors.Wrapf(core.ErrUnknownRule, "kind %d", kind)
	}
	return r.validated(kind)
}

func (r *Region) validated(kind Kind) (*Region, error) {
	if err := r.Validate(kind); err != nil {
		return nil, err
	}
	return r, nil
}

// EncodeRegion is the inverse of ReadRegion: it appends r's blob for kind to
// words.
func (r *Region) EncodeRegion(kind Kind, words []uint32) ([]uint32, error) {
	if err := r.Validate(kind); err != nil {
		return nil, err
	}
	if kind == KindVogels2011 {
		words = append(words, uint32(r.Params.Alpha))
		return lut.AppendTable(words, r.Tau.Table), nil
	}

	words = append(words,
		uint32(r.Params.AccumulatorDepressionPlusOne),
		uint32(r.Params.AccumulatorPotentiationMinusOne))

	switch kind {
	case KindRecurrentFixed:
		words = append(words, r.Params.PreWindowLength, r.Params.PostWindowLength)
	case KindRecurrentPreStochastic, KindRecurrentDualFSM, KindRecurrentDualFSMDecay:
		words = lut.AppendTable(words, r.PreInverse.Table)
		words = lut.AppendTable(words, r.PostInverse.Table)
	case KindRecurrentStochastic:
		words = lut.AppendTable(words, r.PreCDF.Table)
		words = lut.AppendTable(words, r.PostCDF.Table)
	}
	return words, nil
}

// Validate checks that the tables kind needs have the right sizes and that
// every accumulator value the rule can produce fits the packed word.
func (r *Region) Validate(kind Kind) error {
	switch kind {
	case KindVogels2011:
		return lut.CheckSize("tau", r.Tau.Table, lut.DecaySize)
	case KindRecurrentFixed:
	case KindRecurrentPreStochastic, KindRecurrentDualFSM, KindRecurrentDualFSMDecay:
		if err := lut.CheckSize("pre inverse-CDF", r.PreInverse.Table, int(core.One)); err != nil {
			return err
		}
		if err := lut.CheckSize("post inverse-CDF", r.PostInverse.Table, int(core.One)); err != nil {
			return err
		}
	case KindRecurrentStochastic:
		if err := lut.CheckSize("pre CDF", r.PreCDF.Table, lut.CDFHorizon); err != nil {
			return err
		}
		if err := lut.CheckSize("post CDF", r.PostCDF.Table, lut.CDFHorizon); err != nil {
			return err
		}
	default:
		return errors.Wrapf(core.ErrUnknownRule, "kind %d", kind)
	}
	return checkAccumulator(kind.Layout(), r.Params)
}

// checkAccumulator rejects bounds whose reachable accumulator values do not
// fit the layout's accumulator field. Reachable values lie between the
// stored plus-one/minus-one thresholds and always include 0.
func checkAccumulator(layout synapse.Layout, p Params) error {
	dep, pot := p.AccumulatorDepressionPlusOne, p.AccumulatorPotentiationMinusOne
	if dep > 0 || pot < 0 {
		return errors.Wrapf(core.ErrInvalidBounds, "depression+1=%d potentiation-1=%d", dep, pot)
	}
	lo, hi := layout.Field(synapse.FieldAccumulator).Range()
	if dep < lo || pot > hi {
		return errors.Wrapf(core.ErrAccumulatorRange,
			"%s holds %d..%d, thresholds need %d..%d", layout.Name, lo, hi, dep, pot)
	}
	return nil
}
