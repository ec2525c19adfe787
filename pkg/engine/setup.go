package engine

import (
	"fmt"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/lut"
	"github.com/denizumutdereli/stdpcore/pkg/random"
	"github.com/denizumutdereli/stdpcore/pkg/timing"
	"github.com/denizumutdereli/stdpcore/pkg/weight"
)

// Blob is the boot data of a core: the timing rule's region followed by the
// weight dependence's region, both as the word streams the loaders parse.
type Blob struct {
	Kind     timing.Kind `msgpack:"kind"`
	Rule     []uint32    `msgpack:"rule"`
	Weight   []uint32    `msgpack:"weight"`
	NumTypes int         `msgpack:"num_types"`
}

// Words returns the size of the blob in words.
func (b *Blob) Words() int { return len(b.Rule) + len(b.Weight) }

// BuildRegion generates the tables kind needs from rc on the host.
func BuildRegion(kind timing.Kind, rc core.RuleConfig) *timing.Region {
	r := &timing.Region{Params: timing.ParamsFromBounds(rc.AccumulatorDepression, rc.AccumulatorPotentiation)}
	switch kind {
	case timing.KindRecurrentFixed:
		r.Params.PreWindowLength = rc.PreWindowLength
		r.Params.PostWindowLength = rc.PostWindowLength
	case timing.KindRecurrentPreStochastic, timing.KindRecurrentDualFSM, timing.KindRecurrentDualFSMDecay:
		r.PreInverse = lut.GenerateInverseCDF(rc.PreMean)
		r.PostInverse = lut.GenerateInverseCDF(rc.PostMean)
	case timing.KindRecurrentStochastic:
		r.PreCDF = lut.GenerateCDF(rc.PreMean)
		r.PostCDF = lut.GenerateCDF(rc.PostMean)
	case timing.KindVogels2011:
		r.Params = timing.Params{Alpha: rc.Alpha, DecayShift: timing.TauTimeShift}
		r.Tau = lut.GenerateDecay(rc.Tau, timing.TauTimeShift)
	}
	return r
}

// BuildBlob assembles the boot data described by cfg.
func BuildBlob(cfg *core.Config) (*Blob, error) {
	kind, err := timing.ParseKind(cfg.Rule.Name)
	if err != nil {
		return nil, err
	}
	ruleWords, err := BuildRegion(kind, cfg.Rule).EncodeRegion(kind, nil)
	if err != nil {
		return nil, fmt.Errorf("building %s region: %w", kind, err)
	}
	dep, err := weight.NewAdditive(additiveParams(cfg.Weight))
	if err != nil {
		return nil, fmt.Errorf("building weight region: %w", err)
	}
	return &Blob{
		Kind:     kind,
		Rule:     ruleWords,
		Weight:   dep.EncodeRegion(nil),
		NumTypes: dep.NumTypes(),
	}, nil
}

func additiveParams(wc core.WeightConfig) []weight.AdditiveParams {
	out := make([]weight.AdditiveParams, len(wc.Types))
	for i, t := range wc.Types {
		out[i] = weight.AdditiveParams{
			MinWeight: t.MinWeight,
			MaxWeight: t.MaxWeight,
			A2Plus:    t.A2Plus,
			A2Minus:   t.A2Minus,
		}
	}
	return out
}

// LoadRule boots a rule from b. Trailing words after either region are an
// error.
func LoadRule(b *Blob, src random.Source) (timing.Rule, error) {
	c := lut.NewCursor(b.Weight)
	dep, err := weight.ReadAdditiveRegion(c, b.NumTypes)
	if err != nil {
		return nil, err
	}
	if n := len(c.Remaining()); n != 0 {
		return nil, fmt.Errorf("weight region has %d trailing words", n)
	}
	rule, rest, err := timing.NewFromBlob(b.Kind, b.Rule, dep, src)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%s region has %d trailing words", b.Kind, len(rest))
	}
	return rule, nil
}

// SourceFor returns the generator core index coreIdx of a run uses. Without
// a configured seed every core gets the kind's default generator; with one,
// each core gets a KISS64 whose first word is offset by the core index.
func SourceFor(kind timing.Kind, rc core.RuleConfig, coreIdx int) (random.Source, error) {
	if len(rc.Seed) == 0 {
		return kind.DefaultSource(), nil
	}
	if len(rc.Seed) != len(random.Seed{}) {
		return nil, fmt.Errorf("seed needs %d words, got %d", len(random.Seed{}), len(rc.Seed))
	}
	var seed random.Seed
	copy(seed[:], rc.Seed)
	seed[0] += uint32(coreIdx)
	if !seed.Valid() {
		return nil, fmt.Errorf("seed %v cannot drive KISS64", seed)
	}
	return random.NewKISS64(seed), nil
}
