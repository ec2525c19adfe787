package timing

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/lut"
	"github.com/denizumutdereli/stdpcore/pkg/random"
	"github.com/denizumutdereli/stdpcore/pkg/synapse"
	"github.com/denizumutdereli/stdpcore/pkg/weight"
)

// Kind enumerates the timing rules.
type Kind uint8

const (
	KindRecurrentFixed Kind = iota
	KindRecurrentPreStochastic
	KindRecurrentDualFSM
	KindRecurrentStochastic
	KindRecurrentDualFSMDecay
	KindVogels2011
)

var kindNames = [...]string{
	KindRecurrentFixed:         "recurrent-fixed",
	KindRecurrentPreStochastic: "recurrent-pre-stochastic",
	KindRecurrentDualFSM:       "recurrent-dual-fsm",
	KindRecurrentStochastic:    "recurrent-stochastic",
	KindRecurrentDualFSMDecay:  "recurrent-dual-fsm-decay",
	KindVogels2011:             "vogels-2011",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Kinds lists every rule in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}
	return out
}

// NormalizeRuleName maps the spellings accepted in configuration onto the
// canonical rule names. Unknown names are returned lower-cased.
func NormalizeRuleName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("_", "-", " ", "-").Replace(n)
	switch n {
	case "recurrent", "fixed":
		return kindNames[KindRecurrentFixed]
	case "pre-stochastic", "recurrent-prestochastic":
		return kindNames[KindRecurrentPreStochastic]
	case "dual-fsm", "recurrent-dual":
		return kindNames[KindRecurrentDualFSM]
	case "stochastic", "recurrent-cdf":
		return kindNames[KindRecurrentStochastic]
	case "dual-fsm-decay", "timing-recurrent-dual-fsm":
		return kindNames[KindRecurrentDualFSMDecay]
	case "vogels", "vogels2011":
		return kindNames[KindVogels2011]
	default:
		return n
	}
}

// ParseKind resolves a rule name.
func ParseKind(name string) (Kind, error) {
	n := NormalizeRuleName(name)
	for i, known := range kindNames {
		if n == known {
			return Kind(i), nil
		}
	}
	return 0, errors.Wrapf(core.ErrUnknownRule, "%q", name)
}

// Layout returns the packed word layout of the rule.
func (k Kind) Layout() synapse.Layout {
	switch k {
	case KindRecurrentPreStochastic:
		return synapse.WeightAccWindow
	case KindRecurrentDualFSM, KindRecurrentDualFSMDecay:
		return synapse.WeightAcc16
	case KindVogels2011:
		return synapse.WeightOnly
	default:
		return synapse.WeightAccState
	}
}

// Stochastic reports whether the rule consumes random draws.
func (k Kind) Stochastic() bool {
	switch k {
	case KindRecurrentFixed, KindVogels2011:
		return false
	default:
		return true
	}
}

// DefaultSource returns the generator a fresh core of kind boots with.
func (k Kind) DefaultSource() random.Source {
	if k == KindRecurrentDualFSMDecay {
		return random.NewKISS64(random.DefaultSeed)
	}
	return random.NewKISS()
}

// New builds a rule of kind from a validated region. A nil src selects the
// kind's default generator.
func New(kind Kind, region *Region, dep weight.Dependence, src random.Source) (Rule, error) {
	if region == nil {
		return nil, errors.New("timing rule needs a region")
	}
	if dep == nil {
		return nil, errors.New("timing rule needs a weight dependence")
	}
	if err := region.Validate(kind); err != nil {
		return nil, err
	}
	if src == nil {
		src = kind.DefaultSource()
	}

	switch kind {
	case KindRecurrentFixed:
		return newFixed(region.Params, dep), nil
	case KindRecurrentPreStochastic:
		return newPreStochastic(region.Params, region.PreInverse, region.PostInverse, dep, src), nil
	case KindRecurrentDualFSM:
		return newDualFSM(region.Params, region.PreInverse, region.PostInverse, dep, src), nil
	case KindRecurrentStochastic:
		return newStochastic(region.Params, region.PreCDF, region.PostCDF, dep, src), nil
	case KindRecurrentDualFSMDecay:
		return newDualFSMDecay(region.Params, region.PreInverse, region.PostInverse, dep, src), nil
	case KindVogels2011:
		return newVogels(region.Params, region.Tau, dep), nil
	default:
		return nil, errors.Wrapf(core.ErrUnknownRule, "kind %d", kind)
	}
}

// NewFromBlob reads the region of kind from the front of words and builds
// the rule. It returns the words following the region.
func NewFromBlob(kind Kind, words []uint32, dep weight.Dependence, src random.Source) (Rule, []uint32, error) {
	c := lut.NewCursor(words)
	region, err := ReadRegion(kind, c)
	if err != nil {
		return nil, nil, err
	}
	rule, err := New(kind, region, dep, src)
	if err != nil {
		return nil, nil, err
	}
	return rule, c.Remaining(), nil
}
