package core

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Time is an absolute simulation timestep counter.
type Time uint32

// Elapsed returns now-last using modular arithmetic, so a counter that wrapped
// between the two events still yields the true distance. Callers must not pass
// a last time that is actually after now; see engine.Processor for the guard.
func Elapsed(now, last Time) uint32 {
	return uint32(now - last)
}

// Before reports whether a comes before b on the circular counter. It is
// exact while the two times are less than half the counter range apart.
func Before(a, b Time) bool {
	return int32(a-b) < 0
}

// NeuronID identifies a neuron on one simulated core.
type NeuronID uint32

// SpikeKind tells which side of a synapse a spike belongs to.
type SpikeKind uint8

const (
	SpikePre SpikeKind = iota
	SpikePost
)

func (k SpikeKind) String() string {
	switch k {
	case SpikePre:
		return "pre"
	case SpikePost:
		return "post"
	default:
		return fmt.Sprintf("SpikeKind(%d)", uint8(k))
	}
}

// ParseSpikeKind accepts "pre"/"post" in any case.
func ParseSpikeKind(s string) (SpikeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pre":
		return SpikePre, nil
	case "post":
		return SpikePost, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSpikeKind, s)
	}
}

// UnmarshalYAML lets scenario files spell kinds as "pre"/"post".
func (k *SpikeKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseSpikeKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalYAML writes the kind by name.
func (k SpikeKind) MarshalYAML() (any, error) {
	return k.String(), nil
}

// SpikeEvent is a discrete spike produced by the neuron model or routed in
// from another core.
type SpikeEvent struct {
	Time   Time      `yaml:"time" msgpack:"time"`
	Kind   SpikeKind `yaml:"kind" msgpack:"kind"`
	Neuron NeuronID  `yaml:"neuron" msgpack:"neuron"`
}

func (e SpikeEvent) String() string {
	return fmt.Sprintf("%s spike n%d @%d", e.Kind, e.Neuron, e.Time)
}
