// Package protocol reads spike scenarios and plays them on a core pool.
//
// A scenario is a YAML document describing, per core, the plastic rows to
// install and the spike events to feed:
//
//	neurons: 4
//	cores:
//	  - id: 0
//	    rows:
//	      - pre: 0
//	        synapses:
//	          - {target: 1, weight: 1000}
//	    events:
//	      - {time: 5, kind: post, neuron: 1}
//	      - {time: 10, kind: pre, neuron: 0}
package protocol

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/engine"
	"github.com/denizumutdereli/stdpcore/pkg/synapse"
)

// SynapseSpec is one plastic synapse of a row.
type SynapseSpec struct {
	Target core.NeuronID `yaml:"target"`
	Type   uint32        `yaml:"type"`
	Weight int32         `yaml:"weight"`
}

// RowSpec is the row of one presynaptic neuron.
type RowSpec struct {
	Pre      core.NeuronID `yaml:"pre"`
	Synapses []SynapseSpec `yaml:"synapses"`
}

// CoreScenario is everything fed to one core.
type CoreScenario struct {
	ID     int               `yaml:"id"`
	Rows   []RowSpec         `yaml:"rows"`
	Events []core.SpikeEvent `yaml:"events"`
}

// Scenario is a complete multi-core input.
type Scenario struct {
	Neurons int            `yaml:"neurons"`
	Cores   []CoreScenario `yaml:"cores"`
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}

// Validate checks the structure of the scenario. Event ordering is left to
// the processor, which rejects out-of-order events per source.
func (sc *Scenario) Validate() error {
	if sc.Neurons <= 0 {
		return errors.New("scenario: neurons must be > 0")
	}
	if len(sc.Cores) == 0 {
		return errors.New("scenario: at least one core is required")
	}

	seen := make(map[int]bool, len(sc.Cores))
	for _, c := range sc.Cores {
		if c.ID < 0 {
			return fmt.Errorf("scenario: core id %d must be >= 0", c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("scenario: core %d listed twice", c.ID)
		}
		seen[c.ID] = true

		pres := make(map[core.NeuronID]bool, len(c.Rows))
		for _, r := range c.Rows {
			if pres[r.Pre] {
				return fmt.Errorf("scenario: core %d has two rows for pre n%d", c.ID, r.Pre)
			}
			pres[r.Pre] = true
			for _, s := range r.Synapses {
				if int(s.Target) >= sc.Neurons {
					return fmt.Errorf("scenario: core %d row n%d: %w: target n%d", c.ID, r.Pre, core.ErrNeuronOutOfRange, s.Target)
				}
			}
		}
		for i, ev := range c.Events {
			if int(ev.Neuron) >= sc.Neurons {
				return fmt.Errorf("scenario: core %d event %d: %w: n%d", c.ID, i, core.ErrNeuronOutOfRange, ev.Neuron)
			}
		}
	}
	return nil
}

// NumCores is one more than the highest core ID used.
func (sc *Scenario) NumCores() int {
	n := 0
	for _, c := range sc.Cores {
		if c.ID+1 > n {
			n = c.ID + 1
		}
	}
	return n
}

// CoreIDs returns the core IDs in ascending order.
func (sc *Scenario) CoreIDs() []int {
	ids := make([]int, 0, len(sc.Cores))
	for _, c := range sc.Cores {
		ids = append(ids, c.ID)
	}
	sort.Ints(ids)
	return ids
}

// Batches groups the events by core.
func (sc *Scenario) Batches() map[int][]core.SpikeEvent {
	batches := make(map[int][]core.SpikeEvent, len(sc.Cores))
	for _, c := range sc.Cores {
		batches[c.ID] = c.Events
	}
	return batches
}

// BuildRows packs the initial weights of c's rows into fresh words of
// layout. Every other field starts at zero.
func (c *CoreScenario) BuildRows(layout synapse.Layout) ([]*engine.Row, error) {
	rows := make([]*engine.Row, 0, len(c.Rows))
	for _, r := range c.Rows {
		row := &engine.Row{Pre: r.Pre, Synapses: make([]engine.PlasticSynapse, 0, len(r.Synapses))}
		for _, s := range r.Synapses {
			var v synapse.Values
			v[synapse.FieldWeight] = s.Weight
			word, adjusted := layout.Pack(v)
			if adjusted {
				return nil, fmt.Errorf("core %d row n%d: weight %d does not fit %s", c.ID, r.Pre, s.Weight, layout.Name)
			}
			row.Synapses = append(row.Synapses, engine.PlasticSynapse{Word: word, Type: s.Type, Target: s.Target})
		}
		rows = append(rows, row)
	}
	return rows, nil
}
