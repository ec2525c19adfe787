package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/denizumutdereli/stdpcore/pkg/concurrency"
	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/engine"
	"github.com/denizumutdereli/stdpcore/pkg/synapse"
)

// SynapseResult is the final state of one synapse.
type SynapseResult struct {
	Pre    core.NeuronID `json:"pre"`
	Target core.NeuronID `json:"target"`
	Weight int32         `json:"weight"`
	Word   string        `json:"word"`
}

// CoreResult is what one core ended with.
type CoreResult struct {
	ID       int             `json:"id"`
	Stats    engine.Stats    `json:"stats"`
	Synapses []SynapseResult `json:"synapses"`
}

// Result represents a scenario result
type Result struct {
	Success bool          `json:"success"`
	Events  int           `json:"events"`
	Elapsed time.Duration `json:"elapsed"`
	Cores   []CoreResult  `json:"cores"`
	Error   string        `json:"error,omitempty"`
}

// Executor plays scenarios on a pool.
type Executor struct {
	layout synapse.Layout
}

// NewExecutor returns an executor that packs and reads words with layout.
func NewExecutor(layout synapse.Layout) *Executor {
	return &Executor{layout: layout}
}

// Execute installs every core's rows and then feeds all cores concurrently.
// A failing core does not stop the others; the joined error is returned
// along with the state every core ended in.
func (e *Executor) Execute(ctx context.Context, pool *concurrency.Pool, sc *Scenario) (*Result, error) {
	res := &Result{}

	for i := range sc.Cores {
		c := &sc.Cores[i]
		w, err := pool.Get(c.ID)
		if err != nil {
			return nil, err
		}
		rows, err := c.BuildRows(e.layout)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if err := w.AddRow(row); err != nil {
				return nil, fmt.Errorf("core %d: %w", c.ID, err)
			}
		}
		res.Events += len(c.Events)
	}

	start := time.Now()
	runErr := pool.Run(ctx, sc.Batches())
	res.Elapsed = time.Since(start)

	for _, id := range sc.CoreIDs() {
		cr, err := e.collect(pool, id)
		if err != nil {
			return nil, err
		}
		res.Cores = append(res.Cores, cr)
	}

	res.Success = runErr == nil
	if runErr != nil {
		res.Error = runErr.Error()
	}
	return res, runErr
}

func (e *Executor) collect(pool *concurrency.Pool, coreID int) (CoreResult, error) {
	w, err := pool.Get(coreID)
	if err != nil {
		return CoreResult{}, err
	}
	st, err := w.Snapshot()
	if err != nil {
		return CoreResult{}, err
	}

	cr := CoreResult{ID: coreID, Stats: st.Stats}
	for _, row := range st.Rows {
		for _, syn := range row.Synapses {
			cr.Synapses = append(cr.Synapses, SynapseResult{
				Pre:    row.Pre,
				Target: syn.Target,
				Weight: e.layout.Unpack(syn.Word)[synapse.FieldWeight],
				Word:   e.layout.Describe(syn.Word),
			})
		}
	}
	return cr, nil
}

// MarshalResult serializes a result to JSON
func MarshalResult(r *Result) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
