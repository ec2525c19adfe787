package engine

import (
	"fmt"
	"strings"

	"github.com/c2h5oh/datasize"

	"github.com/denizumutdereli/stdpcore/pkg/core"
)

// Per-item sizes used to estimate the memory a core needs.
const (
	rowHeaderBytes   = 8
	synapseBytes     = 8
	postHistoryBytes = 4 + MaxPostEvents*8
)

// Footprint estimates the bytes a core holds for the given neuron, row and
// synapse counts.
func Footprint(neurons, rows, synapses int) datasize.ByteSize {
	n := neurons*postHistoryBytes + rows*rowHeaderBytes + synapses*synapseBytes
	return datasize.ByteSize(n)
}

// Budget caps a core's footprint. A zero Limit means no cap.
type Budget struct {
	Limit datasize.ByteSize
}

// Check fails with core.ErrBudgetExceeded when need is over the limit.
func (b Budget) Check(need datasize.ByteSize) error {
	if b.Limit == 0 || need <= b.Limit {
		return nil
	}
	return fmt.Errorf("%w: need %s, budget %s",
		core.ErrBudgetExceeded, need.HumanReadable(), b.Limit.HumanReadable())
}

// MemoryReport summarizes where a processor's memory goes.
func (p *Processor) MemoryReport() string {
	var b strings.Builder
	rows, syns := len(p.rows), p.synapseCount
	neurMem := datasize.ByteSize(len(p.posts) * postHistoryBytes)
	rowMem := datasize.ByteSize(rows*rowHeaderBytes + syns*synapseBytes)
	fmt.Fprintf(&b, "Neurons: %d\t HistMem: %v\n", len(p.posts), neurMem.HumanReadable())
	fmt.Fprintf(&b, "Rows: %d\t Syns: %d\t SynMem: %v\n", rows, syns, rowMem.HumanReadable())
	fmt.Fprintf(&b, "Total: %v", p.Footprint().HumanReadable())
	if p.budget.Limit > 0 {
		fmt.Fprintf(&b, " of %v", p.budget.Limit.HumanReadable())
	}
	return b.String()
}
