// Package lut implements the read-only lookup tables the timing rules consult
// instead of evaluating transcendental functions at run time.
//
// Three shapes are used:
//
//	InverseCDF  uniform fixed-point draw -> sampled window length
//	CDF         elapsed time -> cumulative probability that a window closed
//	Decay       elapsed time -> fixed-point exponential decay factor
//
// Tables are built once (from a region blob or generated on the host) and are
// never written afterwards, so one table may be shared by every core.
package lut

import (
	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/random"
)

// Table is an immutable ordered list of 16-bit entries.
type Table struct {
	entries []int16
}

// New copies entries into a Table.
func New(entries []int16) Table {
	cp := make([]int16, len(entries))
	copy(cp, entries)
	return Table{entries: cp}
}

// Len returns the number of entries.
func (t Table) Len() int {
	return len(t.entries)
}

// At returns entry i sign-extended. Indices are not checked beyond what the
// slice itself enforces; callers index with values the table size guarantees.
func (t Table) At(i uint32) int32 {
	return int32(t.entries[i])
}

// Unsigned returns entry i reinterpreted as uint16.
func (t Table) Unsigned(i uint32) uint32 {
	return uint32(uint16(t.entries[i]))
}

// Entries returns a copy of the table contents.
func (t Table) Entries() []int16 {
	cp := make([]int16, len(t.entries))
	copy(cp, t.entries)
	return cp
}

// InverseCDF maps a uniform draw in [0, core.One) to a window length. It must
// hold exactly core.One entries.
type InverseCDF struct {
	Table
}

// Draw samples a window length using one fixed-point draw from src.
func (t InverseCDF) Draw(src random.Source) (window uint32, draw int32) {
	draw = random.FixedPoint(src)
	return t.Unsigned(uint32(draw)), draw
}

// CDFHorizon is the number of timesteps tabulated by a CDF table.
const CDFHorizon = 300

// CDF maps an elapsed time to the fixed-point probability that a window
// opened that long ago has already closed.
type CDF struct {
	Table
}

// InWindow reports whether a window opened dt steps ago is still open. Beyond
// the tabulated horizon the window is closed and no draw is consumed.
func (t CDF) InWindow(dt uint32, src random.Source) (open bool, cdf, draw int32) {
	if dt >= uint32(t.Len()) {
		return false, 0, 0
	}
	cdf = t.At(dt)
	draw = random.FixedPoint(src)
	return draw > cdf, cdf, draw
}

// DecaySize is the number of entries in a tau decay table.
const DecaySize = 256

// Decay maps an elapsed time to an exponential decay factor in fixed point.
type Decay struct {
	Table
	// TimeShift divides the elapsed time before indexing, stretching the
	// table over longer time constants.
	TimeShift uint
}

// At returns the decay factor for dt, or 0 once dt runs off the table.
func (d Decay) At(dt uint32) int32 {
	i := dt >> d.TimeShift
	if i < uint32(d.Len()) {
		return d.Table.At(i)
	}
	return 0
}

// Apply decays a 16-bit fixed-point trace by dt timesteps.
func (d Decay) Apply(trace int32, dt uint32) int32 {
	return core.Mul16x16(trace, d.At(dt))
}
