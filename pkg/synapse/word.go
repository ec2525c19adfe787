// Package synapse implements the packed synaptic words that hold each
// plastic synapse's persisted state between row passes.
//
// Fields are packed least-significant first, which reproduces the in-memory
// image of the little-endian bitfield structs used on the target: the weight
// always occupies bits 0-15.
//
//	layout            bits 0-15  16-...
//	WeightAccState    weight:16  accumulator:8  state:8
//	WeightAccWindow   weight:16  accumulator:4  state:2  window_length:10
//	WeightAcc16       weight:16  accumulator:16
//	WeightOnly        weight:16
package synapse

import (
	"fmt"
	"strings"
)

// Word is one packed synaptic word.
type Word uint32

// Policy decides what happens to a value that does not fit its field.
type Policy uint8

const (
	// Saturate clamps to the nearest representable value.
	Saturate Policy = iota
	// Truncate keeps the low bits.
	Truncate
)

// Field describes one packed field.
type Field struct {
	Name   string
	Width  uint8
	Signed bool
	Policy Policy
}

// Range returns the smallest and largest value the field can hold.
func (f Field) Range() (lo, hi int32) {
	if f.Signed {
		return -(1 << (f.Width - 1)), 1<<(f.Width-1) - 1
	}
	if f.Width >= 32 {
		return 0, 1<<31 - 1
	}
	return 0, int32(uint32(1)<<f.Width - 1)
}

// MaxFields is the largest number of fields any layout uses.
const MaxFields = 4

// Field positions shared by every layout that has them.
const (
	FieldWeight = iota
	FieldAccumulator
	FieldState
	FieldWindow
)

// Values holds unpacked field values indexed by field position.
type Values [MaxFields]int32

// Layout is an ordered set of fields packed into a Word.
type Layout struct {
	Name   string
	fields []Field
	shifts [MaxFields]uint8
}

// NewLayout builds a layout. It panics if the fields do not fit in a Word;
// layouts are package-level definitions, not user input.
func NewLayout(name string, fields ...Field) Layout {
	if len(fields) > MaxFields {
		panic(fmt.Sprintf("layout %s: %d fields, max %d", name, len(fields), MaxFields))
	}
	l := Layout{Name: name, fields: fields}
	var shift uint8
	for i, f := range fields {
		if f.Width == 0 {
			panic(fmt.Sprintf("layout %s: field %s has zero width", name, f.Name))
		}
		l.shifts[i] = shift
		shift += f.Width
	}
	if shift > 32 {
		panic(fmt.Sprintf("layout %s: %d bits do not fit a word", name, shift))
	}
	return l
}

var weightField = Field{Name: "weight", Width: 16, Policy: Saturate}

var (
	WeightAccState = NewLayout("weight16-acc8-state8",
		weightField,
		Field{Name: "accumulator", Width: 8, Signed: true, Policy: Saturate},
		Field{Name: "state", Width: 8, Policy: Truncate},
	)
	WeightAccWindow = NewLayout("weight16-acc4-state2-window10",
		weightField,
		Field{Name: "accumulator", Width: 4, Signed: true, Policy: Saturate},
		Field{Name: "state", Width: 2, Policy: Truncate},
		Field{Name: "window_length", Width: 10, Policy: Saturate},
	)
	WeightAcc16 = NewLayout("weight16-acc16",
		weightField,
		Field{Name: "accumulator", Width: 16, Signed: true, Policy: Saturate},
	)
	WeightOnly = NewLayout("weight16", weightField)
)

// NumFields returns how many fields the layout packs.
func (l Layout) NumFields() int {
	return len(l.fields)
}

// Field returns the description of field i.
func (l Layout) Field(i int) Field {
	return l.fields[i]
}

// Bits returns the total packed width.
func (l Layout) Bits() int {
	n := 0
	for _, f := range l.fields {
		n += int(f.Width)
	}
	return n
}

// Pack encodes v. The second result reports whether any value had to be
// saturated or truncated to fit.
func (l Layout) Pack(v Values) (Word, bool) {
	var w uint32
	adjusted := false
	for i, f := range l.fields {
		x := v[i]
		lo, hi := f.Range()
		if x < lo || x > hi {
			adjusted = true
			if f.Policy == Saturate {
				if x < lo {
					x = lo
				} else {
					x = hi
				}
			}
		}
		mask := uint32(1)<<f.Width - 1
		if f.Width == 32 {
			mask = ^uint32(0)
		}
		w |= (uint32(x) & mask) << l.shifts[i]
	}
	return Word(w), adjusted
}

// Unpack decodes w, sign-extending signed fields.
func (l Layout) Unpack(w Word) Values {
	var v Values
	for i, f := range l.fields {
		raw := uint32(w) >> l.shifts[i]
		if f.Width < 32 {
			raw &= uint32(1)<<f.Width - 1
		}
		if f.Signed && f.Width < 32 {
			unused := 32 - f.Width
			v[i] = int32(raw<<unused) >> unused
		} else {
			v[i] = int32(raw)
		}
	}
	return v
}

// Describe renders the fields of w for inspection tools.
func (l Layout) Describe(w Word) string {
	v := l.Unpack(w)
	var b strings.Builder
	for i, f := range l.fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%d", f.Name, v[i])
	}
	return b.String()
}
