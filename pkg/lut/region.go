package lut

import (
	"github.com/pkg/errors"

	"github.com/denizumutdereli/stdpcore/pkg/core"
)

// Cursor walks a region blob of 32-bit words the way the boot loader hands it
// to each parser: every reader consumes what it needs and leaves the rest for
// the next one.
type Cursor struct {
	words []uint32
	pos   int
}

// NewCursor starts a cursor at the beginning of words.
func NewCursor(words []uint32) *Cursor {
	return &Cursor{words: words}
}

// Word consumes one word.
func (c *Cursor) Word() (uint32, error) {
	if c.pos >= len(c.words) {
		return 0, errors.Wrapf(core.ErrRegionTooShort, "word %d", c.pos)
	}
	w := c.words[c.pos]
	c.pos++
	return w, nil
}

// Int32 consumes one word and reinterprets it as signed.
func (c *Cursor) Int32() (int32, error) {
	w, err := c.Word()
	return int32(w), err
}

// Int16Table consumes n int16 entries packed two per word, entry 0 in the low
// half of the first word. An odd count pads the last word.
func (c *Cursor) Int16Table(n int) (Table, error) {
	numWords := n/2 + n&1
	if c.pos+numWords > len(c.words) {
		return Table{}, errors.Wrapf(core.ErrRegionTooShort,
			"table of %d entries needs %d words at word %d, have %d", n, numWords, c.pos, len(c.words)-c.pos)
	}
	entries := make([]int16, n)
	for i := 0; i < n; i++ {
		w := c.words[c.pos+i/2]
		if i&1 == 0 {
			entries[i] = int16(w)
		} else {
			entries[i] = int16(w >> 16)
		}
	}
	c.pos += numWords
	return Table{entries: entries}, nil
}

// Offset returns the number of words consumed so far.
func (c *Cursor) Offset() int {
	return c.pos
}

// Remaining returns the words after the cursor, for the next region parser.
func (c *Cursor) Remaining() []uint32 {
	return c.words[c.pos:]
}

// AppendTable packs t onto words using the same layout Int16Table reads.
func AppendTable(words []uint32, t Table) []uint32 {
	for i := 0; i < len(t.entries); i += 2 {
		w := uint32(uint16(t.entries[i]))
		if i+1 < len(t.entries) {
			w |= uint32(uint16(t.entries[i+1])) << 16
		}
		words = append(words, w)
	}
	return words
}

// ReadInverseCDF reads a core.One-entry inverse-CDF table.
func ReadInverseCDF(c *Cursor) (InverseCDF, error) {
	t, err := c.Int16Table(int(core.One))
	if err != nil {
		return InverseCDF{}, errors.Wrap(err, "inverse-CDF table")
	}
	return InverseCDF{Table: t}, nil
}

// ReadCDF reads a CDFHorizon-entry CDF table.
func ReadCDF(c *Cursor) (CDF, error) {
	t, err := c.Int16Table(CDFHorizon)
	if err != nil {
		return CDF{}, errors.Wrap(err, "CDF table")
	}
	return CDF{Table: t}, nil
}

// ReadDecay reads a DecaySize-entry decay table.
func ReadDecay(c *Cursor, timeShift uint) (Decay, error) {
	t, err := c.Int16Table(DecaySize)
	if err != nil {
		return Decay{}, errors.Wrap(err, "decay table")
	}
	return Decay{Table: t, TimeShift: timeShift}, nil
}

// CheckSize rejects a table whose length is not want.
func CheckSize(name string, t Table, want int) error {
	if t.Len() != want {
		return errors.Wrapf(core.ErrTableSize, "%s: expected %d entries, got %d", name, want, t.Len())
	}
	return nil
}
