package timing

import (
	"testing"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/lut"
	"github.com/denizumutdereli/stdpcore/pkg/random"
	"github.com/denizumutdereli/stdpcore/pkg/weight/weighttest"
)

// testRegion fills every table so one region serves all kinds.
func testRegion(floor, ceiling int32) *Region {
	r := &Region{Params: ParamsFromBounds(floor, ceiling)}
	r.Params.PreWindowLength = 20
	r.Params.PostWindowLength = 20
	r.Params.Alpha = 400
	r.PreInverse = lut.GenerateInverseCDF(15)
	r.PostInverse = lut.GenerateInverseCDF(25)
	r.PreCDF = lut.GenerateCDF(15)
	r.PostCDF = lut.GenerateCDF(25)
	r.Tau = lut.GenerateDecay(20, TauTimeShift)
	return r
}

func constInverse(v int16) lut.InverseCDF {
	e := make([]int16, core.One)
	for i := range e {
		e[i] = v
	}
	return lut.InverseCDF{Table: lut.New(e)}
}

func constCDF(v int16) lut.CDF {
	e := make([]int16, lut.CDFHorizon)
	for i := range e {
		e[i] = v
	}
	return lut.CDF{Table: lut.New(e)}
}

func newTestRule(t *testing.T, kind Kind, region *Region, src random.Source) (Rule, *weighttest.Recorder) {
	t.Helper()
	rec := &weighttest.Recorder{}
	rule, err := New(kind, region, rec, src)
	if err != nil {
		t.Fatalf("New(%s) failed: %v", kind, err)
	}
	return rule, rec
}

// countingSource counts how many draws a rule consumed.
type countingSource struct {
	src   random.Source
	draws int
}

func (c *countingSource) Uint32() uint32 {
	c.draws++
	return c.src.Uint32()
}

// spikeAt builds an event at time with untraced last spikes.
func spikeAt(time, lastPre, lastPost core.Time) Event {
	return Event{Time: time, LastPre: Spike{Time: lastPre}, LastPost: Spike{Time: lastPost}}
}
