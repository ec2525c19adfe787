package lut

import (
	"github.com/goki/mat32"

	"github.com/denizumutdereli/stdpcore/pkg/core"
)

// Host-side table generation. These run once when a region blob is built and
// are the only place floating point is used.

const maxUint16 = 65535

// GenerateInverseCDF tabulates window lengths drawn from an exponential
// distribution with the given mean (in timesteps): entry i is the length whose
// CDF equals i/One.
func GenerateInverseCDF(mean float32) InverseCDF {
	n := int(core.One)
	entries := make([]int16, n)
	for i := 0; i < n; i++ {
		u := float32(i) / float32(n)
		length := mat32.Round(-mean * mat32.Log(1-u))
		entries[i] = int16(uint16(mat32.Min(length, maxUint16)))
	}
	return InverseCDF{Table: Table{entries: entries}}
}

// GenerateCDF tabulates the exponential CDF with the given mean over the
// CDF horizon in fixed point.
func GenerateCDF(mean float32) CDF {
	entries := make([]int16, CDFHorizon)
	one := float32(core.One)
	for t := 0; t < CDFHorizon; t++ {
		v := mat32.Round((1 - mat32.Exp(-float32(t)/mean)) * one)
		entries[t] = int16(mat32.Min(v, one))
	}
	return CDF{Table: Table{entries: entries}}
}

// GenerateDecay tabulates exp(-t/tau) in fixed point, each entry covering
// 1<<timeShift timesteps.
func GenerateDecay(tau float32, timeShift uint) Decay {
	entries := make([]int16, DecaySize)
	one := float32(core.One)
	for i := 0; i < DecaySize; i++ {
		t := float32(uint32(i) << timeShift)
		entries[i] = int16(mat32.Round(mat32.Exp(-t/tau) * one))
	}
	return Decay{Table: Table{entries: entries}, TimeShift: timeShift}
}
