package timing

import (
	"github.com/denizumutdereli/stdpcore/pkg/lut"
	"github.com/denizumutdereli/stdpcore/pkg/random"
	"github.com/denizumutdereli/stdpcore/pkg/weight"
)

// fixedWindows: recurrent-fixed. Both windows are constants from the region.
type fixedWindows struct {
	pre, post uint32
}

func (w fixedWindows) openPre(s UpdateState) UpdateState  { return s }
func (w fixedWindows) openPost(s UpdateState) UpdateState { return s }

func (w fixedWindows) inPreWindow(dt uint32, _ UpdateState) bool  { return dt < w.pre }
func (w fixedWindows) inPostWindow(dt uint32, _ UpdateState) bool { return dt < w.post }

func newFixed(p Params, dep weight.Dependence) *fsmRule {
	return &fsmRule{
		kind:    KindRecurrentFixed,
		layout:  KindRecurrentFixed.Layout(),
		params:  p,
		dep:     dep,
		windows: fixedWindows{pre: p.PreWindowLength, post: p.PostWindowLength},
	}
}

// sampledWindows: recurrent-pre-stochastic. Opening a window samples its
// length from the inverse-CDF table of that side and stores it in the
// synapse; both tests use the stored length.
type sampledWindows struct {
	pre, post lut.InverseCDF
	src       random.Source
}

func (w sampledWindows) openPre(s UpdateState) UpdateState {
	length, draw := w.pre.Draw(w.src)
	s.WindowLength = length
	runtimeLogf("\t\tRandom=%d, Exp dist=%d", draw, length)
	return s
}

func (w sampledWindows) openPost(s UpdateState) UpdateState {
	length, draw := w.post.Draw(w.src)
	s.WindowLength = length
	runtimeLogf("\t\tRandom=%d, Exp dist=%d", draw, length)
	return s
}

func (w sampledWindows) inPreWindow(dt uint32, s UpdateState) bool  { return dt < s.WindowLength }
func (w sampledWindows) inPostWindow(dt uint32, s UpdateState) bool { return dt < s.WindowLength }

func newPreStochastic(p Params, pre, post lut.InverseCDF, dep weight.Dependence, src random.Source) *fsmRule {
	return &fsmRule{
		kind:    KindRecurrentPreStochastic,
		layout:  KindRecurrentPreStochastic.Layout(),
		params:  p,
		dep:     dep,
		windows: sampledWindows{pre: pre, post: post, src: src},
	}
}

// cdfWindows: recurrent-stochastic. Nothing is sampled on open; each test
// draws afresh against the CDF at the elapsed time.
type cdfWindows struct {
	pre, post lut.CDF
	src       random.Source
}

func (w cdfWindows) openPre(s UpdateState) UpdateState  { return s }
func (w cdfWindows) openPost(s UpdateState) UpdateState { return s }

func (w cdfWindows) inPreWindow(dt uint32, _ UpdateState) bool {
	open, cdf, draw := w.pre.InWindow(dt, w.src)
	runtimeLogf("\t\tCDF=%d, Random=%d", cdf, draw)
	return open
}

func (w cdfWindows) inPostWindow(dt uint32, _ UpdateState) bool {
	open, cdf, draw := w.post.InWindow(dt, w.src)
	runtimeLogf("\t\tCDF=%d, Random=%d", cdf, draw)
	return open
}

func newStochastic(p Params, pre, post lut.CDF, dep weight.Dependence, src random.Source) *fsmRule {
	return &fsmRule{
		kind:    KindRecurrentStochastic,
		layout:  KindRecurrentStochastic.Layout(),
		params:  p,
		dep:     dep,
		windows: cdfWindows{pre: pre, post: post, src: src},
	}
}
