// Package random holds the deterministic generators used by the stochastic
// timing rules. Generators are plain values owned by whoever drives a core;
// none of them is safe for concurrent use.
package random

import "github.com/denizumutdereli/stdpcore/pkg/core"

// Source yields raw 32-bit draws.
type Source interface {
	Uint32() uint32
}

// FixedPoint masks a draw from src into [0, core.One).
func FixedPoint(src Source) int32 {
	return int32(src.Uint32() & uint32(core.One-1))
}

// KISS is Marsaglia's KISS generator: a Weyl sequence, a 3-shift xorshift
// register and a lag-1 add-with-carry pair.
type KISS struct {
	x, y, z, w, c uint32
}

// NewKISS returns a generator loaded with the fixed seed every core boots
// with, so two fresh generators always produce the same sequence.
func NewKISS() *KISS {
	return &KISS{x: 123456789, y: 234567891, z: 345678912, w: 456789123, c: 0}
}

// Uint32 advances the generator.
func (k *KISS) Uint32() uint32 {
	k.y ^= k.y << 5
	k.y ^= k.y >> 7
	k.y ^= k.y << 22

	t := int32(k.z + k.w + k.c)
	k.z = k.w
	if t < 0 {
		k.c = 1
	} else {
		k.c = 0
	}
	k.w = uint32(t) & 2147483647
	k.x += 1411392427

	return k.x + k.y + k.w
}

// Seed is the four-word state of KISS64.
type Seed [4]uint32

// DefaultSeed matches the KISS boot constants.
var DefaultSeed = Seed{123456789, 234567891, 345678912, 456789123}

// Valid reports whether the seed can drive KISS64. The xorshift word must be
// non-zero and the carry word must stay below the multiplier.
func (s Seed) Valid() bool {
	return s[1] != 0 && s[3] < 4294584393
}

// KISS64 is the seeded variant: a linear congruential word, an xorshift word
// and a 64-bit multiply-with-carry pair.
type KISS64 struct {
	seed Seed
}

// NewKISS64 copies seed into a new generator.
func NewKISS64(seed Seed) *KISS64 {
	return &KISS64{seed: seed}
}

// Uint32 advances the generator.
func (k *KISS64) Uint32() uint32 {
	s := &k.seed
	s[0] = 314527869*s[0] + 1234567
	s[1] ^= s[1] << 5
	s[1] ^= s[1] >> 7
	s[1] ^= s[1] << 22
	t := 4294584393*uint64(s[2]) + uint64(s[3])
	s[3] = uint32(t >> 32)
	s[2] = uint32(t)
	return s[0] + s[1] + s[2]
}

// State returns a copy of the current seed words, e.g. for snapshots.
func (k *KISS64) State() Seed {
	return k.seed
}

// Sequence replays a fixed list of draws, cycling when exhausted. It is used to
// pin the stochastic rules to known draws.
type Sequence struct {
	vals []uint32
	next int
}

// NewSequence returns a Sequence over vals. An empty list always yields 0.
func NewSequence(vals ...uint32) *Sequence {
	return &Sequence{vals: vals}
}

// Uint32 returns the next value in the list.
func (s *Sequence) Uint32() uint32 {
	if len(s.vals) == 0 {
		return 0
	}
	v := s.vals[s.next]
	s.next = (s.next + 1) % len(s.vals)
	return v
}
