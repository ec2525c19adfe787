package timing

import (
	"errors"
	"testing"

	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/lut"
	"github.com/denizumutdereli/stdpcore/pkg/weight/weighttest"
)

func TestRegionRoundTripEveryKind(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			src := testRegion(-5, 5)
			words, err := src.EncodeRegion(kind, nil)
			if err != nil {
				t.Fatalf("EncodeRegion failed: %v", err)
			}
			trailer := []uint32{0xdeadbeef, 7}
			words = append(words, trailer...)

			c := lut.NewCursor(words)
			got, err := ReadRegion(kind, c)
			if err != nil {
				t.Fatalf("ReadRegion failed: %v", err)
			}
			if rest := c.Remaining(); len(rest) != 2 || rest[0] != 0xdeadbeef {
				t.Errorf("expected trailer left on cursor, got %v", rest)
			}

			switch kind {
			case KindVogels2011:
				if got.Params.Alpha != 400 || got.Tau.Len() != lut.DecaySize {
					t.Errorf("unexpected vogels region %+v", got.Params)
				}
				if got.Tau.At(3) != src.Tau.At(3) {
					t.Errorf("tau entry mismatch: %d vs %d", got.Tau.At(3), src.Tau.At(3))
				}
			case KindRecurrentFixed:
				if got.Params.PreWindowLength != 20 || got.Params.PostWindowLength != 20 {
					t.Errorf("unexpected windows %+v", got.Params)
				}
			case KindRecurrentStochastic:
				if got.PreCDF.At(10) != src.PreCDF.At(10) || got.PostCDF.At(299) != src.PostCDF.At(299) {
					t.Error("CDF entries differ after round trip")
				}
			default:
				if got.PreInverse.At(2000) != src.PreInverse.At(2000) || got.PostInverse.At(1) != src.PostInverse.At(1) {
					t.Error("inverse-CDF entries differ after round trip")
				}
			}
			if kind != KindVogels2011 {
				if got.Params.Floor() != -5 || got.Params.Ceiling() != 5 {
					t.Errorf("expected bounds -5..5, got %d..%d", got.Params.Floor(), got.Params.Ceiling())
				}
			}
		})
	}
}

func TestReadRegionTooShort(t *testing.T) {
	for _, kind := range Kinds() {
		words, err := testRegion(-5, 5).EncodeRegion(kind, nil)
		if err != nil {
			t.Fatalf("%s: EncodeRegion failed: %v", kind, err)
		}
		_, err = ReadRegion(kind, lut.NewCursor(words[:len(words)-1]))
		if !errors.Is(err, core.ErrRegionTooShort) {
			t.Errorf("%s: expected ErrRegionTooShort, got %v", kind, err)
		}
	}
}

func TestRegionAccumulatorMustFitWord(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		floor   int32
		ceiling int32
		want    error
	}{
		{"4-bit accumulator overflows", KindRecurrentPreStochastic, -10, 10, core.ErrAccumulatorRange},
		{"4-bit accumulator fits", KindRecurrentPreStochastic, -9, 8, nil},
		{"8-bit accumulator fits", KindRecurrentFixed, -120, 120, nil},
		{"8-bit accumulator overflows", KindRecurrentStochastic, -5, 200, core.ErrAccumulatorRange},
		{"16-bit accumulator fits", KindRecurrentDualFSM, -20000, 20000, nil},
		{"positive floor", KindRecurrentFixed, 2, 5, core.ErrInvalidBounds},
		{"negative ceiling", KindRecurrentDualFSMDecay, -5, -2, core.ErrInvalidBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testRegion(tt.floor, tt.ceiling).Validate(tt.kind)
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRegionWrongTableSize(t *testing.T) {
	region := testRegion(-5, 5)
	region.PostCDF = lut.CDF{Table: lut.New(make([]int16, 10))}
	if err := region.Validate(KindRecurrentStochastic); !errors.Is(err, core.ErrTableSize) {
		t.Errorf("expected ErrTableSize, got %v", err)
	}
	if _, err := region.EncodeRegion(KindRecurrentStochastic, nil); !errors.Is(err, core.ErrTableSize) {
		t.Errorf("EncodeRegion: expected ErrTableSize, got %v", err)
	}
	// The fixed rule needs no tables.
	if err := region.Validate(KindRecurrentFixed); err != nil {
		t.Errorf("recurrent-fixed should ignore tables, got %v", err)
	}
}

func TestNewFromBlobReturnsRemainder(t *testing.T) {
	words, err := testRegion(-5, 5).EncodeRegion(KindRecurrentDualFSM, nil)
	if err != nil {
		t.Fatalf("EncodeRegion failed: %v", err)
	}
	words = append(words, 11, 22, 33)

	rule, rest, err := NewFromBlob(KindRecurrentDualFSM, words, &weighttest.Recorder{}, nil)
	if err != nil {
		t.Fatalf("NewFromBlob failed: %v", err)
	}
	if rule.Kind() != KindRecurrentDualFSM {
		t.Errorf("expected recurrent-dual-fsm, got %s", rule.Kind())
	}
	if len(rest) != 3 || rest[2] != 33 {
		t.Errorf("expected 3 trailing words, got %v", rest)
	}
}

func TestNewRejectsMissingPieces(t *testing.T) {
	if _, err := New(KindRecurrentFixed, nil, &weighttest.Recorder{}, nil); err == nil {
		t.Error("expected error for nil region")
	}
	if _, err := New(KindRecurrentFixed, testRegion(-5, 5), nil, nil); err == nil {
		t.Error("expected error for nil dependence")
	}
	if _, err := New(Kind(42), testRegion(-5, 5), &weighttest.Recorder{}, nil); !errors.Is(err, core.ErrUnknownRule) {
		t.Errorf("expected ErrUnknownRule, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"recurrent-fixed", KindRecurrentFixed},
		{"Recurrent_Fixed", KindRecurrentFixed},
		{"recurrent", KindRecurrentFixed},
		{"pre-stochastic", KindRecurrentPreStochastic},
		{"dual-fsm", KindRecurrentDualFSM},
		{"recurrent-cdf", KindRecurrentStochastic},
		{" stochastic ", KindRecurrentStochastic},
		{"dual_fsm_decay", KindRecurrentDualFSMDecay},
		{"vogels", KindVogels2011},
		{"VOGELS-2011", KindVogels2011},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if err != nil {
			t.Errorf("ParseKind(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseKind("hebbian"); !errors.Is(err, core.ErrUnknownRule) {
		t.Errorf("expected ErrUnknownRule, got %v", err)
	}
}

func TestKindsAreDistinctAndNamed(t *testing.T) {
	kinds := Kinds()
	if len(kinds) != 6 {
		t.Fatalf("expected 6 kinds, got %d", len(kinds))
	}
	seen := map[string]bool{}
	for _, k := range kinds {
		name := k.String()
		if seen[name] {
			t.Errorf("duplicate name %s", name)
		}
		seen[name] = true
		if back, err := ParseKind(name); err != nil || back != k {
			t.Errorf("%s does not parse back: %v", name, err)
		}
	}
	if Kind(99).String() != "Kind(99)" {
		t.Errorf("unexpected name for unknown kind: %s", Kind(99))
	}
	if KindRecurrentFixed.Stochastic() || KindVogels2011.Stochastic() || !KindRecurrentStochastic.Stochastic() {
		t.Error("unexpected Stochastic flags")
	}
}
