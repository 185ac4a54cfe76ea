package random

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/xmok/rednote-signer/pkg/models"
)

func seeded(seed int64) *Generator {
	return NewGeneratorFromSource(NewPythonLikeRandomFromInt64(seed), models.DefaultCryptoConfig(), nil)
}

func TestRandIntInclusiveMatchesRandint(t *testing.T) {
	testCases := []struct {
		name     string
		seed     int64
		min, max int64
		want     []int64
	}{
		{"full_uint32", 12345, 0, models.Max32Bit, []int64{831769172}},
		{"sequence_range", 12345, 15, 50, []int64{41, 15, 34, 38, 27}},
		{"negative_bounds", 12345, -100, 100, []int64{6, 87, -98, -24, -6}},
		{"byte_range", 12345, 0, 255, []int64{213, 5, 152, 188, 99, 138, 223, 82}},
		{"one_to_ten_seed_42", 42, 1, 10, []int64{2}},
		{"one_to_ten_seed_0", 0, 1, 10, []int64{7}},
		{"full_int64_span", 3, math.MinInt64, math.MaxInt64, []int64{915533473134040693}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := seeded(tc.seed)
			for i, want := range tc.want {
				got, err := g.RandIntInclusive(tc.min, tc.max)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != want {
					t.Fatalf("draw %d: got %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestRandIntInclusiveSingleValue(t *testing.T) {
	g := seeded(1)
	for i := 0; i < 5; i++ {
		v, err := g.RandIntInclusive(9, 9)
		if err != nil || v != 9 {
			t.Fatalf("got %d, %v; want 9, nil", v, err)
		}
	}
}

func TestRandIntInclusiveRejectsInvertedRange(t *testing.T) {
	g := seeded(1)
	_, err := g.RandIntInclusive(10, 1)
	if !errors.Is(err, models.ErrRange) {
		t.Fatalf("expected ErrRange, got %v", err)
	}
	var rangeErr *models.RangeError
	if !errors.As(err, &rangeErr) || rangeErr.Min != "10" || rangeErr.Max != "1" {
		t.Fatalf("unexpected error detail: %#v", err)
	}
}

func TestRandIntInclusiveFloat(t *testing.T) {
	g := seeded(42)
	v, err := g.RandIntInclusiveFloat(0.5, 10.9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 2 {
		t.Fatalf("got %d, want 2", v)
	}

	for _, bounds := range [][2]float64{{math.NaN(), 1}, {0, math.Inf(1)}, {math.Inf(-1), 0}} {
		if _, err := g.RandIntInclusiveFloat(bounds[0], bounds[1]); !errors.Is(err, models.ErrRange) {
			t.Errorf("bounds %v: expected ErrRange, got %v", bounds, err)
		}
	}
}

func TestGenerateRandomBytes(t *testing.T) {
	g := seeded(12345)
	got := g.GenerateRandomBytes(8)
	want := []byte{213, 5, 152, 188, 99, 138, 223, 82}
	if string(got) != string(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if b := g.GenerateRandomBytes(0); b == nil || len(b) != 0 {
		t.Fatalf("zero length should give an empty non-nil slice, got %v", b)
	}
	if b := g.GenerateRandomBytes(-3); len(b) != 0 {
		t.Fatalf("negative length should give an empty slice, got %v", b)
	}
}

func TestGenerateRandomByteInRange(t *testing.T) {
	g := seeded(7)
	for i := 0; i < 50; i++ {
		v, err := g.GenerateRandomByteInRange(10, 20)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v < 10 || v > 20 {
			t.Fatalf("value %d outside [10,20]", v)
		}
	}
	for _, r := range [][2]int64{{-1, 10}, {0, 256}} {
		if _, err := g.GenerateRandomByteInRange(r[0], r[1]); !errors.Is(err, models.ErrRange) {
			t.Errorf("range %v: expected ErrRange, got %v", r, err)
		}
	}
}

func TestGenerateRandomInt(t *testing.T) {
	g := seeded(12345)
	if got := g.GenerateRandomInt(); got != 831769172 {
		t.Fatalf("got %d, want 831769172", got)
	}
}

func TestTraceIDs(t *testing.T) {
	if got := seeded(2024).GenerateB3TraceID(); got != "9f30721957034c08" {
		t.Fatalf("b3 = %s", got)
	}

	xray, err := seeded(2024).GenerateXrayTraceID(1700000000000, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if xray != "c5e7f2b4007857ddf30721957034c08e" {
		t.Fatalf("xray = %s", xray)
	}

	seq := int64(5)
	xray, err = seeded(2024).GenerateXrayTraceID(1700000000000, &seq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if xray != "c5e7f2b4000000059f30721957034c08" {
		t.Fatalf("xray with seq = %s", xray)
	}
	if len(xray) != 32 || strings.Trim(xray, "0123456789abcdef") != "" {
		t.Fatalf("xray is not 32 lowercase hex chars: %s", xray)
	}

	bad := int64(1 << 23)
	if _, err := seeded(1).GenerateXrayTraceID(1, &bad); !errors.Is(err, models.ErrRange) {
		t.Fatalf("expected ErrRange for oversized sequence, got %v", err)
	}
}

func TestNewGeneratorHonoursSeed(t *testing.T) {
	cfg := models.DefaultCryptoConfig().With(models.WithRandomSeed(12345))
	g, err := NewGenerator(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := g.NextUint32(); got != 1789368711 {
		t.Fatalf("got %d, want 1789368711", got)
	}
}
