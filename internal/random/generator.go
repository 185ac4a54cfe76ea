package random

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/xmok/rednote-signer/pkg/models"
)

// Generator wraps one PythonLikeRandom stream with the helpers the protocol needs.
// A Generator belongs to a single signing session and must not be shared.
type Generator struct {
	rng    *PythonLikeRandom
	config models.CryptoConfig
	logger *logrus.Logger
}

// NewGenerator seeds from config.RandomSeed when set, otherwise from OS entropy.
func NewGenerator(config models.CryptoConfig, logger *logrus.Logger) (*Generator, error) {
	if logger == nil {
		logger = logrus.New()
	}
	var seed *big.Int
	if config.RandomSeed != nil {
		seed = big.NewInt(*config.RandomSeed)
		logger.Debugf("seeding generator with fixed seed %d", *config.RandomSeed)
	}
	rng, err := NewPythonLikeRandom(seed)
	if err != nil {
		return nil, err
	}
	return &Generator{rng: rng, config: config, logger: logger}, nil
}

// NewGeneratorFromSource wraps an existing stream.
func NewGeneratorFromSource(rng *PythonLikeRandom, config models.CryptoConfig, logger *logrus.Logger) *Generator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Generator{rng: rng, config: config, logger: logger}
}

func (g *Generator) Source() *PythonLikeRandom { return g.rng }

func (g *Generator) Random() float64 { return g.rng.Random() }

func (g *Generator) NextUint32() uint32 { return g.rng.NextUint32() }

// RandIntInclusive mirrors random.randint(min, max).
func (g *Generator) RandIntInclusive(min, max int64) (int64, error) {
	if max < min {
		return 0, &models.RangeError{
			Min:    strconv.FormatInt(min, 10),
			Max:    strconv.FormatInt(max, 10),
			Reason: "max is lower than min",
		}
	}
	width := uint64(max) - uint64(min) + 1
	if width == 0 {
		// full int64 span: 2^64 values
		span := new(big.Int).Lsh(big.NewInt(1), 64)
		v := g.rng.RandBelowBig(span).Uint64()
		return int64(v + uint64(min)), nil
	}
	return int64(uint64(min) + g.rng.RandBelow(width)), nil
}

// RandIntInclusiveFloat accepts float bounds as a JS caller would pass them.
func (g *Generator) RandIntInclusiveFloat(min, max float64) (int64, error) {
	for _, v := range []float64{min, max} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &models.RangeError{
				Min:    strconv.FormatFloat(min, 'g', -1, 64),
				Max:    strconv.FormatFloat(max, 'g', -1, 64),
				Reason: "bounds must be finite",
			}
		}
	}
	return g.RandIntInclusive(int64(math.Ceil(min)), int64(math.Floor(max)))
}

func (g *Generator) mustRange(min, max int64) int64 {
	v, err := g.RandIntInclusive(min, max)
	if err != nil {
		panic(err)
	}
	return v
}

func (g *Generator) RandByte() byte {
	return byte(g.mustRange(0, models.MaxByte))
}

func (g *Generator) GenerateRandomBytes(n int) []byte {
	if n <= 0 {
		return []byte{}
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = g.RandByte()
	}
	return out
}

func (g *Generator) GenerateRandomByteInRange(min, max int64) (int64, error) {
	if min < 0 || max > models.MaxByte {
		return 0, &models.RangeError{
			Min:    strconv.FormatInt(min, 10),
			Max:    strconv.FormatInt(max, 10),
			Reason: "byte range must lie within 0..255",
		}
	}
	return g.RandIntInclusive(min, max)
}

// GenerateRandomInt is uniform over [0, 2^32-1] with randint semantics.
func (g *Generator) GenerateRandomInt() uint32 {
	return uint32(g.mustRange(0, models.Max32Bit))
}

// Choice returns an index in [0, n), as random.choice does.
func (g *Generator) Choice(n int) int {
	if n <= 0 {
		return 0
	}
	return int(g.rng.RandBelow(uint64(n)))
}

func (g *Generator) randomHex(n int) string {
	chars := g.config.HexChars
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		sb.WriteByte(chars[g.Choice(len(chars))])
	}
	return sb.String()
}

func (g *Generator) GenerateB3TraceID() string {
	return g.randomHex(g.config.B3TraceIDLength)
}

// GenerateXrayTraceID returns %016x(ts<<bits | seq) followed by random hex.
// seq is drawn from [0, 2^bits-1] when nil.
func (g *Generator) GenerateXrayTraceID(timestampMs int64, seq *int64) (string, error) {
	bits := g.config.XraySequenceBits
	maxSeq := int64(1)<<bits - 1
	var s int64
	if seq != nil {
		if *seq < 0 || *seq > maxSeq {
			return "", &models.RangeError{
				Min:    "0",
				Max:    strconv.FormatInt(maxSeq, 10),
				Reason: fmt.Sprintf("sequence %d out of range", *seq),
			}
		}
		s = *seq
	} else {
		s = g.mustRange(0, maxSeq)
	}
	head := (uint64(timestampMs) << bits) | uint64(s)
	return fmt.Sprintf("%016x", head) + g.randomHex(g.config.XrayTraceIDSuffixLength), nil
}
