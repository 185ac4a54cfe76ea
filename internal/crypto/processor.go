package crypto

import (
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/xmok/rednote-signer/internal/random"
	"github.com/xmok/rednote-signer/pkg/models"
)

// CryptoProcessor builds signature payloads. It owns one random stream and
// must not be shared between goroutines.
type CryptoProcessor struct {
	config  models.CryptoConfig
	bitOps  *BitOperations
	encoder *Base64Encoder
	rng     *random.Generator
	logger  *logrus.Logger
	now     func() time.Time
}

func NewCryptoProcessor(config models.CryptoConfig, logger *logrus.Logger) (*CryptoProcessor, error) {
	if logger == nil {
		logger = logrus.New()
	}
	rng, err := random.NewGenerator(config, logger)
	if err != nil {
		return nil, fmt.Errorf("init random generator: %w", err)
	}
	return NewCryptoProcessorWithGenerator(config, rng, logger)
}

// NewCryptoProcessorWithGenerator builds a processor around an existing stream,
// so a session can share its generator between the payload and the fingerprint.
func NewCryptoProcessorWithGenerator(config models.CryptoConfig, rng *random.Generator, logger *logrus.Logger) (*CryptoProcessor, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	bitOps, err := NewBitOperations(config)
	if err != nil {
		return nil, err
	}
	encoder, err := NewBase64Encoder(config)
	if err != nil {
		return nil, err
	}
	return &CryptoProcessor{
		config:  config,
		bitOps:  bitOps,
		encoder: encoder,
		rng:     rng,
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (p *CryptoProcessor) Config() models.CryptoConfig { return p.config }

func (p *CryptoProcessor) Encoder() *Base64Encoder { return p.encoder }

func (p *CryptoProcessor) BitOperations() *BitOperations { return p.bitOps }

func (p *CryptoProcessor) Random() *random.Generator { return p.rng }

// BuildPayloadArray assembles the raw signature payload. An empty appIdentifier
// falls back to the configured default and a non-positive timestamp means now.
func (p *CryptoProcessor) BuildPayloadArray(hexParameter, a1Value, appIdentifier, stringParam string, timestamp float64) ([]byte, error) {
	if appIdentifier == "" {
		appIdentifier = p.config.DefaultAppID
	}
	if timestamp <= 0 {
		timestamp = float64(p.now().UnixNano()) / 1e9
	}
	digest, err := ProcessHexParameter(hexParameter, 8)
	if err != nil {
		return nil, fmt.Errorf("md5 parameter: %w", err)
	}

	tsMs := uint64(int64(timestamp * 1000))
	payload := make([]byte, 0, p.config.PayloadLength())
	payload = append(payload, p.config.VersionBytes...)

	seed := p.rng.GenerateRandomInt()
	payload = binary.LittleEndian.AppendUint32(payload, seed)
	seedByte0 := byte(seed & models.MaxByte)

	payload = append(payload, EnvFingerprintA(tsMs, p.config.EnvFingerprintXorKey)...)

	offset, err := p.rng.RandIntInclusive(p.config.EnvFingerprintTimeOffsetMin, p.config.EnvFingerprintTimeOffsetMax)
	if err != nil {
		return nil, err
	}
	payload = append(payload, EnvFingerprintB(tsMs-uint64(offset))...)

	sequence, err := p.rng.RandIntInclusive(p.config.SequenceValueMin, p.config.SequenceValueMax)
	if err != nil {
		return nil, err
	}
	payload = binary.LittleEndian.AppendUint32(payload, uint32(sequence))

	window, err := p.rng.RandIntInclusive(p.config.WindowPropsLengthMin, p.config.WindowPropsLengthMax)
	if err != nil {
		return nil, err
	}
	payload = binary.LittleEndian.AppendUint32(payload, uint32(window))

	payload = binary.LittleEndian.AppendUint32(payload, uint32(utf8.RuneCountInString(stringParam)))
	payload = append(payload, XorWithByte(digest, seedByte0)...)

	payload = append(payload, byte(p.config.A1FieldLength))
	payload = append(payload, fixedWidth(a1Value, p.config.A1FieldLength)...)
	payload = append(payload, byte(p.config.AppIDFieldLength))
	payload = append(payload, fixedWidth(appIdentifier, p.config.AppIDFieldLength)...)
	payload = append(payload, p.config.PayloadMarker)

	payload = append(payload, p.config.ChecksumVersion, seedByte0^p.config.ChecksumXorKey)
	payload = append(payload, p.config.ChecksumFixedTail...)

	p.logger.WithFields(logrus.Fields{
		"length":   len(payload),
		"sequence": sequence,
		"window":   window,
	}).Debug("built signature payload")
	return payload, nil
}

// BuildX3 XOR-transforms the payload and encodes it into the x3 field.
func (p *CryptoProcessor) BuildX3(payload []byte) string {
	return p.config.X3Prefix + p.encoder.EncodeX3(p.bitOps.XorTransformBytes(payload))
}

// EnvFingerprintA packs tsMs little-endian, replaces byte 0 with a checksum
// mark of bytes 1..7 and XORs every byte with xorKey.
func EnvFingerprintA(tsMs uint64, xorKey byte) []byte {
	data := binary.LittleEndian.AppendUint64(nil, tsMs)
	sum1 := 0
	for _, b := range data[1:5] {
		sum1 += int(b)
	}
	sum2 := 0
	for _, b := range data[5:8] {
		sum2 += int(b)
	}
	data[0] = byte(((sum1 & 0xff) + sum2) & 0xff)
	for i := range data {
		data[i] ^= xorKey
	}
	return data
}

func EnvFingerprintB(tsMs uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, tsMs)
}

// fixedWidth returns exactly n bytes of s, truncated or right-padded with zeros.
func fixedWidth(s string, n int) []byte {
	out := make([]byte, n)
	copy(out, s)
	return out
}
