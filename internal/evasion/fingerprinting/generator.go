// Package fingerprinting builds the synthetic browser fingerprint sent with
// signed requests and derives its obfuscated b1 digest.
package fingerprinting

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xmok/rednote-signer/internal/crypto"
	"github.com/xmok/rednote-signer/internal/random"
	"github.com/xmok/rednote-signer/pkg/models"
	"github.com/xmok/rednote-signer/pkg/utils"
)

const webglEntropySize = 32

type FingerprintGenerator struct {
	config   models.CryptoConfig
	rng      *random.Generator
	encoder  *crypto.Base64Encoder
	entropy  io.Reader
	now      func() time.Time
	referer  string
	location string
	logger   *logrus.Logger
}

type GeneratorOption func(*FingerprintGenerator)

// WithEntropy replaces crypto/rand as the source of webgl hash input.
func WithEntropy(r io.Reader) GeneratorOption {
	return func(g *FingerprintGenerator) { g.entropy = r }
}

func WithClock(now func() time.Time) GeneratorOption {
	return func(g *FingerprintGenerator) { g.now = now }
}

// WithLocation sets the x66 referer and location used by Generate.
func WithLocation(referer, location string) GeneratorOption {
	return func(g *FingerprintGenerator) {
		g.referer = referer
		g.location = location
	}
}

func NewFingerprintGenerator(config models.CryptoConfig, rng *random.Generator, logger *logrus.Logger, opts ...GeneratorOption) (*FingerprintGenerator, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if rng == nil {
		var err error
		if rng, err = random.NewGenerator(config, logger); err != nil {
			return nil, err
		}
	}
	encoder, err := crypto.NewBase64Encoder(config)
	if err != nil {
		return nil, err
	}
	g := &FingerprintGenerator{
		config:   config,
		rng:      rng,
		encoder:  encoder,
		entropy:  rand.Reader,
		now:      time.Now,
		location: "https://www.xiaohongshu.com/explore",
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate draws a fresh fingerprint. Weighted fields are drawn in a fixed
// order: screen, gpu, colour depth, memory, cores, incognito, then x36 and x78.
func (g *FingerprintGenerator) Generate(cookies map[string]string, userAgent string) (models.Fingerprint, error) {
	if userAgent == "" {
		userAgent = g.config.PublicUserAgent
	}

	screen := pickWeighted(g.rng, screenOptions)
	gpu := pickWeighted(g.rng, gpuOptions)
	colorDepth := pickWeighted(g.rng, colorDepthOptions)
	memory := pickWeighted(g.rng, deviceMemoryOptions)
	cores := pickWeighted(g.rng, coreOptions)
	incognito := pickWeighted(g.rng, incognitoOptions)

	x36, err := g.rng.RandIntInclusive(1, 20)
	if err != nil {
		return nil, err
	}
	scrollY, err := g.rng.RandIntInclusive(scrollMinY, scrollMaxY)
	if err != nil {
		return nil, err
	}

	webglHash, err := g.GenerateWebglHash()
	if err != nil {
		return nil, err
	}
	canvasHash := g.GenerateCanvasHash()
	nowMs := strconv.FormatInt(g.now().UnixMilli(), 10)
	y := float64(scrollY)

	fp := models.Fingerprint{
		"x1":  userAgent,
		"x2":  "false",
		"x3":  "zh-CN",
		"x4":  strconv.Itoa(colorDepth),
		"x5":  strconv.Itoa(memory),
		"x6":  "24",
		"x7":  gpu.Vendor + "," + gpu.Renderer,
		"x8":  strconv.Itoa(cores),
		"x9":  fmt.Sprintf("%d;%d", screen.Width, screen.Height),
		"x10": fmt.Sprintf("%d;%d", screen.AvailWidth, screen.AvailHeight),
		"x11": "-480",
		"x12": "Asia/Shanghai",
		"x13": "true",
		"x14": "true",
		"x15": "true",
		"x16": "false",
		"x17": "false",
		"x18": "un",
		"x19": "Win32",
		"x20": "",
		"x21": browserPlugins,
		"x22": webglHash,
		"x23": "false",
		"x24": "false",
		"x25": "false",
		"x26": "false",
		"x27": incognito,
		"x28": "0,false,false",
		"x29": "4,7,8",
		"x30": "swf object not loaded",
		"x33": "0",
		"x34": "0",
		"x35": "0",
		"x36": strconv.FormatInt(x36, 10),
		"x37": "0|0|0|0|0|0|0|0|0|1|0|0|0|0|0|0|0|0|1|0|0|0|0|0",
		"x38": "0|0|1|0|1|0|0|0|0|0|1|0|1|0|1|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0",
		"x39": 0,
		"x40": "0",
		"x41": "0",
		"x42": "3.4.4",
		"x43": canvasHash,
		"x44": nowMs,
		"x45": "__SEC_CAV__1-1-1-1-1|__SEC_WSA__|",
		"x46": "false",
		"x47": "1|0|0|0|0|0",
		"x48": "",
		"x49": "{list:[],type:}",
		"x50": "",
		"x51": "",
		"x52": "",
		"x55": "380,380,360,400,380,400,420,380,400,400,360,360,440,420",
		"x56": fmt.Sprintf("%s|%s|%s|35", gpu.Vendor, gpu.Renderer, webglHash),
		"x57": CookieString(cookies),
		"x58": "180",
		"x59": "2",
		"x60": "63",
		"x61": "1291",
		"x62": "2047",
		"x63": "0",
		"x64": "0",
		"x65": "0",
		"x66": models.LocationInfo{Referer: g.referer, Location: g.location, Frame: 0},
		"x67": "1|0",
		"x68": "0",
		"x69": "326|1292|30",
		"x70": []string{"location"},
		"x71": "true",
		"x72": "complete",
		"x73": "1191",
		"x74": "0|0|0",
		"x75": "Google Inc.",
		"x76": "true",
		"x77": "1|1|1|1|1|1|1|1|1|1",
		"x78": models.BoundingRect{
			X: 0, Y: y, Width: 321.5, Height: 18,
			Top: y, Right: 321.5, Bottom: y + 18, Left: 0,
		},
		"x82": "_0x17a2|_0x1954",
	}

	g.logger.WithFields(logrus.Fields{
		"screen": fp["x9"],
		"cores":  cores,
		"digest": fp.Digest(),
	}).Debug("generated fingerprint")
	return fp, nil
}

// GenerateCanvasHash returns the configured canvas hash. No canvas is rendered.
func (g *FingerprintGenerator) GenerateCanvasHash() string {
	return g.config.CanvasHash
}

// GenerateWebglHash is the md5 hex digest of 32 bytes from the entropy source.
func (g *FingerprintGenerator) GenerateWebglHash() (string, error) {
	buf := make([]byte, webglEntropySize)
	if _, err := io.ReadFull(g.entropy, buf); err != nil {
		return "", fmt.Errorf("read webgl entropy: %w", err)
	}
	sum := md5.Sum(buf)
	return hex.EncodeToString(sum[:]), nil
}

// Update refreshes the per-request fields of an existing fingerprint in place.
func (g *FingerprintGenerator) Update(fp models.Fingerprint, cookies map[string]string, url string) {
	fp["x39"] = 0
	fp["x44"] = strconv.FormatInt(g.now().UnixMilli(), 10)
	fp["x57"] = CookieString(cookies)
	fp["x66"] = models.LocationInfo{Referer: g.referer, Location: url, Frame: 0}
}

// CookieString joins cookies as "k=v; k=v" with keys in sorted order.
func CookieString(cookies map[string]string) string {
	return utils.MapToKeyValueString(cookies, "; ")
}

// pickWeighted returns the first option whose cumulative weight reaches
// Random()*total.
func pickWeighted[T any](rng *random.Generator, options []weighted[T]) T {
	total := 0.0
	for _, o := range options {
		total += o.Weight
	}
	pick := rng.Random() * total
	cumulative := 0.0
	for _, o := range options {
		cumulative += o.Weight
		if cumulative >= pick {
			return o.Value
		}
	}
	return options[len(options)-1].Value
}
