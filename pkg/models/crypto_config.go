package models

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	StandardBase64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

	Max32Bit       = 0xFFFFFFFF
	MaxSigned32Bit = 0x7FFFFFFF
	MaxByte        = 0xFF
)

// CryptoConfig holds every magic constant of the signing protocol.
// Treat it as a value: use With to derive a modified copy.
type CryptoConfig struct {
	StandardBase64Alphabet string `yaml:"standard_base64_alphabet" json:"standard_base64_alphabet"`
	CustomBase64Alphabet   string `yaml:"custom_base64_alphabet" json:"custom_base64_alphabet"`
	X3Base64Alphabet       string `yaml:"x3_base64_alphabet" json:"x3_base64_alphabet"`

	HexKey string `yaml:"hex_key" json:"hex_key"`

	VersionBytes []byte `yaml:"version_bytes" json:"version_bytes"`

	SequenceValueMin     int64 `yaml:"sequence_value_min" json:"sequence_value_min"`
	SequenceValueMax     int64 `yaml:"sequence_value_max" json:"sequence_value_max"`
	WindowPropsLengthMin int64 `yaml:"window_props_length_min" json:"window_props_length_min"`
	WindowPropsLengthMax int64 `yaml:"window_props_length_max" json:"window_props_length_max"`

	EnvFingerprintXorKey        byte  `yaml:"env_fingerprint_xor_key" json:"env_fingerprint_xor_key"`
	EnvFingerprintTimeOffsetMin int64 `yaml:"env_fingerprint_time_offset_min" json:"env_fingerprint_time_offset_min"`
	EnvFingerprintTimeOffsetMax int64 `yaml:"env_fingerprint_time_offset_max" json:"env_fingerprint_time_offset_max"`

	A1FieldLength    int  `yaml:"a1_field_length" json:"a1_field_length"`
	AppIDFieldLength int  `yaml:"app_id_field_length" json:"app_id_field_length"`
	PayloadMarker    byte `yaml:"payload_marker" json:"payload_marker"`

	ChecksumVersion   byte   `yaml:"checksum_version" json:"checksum_version"`
	ChecksumXorKey    byte   `yaml:"checksum_xor_key" json:"checksum_xor_key"`
	ChecksumFixedTail []byte `yaml:"checksum_fixed_tail" json:"checksum_fixed_tail"`

	DefaultAppID     string `yaml:"default_app_id" json:"default_app_id"`
	Platform         string `yaml:"platform" json:"platform"`
	SignatureVersion string `yaml:"signature_version" json:"signature_version"`
	SDKVersion       string `yaml:"sdk_version" json:"sdk_version"`
	X3Prefix         string `yaml:"x3_prefix" json:"x3_prefix"`
	XYSPrefix        string `yaml:"xys_prefix" json:"xys_prefix"`

	HexChars                string `yaml:"hex_chars" json:"hex_chars"`
	B3TraceIDLength         int    `yaml:"b3_trace_id_length" json:"b3_trace_id_length"`
	XrayTraceIDSuffixLength int    `yaml:"xray_trace_id_suffix_length" json:"xray_trace_id_suffix_length"`
	XraySequenceBits        uint   `yaml:"xray_sequence_bits" json:"xray_sequence_bits"`

	B1SecretKey     string `yaml:"b1_secret_key" json:"b1_secret_key"`
	CanvasHash      string `yaml:"canvas_hash" json:"canvas_hash"`
	PublicUserAgent string `yaml:"public_user_agent" json:"public_user_agent"`

	XSCommonS0  int    `yaml:"xs_common_s0" json:"xs_common_s0"`
	XSCommonX0  string `yaml:"xs_common_x0" json:"xs_common_x0"`
	XSCommonX10 int    `yaml:"xs_common_x10" json:"xs_common_x10"`
	XSCommonX11 string `yaml:"xs_common_x11" json:"xs_common_x11"`

	// RandomSeed pins the processor PRNG. Nil means OS entropy.
	RandomSeed *int64 `yaml:"random_seed,omitempty" json:"random_seed,omitempty"`
}

type CryptoOption func(*CryptoConfig)

func DefaultCryptoConfig() CryptoConfig {
	return CryptoConfig{
		StandardBase64Alphabet: StandardBase64Alphabet,
		CustomBase64Alphabet:   "ZmserbBoHQtNP+wOcza/LpngG8yJq42KWYj0DSfdikx3VT16IlUAFM97hECvuRX5",
		X3Base64Alphabet:       "MfgqrsbcyzPQRStuvC7mn501HIJBo2DEFTKdeNOwxWXYZap89+/A4UVLhijkl63G",

		HexKey: "71a302257793271ddd273bcee3e4b98d9d7935e1da33f5765e2ea8afb6dc77a5" +
			"1a499d23b67c20660025860cbf13d4540d92497f58686c574e508f46e1956344" +
			"f39139bf4faf22a3eef120b79258145b2feb5193b6478669961298e79bedca64" +
			"6e1a693a926154a5a7a1bd1cf0dedb742f917a747a1e388b234f2277516db711" +
			"6035439730fa61e9822a0eca7bff72d8",

		VersionBytes: []byte{119, 104, 96, 41},

		SequenceValueMin:     15,
		SequenceValueMax:     50,
		WindowPropsLengthMin: 1000,
		WindowPropsLengthMax: 1200,

		EnvFingerprintXorKey:        41,
		EnvFingerprintTimeOffsetMin: 10,
		EnvFingerprintTimeOffsetMax: 50,

		A1FieldLength:    52,
		AppIDFieldLength: 10,
		PayloadMarker:    1,

		ChecksumVersion:   1,
		ChecksumXorKey:    115,
		ChecksumFixedTail: []byte{249, 65, 103, 103, 201, 181, 131, 99, 94, 7, 68, 250, 132, 21},

		DefaultAppID:     "xhs-pc-web",
		Platform:         "Windows",
		SignatureVersion: "4.2.6",
		SDKVersion:       "4.86.0",
		X3Prefix:         "mns0301_",
		XYSPrefix:        "XYS_",

		HexChars:                "abcdef0123456789",
		B3TraceIDLength:         16,
		XrayTraceIDSuffixLength: 16,
		XraySequenceBits:        23,

		B1SecretKey:     "xhswebmplfbt",
		CanvasHash:      "742cc32c",
		PublicUserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",

		XSCommonS0:  5,
		XSCommonX0:  "1",
		XSCommonX10: 0,
		XSCommonX11: "normal",
	}
}

// With returns a copy of c with opts applied. The receiver is left untouched.
func (c CryptoConfig) With(opts ...CryptoOption) CryptoConfig {
	out := c.clone()
	for _, opt := range opts {
		if opt != nil {
			opt(&out)
		}
	}
	return out
}

func (c CryptoConfig) clone() CryptoConfig {
	out := c
	out.VersionBytes = append([]byte(nil), c.VersionBytes...)
	out.ChecksumFixedTail = append([]byte(nil), c.ChecksumFixedTail...)
	if c.RandomSeed != nil {
		seed := *c.RandomSeed
		out.RandomSeed = &seed
	}
	return out
}

func WithRandomSeed(seed int64) CryptoOption {
	return func(c *CryptoConfig) { c.RandomSeed = &seed }
}

func WithHexKey(key string) CryptoOption {
	return func(c *CryptoConfig) { c.HexKey = key }
}

func WithAlphabets(custom, x3 string) CryptoOption {
	return func(c *CryptoConfig) {
		if custom != "" {
			c.CustomBase64Alphabet = custom
		}
		if x3 != "" {
			c.X3Base64Alphabet = x3
		}
	}
}

func WithChecksumTail(tail []byte) CryptoOption {
	return func(c *CryptoConfig) { c.ChecksumFixedTail = append([]byte(nil), tail...) }
}

func WithDefaultAppID(appID string) CryptoOption {
	return func(c *CryptoConfig) { c.DefaultAppID = appID }
}

// PayloadLength is the total length of a payload built with this config.
func (c CryptoConfig) PayloadLength() int {
	fixed := len(c.VersionBytes) + 4 + 8 + 8 + 4 + 4 + 4 + 8
	return fixed + 1 + c.A1FieldLength + 1 + c.AppIDFieldLength + 1 + 2 + len(c.ChecksumFixedTail)
}

func (c CryptoConfig) Validate() error {
	var errs []string

	for name, alphabet := range map[string]string{
		"standard_base64_alphabet": c.StandardBase64Alphabet,
		"custom_base64_alphabet":   c.CustomBase64Alphabet,
		"x3_base64_alphabet":       c.X3Base64Alphabet,
	} {
		if !isBase64Permutation(alphabet) {
			errs = append(errs, fmt.Sprintf("%s must be a 64-character permutation of the standard alphabet", name))
		}
	}

	if c.HexKey == "" {
		errs = append(errs, "hex_key must not be empty")
	} else if _, err := hex.DecodeString(c.HexKey); err != nil {
		errs = append(errs, fmt.Sprintf("hex_key is not valid hex: %v", err))
	}

	if len(c.VersionBytes) == 0 {
		errs = append(errs, "version_bytes must not be empty")
	}
	if c.SequenceValueMin > c.SequenceValueMax {
		errs = append(errs, "sequence_value_min must be <= sequence_value_max")
	}
	if c.WindowPropsLengthMin > c.WindowPropsLengthMax {
		errs = append(errs, "window_props_length_min must be <= window_props_length_max")
	}
	if c.EnvFingerprintTimeOffsetMin < 0 || c.EnvFingerprintTimeOffsetMin > c.EnvFingerprintTimeOffsetMax {
		errs = append(errs, "env_fingerprint_time_offset range must satisfy 0 <= min <= max")
	}
	if c.A1FieldLength <= 0 || c.A1FieldLength > MaxByte {
		errs = append(errs, "a1_field_length must be in 1..255")
	}
	if c.AppIDFieldLength <= 0 || c.AppIDFieldLength > MaxByte {
		errs = append(errs, "app_id_field_length must be in 1..255")
	}
	if c.DefaultAppID == "" {
		errs = append(errs, "default_app_id must not be empty")
	}
	if len(c.HexChars) == 0 {
		errs = append(errs, "hex_chars must not be empty")
	}
	if c.XraySequenceBits == 0 || c.XraySequenceBits > 40 {
		errs = append(errs, "xray_sequence_bits must be in 1..40")
	}
	if c.B1SecretKey == "" {
		errs = append(errs, "b1_secret_key must not be empty")
	}
	if _, err := semver.NewVersion(c.SignatureVersion); err != nil {
		errs = append(errs, fmt.Sprintf("signature_version %q is not a semantic version", c.SignatureVersion))
	}
	if _, err := semver.NewVersion(c.SDKVersion); err != nil {
		errs = append(errs, fmt.Sprintf("sdk_version %q is not a semantic version", c.SDKVersion))
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("crypto config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func isBase64Permutation(alphabet string) bool {
	if len(alphabet) != 64 {
		return false
	}
	seen := make(map[rune]struct{}, 64)
	for _, r := range alphabet {
		if !strings.ContainsRune(StandardBase64Alphabet, r) {
			return false
		}
		if _, dup := seen[r]; dup {
			return false
		}
		seen[r] = struct{}{}
	}
	return true
}
