package fingerprinting

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/xmok/rednote-signer/internal/crypto"
	"github.com/xmok/rednote-signer/pkg/models"
)

const upperHex = "0123456789ABCDEF"

// GenerateB1 derives the b1 value: the b1 subset as compact JSON, RC4
// encrypted, read as Latin-1, percent encoded, parsed back to bytes and
// encoded with the custom alphabet.
func (g *FingerprintGenerator) GenerateB1(fp models.Fingerprint) (string, error) {
	data, err := fp.MarshalOrdered(b1Keys)
	if err != nil {
		return "", fmt.Errorf("marshal b1 fields: %w", err)
	}
	cipher, err := crypto.RC4([]byte(g.config.B1SecretKey), data)
	if err != nil {
		return "", fmt.Errorf("encrypt b1: %w", err)
	}
	latin1, err := charmap.ISO8859_1.NewDecoder().Bytes(cipher)
	if err != nil {
		return "", fmt.Errorf("latin-1 decode: %w", err)
	}
	encoded := EncodeURIComponent(string(latin1))
	return g.encoder.Encode(ParsePercentEncoded(encoded)), nil
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

// EncodeURIComponent percent-encodes the UTF-8 bytes of s, leaving the
// JavaScript unreserved set untouched.
func EncodeURIComponent(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(upperHex[c>>4])
		sb.WriteByte(upperHex[c&0x0f])
	}
	return sb.String()
}

// ParsePercentEncoded turns each %XX escape into one byte and each other
// character into its code point, truncated to a byte.
func ParsePercentEncoded(s string) []byte {
	out := make([]byte, 0, len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '%' && i+2 < len(runes) {
			hi, okHi := hexValue(runes[i+1])
			lo, okLo := hexValue(runes[i+2])
			if okHi && okLo {
				out = append(out, hi<<4|lo)
				i += 2
				continue
			}
		}
		out = append(out, byte(runes[i]&0xff))
	}
	return out
}

func hexValue(r rune) (byte, bool) {
	switch {
	case r >= '0' && r <= '9':
		return byte(r - '0'), true
	case r >= 'a' && r <= 'f':
		return byte(r-'a') + 10, true
	case r >= 'A' && r <= 'F':
		return byte(r-'A') + 10, true
	}
	return 0, false
}
