package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/xmok/rednote-signer/pkg/models"
)

const (
	AlphabetCustom = "custom"
	AlphabetX3     = "x3"
)

// translation maps one alphabet onto another, position for position.
type translation struct {
	forward [256]byte
	reverse [256]byte
	valid   [256]bool
}

func newTranslation(standard, target string) (*translation, error) {
	if len(standard) != 64 || len(target) != 64 {
		return nil, fmt.Errorf("alphabets must be 64 characters, got %d and %d", len(standard), len(target))
	}
	t := &translation{}
	for i := 0; i < 64; i++ {
		s, c := standard[i], target[i]
		if t.valid[c] {
			return nil, fmt.Errorf("duplicate character %q in alphabet", c)
		}
		t.forward[s] = c
		t.reverse[c] = s
		t.valid[c] = true
	}
	return t, nil
}

func (t *translation) encode(std string) string {
	out := make([]byte, len(std))
	for i := 0; i < len(std); i++ {
		if std[i] == '=' {
			out[i] = '='
			continue
		}
		out[i] = t.forward[std[i]]
	}
	return string(out)
}

func (t *translation) decode(s string) (string, error) {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '=':
			out[i] = '='
		case t.valid[c]:
			out[i] = t.reverse[c]
		default:
			return "", fmt.Errorf("invalid character %q at offset %d", c, i)
		}
	}
	return string(out), nil
}

// Base64Encoder encodes with standard Base64 and substitutes into the custom or X3 alphabet.
type Base64Encoder struct {
	custom *translation
	x3     *translation
}

func NewBase64Encoder(config models.CryptoConfig) (*Base64Encoder, error) {
	custom, err := newTranslation(config.StandardBase64Alphabet, config.CustomBase64Alphabet)
	if err != nil {
		return nil, fmt.Errorf("custom alphabet: %w", err)
	}
	x3, err := newTranslation(config.StandardBase64Alphabet, config.X3Base64Alphabet)
	if err != nil {
		return nil, fmt.Errorf("x3 alphabet: %w", err)
	}
	return &Base64Encoder{custom: custom, x3: x3}, nil
}

func (e *Base64Encoder) Encode(data []byte) string {
	return e.custom.encode(base64.StdEncoding.EncodeToString(data))
}

func (e *Base64Encoder) EncodeString(s string) string {
	return e.Encode([]byte(s))
}

func (e *Base64Encoder) EncodeInts(values []int) string {
	return e.Encode(IntsToBytes(values))
}

func (e *Base64Encoder) Decode(s string) ([]byte, error) {
	return decodeWith(e.custom, AlphabetCustom, s)
}

func (e *Base64Encoder) DecodeString(s string) (string, error) {
	return decodeText(e.custom, AlphabetCustom, s)
}

func (e *Base64Encoder) EncodeX3(data []byte) string {
	return e.x3.encode(base64.StdEncoding.EncodeToString(data))
}

func (e *Base64Encoder) DecodeX3(s string) ([]byte, error) {
	return decodeWith(e.x3, AlphabetX3, s)
}

func (e *Base64Encoder) DecodeX3String(s string) (string, error) {
	return decodeText(e.x3, AlphabetX3, s)
}

func decodeWith(t *translation, name, s string) ([]byte, error) {
	std, err := t.decode(s)
	if err != nil {
		return nil, &models.DecodeError{Alphabet: name, Err: err}
	}
	out, err := base64.StdEncoding.DecodeString(std)
	if err != nil {
		return nil, &models.DecodeError{Alphabet: name, Err: err}
	}
	return out, nil
}

func decodeText(t *translation, name, s string) (string, error) {
	raw, err := decodeWith(t, name, s)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", &models.DecodeError{Alphabet: name, Err: errors.New("decoded bytes are not valid UTF-8")}
	}
	return string(raw), nil
}

// IntsToBytes masks each value to its low byte.
func IntsToBytes(values []int) []byte {
	out := make([]byte, len(values))
	for i, v := range values {
		out[i] = byte(v & models.MaxByte)
	}
	return out
}
