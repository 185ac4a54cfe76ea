package crypto

import (
	"encoding/hex"
	"fmt"

	"github.com/xmok/rednote-signer/pkg/models"
)

// ValidateHexKey checks that s is even-length hex. expectedLen, when positive,
// is the required length in characters.
func ValidateHexKey(s string, expectedLen int) error {
	if s == "" {
		return models.NewValidationError("hex key", "must not be empty")
	}
	if len(s)%2 != 0 {
		return models.NewValidationError("hex key", fmt.Sprintf("odd length %d", len(s)))
	}
	if expectedLen > 0 && len(s) != expectedLen {
		return models.NewValidationError("hex key", fmt.Sprintf("length %d, expected %d", len(s), expectedLen))
	}
	for i := 0; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return models.NewValidationError("hex key", fmt.Sprintf("invalid character %q at %d", s[i], i))
		}
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// ProcessHexParameter decodes s and returns its first n bytes; n < 0 keeps them all.
func ProcessHexParameter(s string, n int) ([]byte, error) {
	if err := ValidateHexKey(s, 0); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, &models.DecodeError{Alphabet: "hex", Err: err}
	}
	if n < 0 {
		return raw, nil
	}
	if len(raw) < n {
		return nil, models.NewValidationError("hex parameter", fmt.Sprintf("need %d bytes, got %d", n, len(raw)))
	}
	return raw[:n], nil
}

func XorWithByte(b []byte, k byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[i] = v ^ k
	}
	return out
}
