package crypto

import "github.com/xmok/rednote-signer/pkg/models"

// RC4 runs the standard key schedule and keystream over data.
func RC4(key, data []byte) ([]byte, error) {
	if len(key) == 0 || len(key) > 256 {
		return nil, models.NewValidationError("rc4 key", "length must be in 1..256")
	}

	s := make([]byte, 256)
	for i := range s {
		s[i] = byte(i)
	}
	j := 0
	for i := 0; i < 256; i++ {
		j = (j + int(s[i]) + int(key[i%len(key)])) & 0xff
		s[i], s[j] = s[j], s[i]
	}

	out := make([]byte, len(data))
	i := 0
	j = 0
	for n, c := range data {
		i = (i + 1) & 0xff
		j = (j + int(s[i])) & 0xff
		s[i], s[j] = s[j], s[i]
		out[n] = c ^ s[(int(s[i])+int(s[j]))&0xff]
	}
	return out, nil
}
