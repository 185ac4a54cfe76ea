// Package crypto implements the byte-level primitives of the signing protocol:
// 32-bit arithmetic, alphabet-substituted Base64, hex helpers, RC4 and the
// payload builder that ties them together.
package crypto

import (
	"fmt"

	"github.com/xmok/rednote-signer/pkg/models"
)

// NormalizeTo32Bit keeps the low 32 bits of v.
func NormalizeTo32Bit(v int64) uint32 {
	return uint32(v & models.Max32Bit)
}

// ToSigned32Bit reinterprets u as a two's-complement int32.
func ToSigned32Bit(u uint32) int32 {
	return int32(u)
}

// ComputeSeedValue mixes bits 15, 13, 12 and 10 of the seed into the sign bit.
func ComputeSeedValue(seed int64) int32 {
	n := NormalizeTo32Bit(seed)
	s15 := n >> 15
	s13 := n >> 13
	s12 := n >> 12
	s10 := n >> 10

	mixed := (s15 &^ s13) | (s13 &^ s15)
	mixed ^= s12
	mixed ^= s10
	mixed <<= 31
	return ToSigned32Bit(NormalizeTo32Bit(int64(mixed)))
}

// BitOperations holds the decoded XOR key.
type BitOperations struct {
	key []byte
}

func NewBitOperations(config models.CryptoConfig) (*BitOperations, error) {
	key, err := ProcessHexParameter(config.HexKey, -1)
	if err != nil {
		return nil, fmt.Errorf("decode xor key: %w", err)
	}
	return &BitOperations{key: key}, nil
}

func (b *BitOperations) KeyLength() int { return len(b.key) }

// XorTransformArray XORs in[i] with key[i] while i is inside the key.
// Elements past the key are only masked to a byte.
func (b *BitOperations) XorTransformArray(in []int) []byte {
	out := make([]byte, len(in))
	for i, v := range in {
		if i < len(b.key) {
			out[i] = byte(v&models.MaxByte) ^ b.key[i]
			continue
		}
		out[i] = byte(v & models.MaxByte)
	}
	return out
}

// XorTransformBytes is XorTransformArray for a byte payload.
func (b *BitOperations) XorTransformBytes(in []byte) []byte {
	ints := make([]int, len(in))
	for i, v := range in {
		ints[i] = int(v)
	}
	return b.XorTransformArray(ints)
}
