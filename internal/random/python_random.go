// Package random reproduces CPython's Mersenne Twister so seeded streams match
// the values recorded from Python's random module.
package random

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"math/bits"
)

const (
	stateSize   = 624
	shiftSize   = 397
	matrixA     = 0x9908b0df
	upperMask   = 0x80000000
	lowerMask   = 0x7fffffff
	bootstrap   = 19650218
	twoPow53Inv = 1.0 / 9007199254740992.0
)

// PythonLikeRandom is an MT19937 generator seeded exactly like CPython.
// It is not safe for concurrent use.
type PythonLikeRandom struct {
	mt    [stateSize]uint32
	index int
}

// NewPythonLikeRandom seeds from an arbitrary precision integer; nil seeds from OS entropy.
func NewPythonLikeRandom(seed *big.Int) (*PythonLikeRandom, error) {
	r := &PythonLikeRandom{}
	if seed == nil {
		key, err := entropyKey()
		if err != nil {
			return nil, err
		}
		r.initByArray(key)
		return r, nil
	}
	r.initByArray(seedWords(seed))
	return r, nil
}

func NewPythonLikeRandomFromInt64(seed int64) *PythonLikeRandom {
	r := &PythonLikeRandom{}
	r.initByArray(seedWords(big.NewInt(seed)))
	return r
}

// NewPythonLikeRandomFromWords seeds with an explicit init_by_array key.
func NewPythonLikeRandomFromWords(key []uint32) *PythonLikeRandom {
	if len(key) == 0 {
		key = []uint32{0}
	}
	r := &PythonLikeRandom{}
	r.initByArray(key)
	return r
}

func entropyKey() ([]uint32, error) {
	buf := make([]byte, stateSize*4)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("read seed entropy: %w", err)
	}
	key := make([]uint32, stateSize)
	for i := range key {
		key[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return key, nil
}

// seedWords splits |seed| into little-endian 32-bit words; zero maps to [0].
func seedWords(seed *big.Int) []uint32 {
	abs := new(big.Int).Abs(seed)
	if abs.Sign() == 0 {
		return []uint32{0}
	}
	be := abs.Bytes()
	words := make([]uint32, (len(be)+3)/4)
	for i := 0; i < len(be); i++ {
		b := be[len(be)-1-i]
		words[i/4] |= uint32(b) << (8 * uint(i%4))
	}
	return words
}

func (r *PythonLikeRandom) initGenrand(s uint32) {
	r.mt[0] = s
	for i := 1; i < stateSize; i++ {
		prev := r.mt[i-1]
		r.mt[i] = 1812433253*(prev^(prev>>30)) + uint32(i)
	}
	r.index = stateSize
}

func (r *PythonLikeRandom) initByArray(key []uint32) {
	r.initGenrand(bootstrap)
	i, j := 1, 0
	k := stateSize
	if len(key) > k {
		k = len(key)
	}
	for ; k > 0; k-- {
		prev := r.mt[i-1]
		r.mt[i] = (r.mt[i] ^ ((prev ^ (prev >> 30)) * 1664525)) + key[j] + uint32(j)
		i++
		j++
		if i >= stateSize {
			r.mt[0] = r.mt[stateSize-1]
			i = 1
		}
		if j >= len(key) {
			j = 0
		}
	}
	for k = stateSize - 1; k > 0; k-- {
		prev := r.mt[i-1]
		r.mt[i] = (r.mt[i] ^ ((prev ^ (prev >> 30)) * 1566083941)) - uint32(i)
		i++
		if i >= stateSize {
			r.mt[0] = r.mt[stateSize-1]
			i = 1
		}
	}
	r.mt[0] = upperMask
	r.index = stateSize
}

func (r *PythonLikeRandom) twist() {
	mag := func(y uint32) uint32 {
		if y&1 == 1 {
			return matrixA
		}
		return 0
	}
	var kk int
	for kk = 0; kk < stateSize-shiftSize; kk++ {
		y := (r.mt[kk] & upperMask) | (r.mt[kk+1] & lowerMask)
		r.mt[kk] = r.mt[kk+shiftSize] ^ (y >> 1) ^ mag(y)
	}
	for ; kk < stateSize-1; kk++ {
		y := (r.mt[kk] & upperMask) | (r.mt[kk+1] & lowerMask)
		r.mt[kk] = r.mt[kk+(shiftSize-stateSize)] ^ (y >> 1) ^ mag(y)
	}
	y := (r.mt[stateSize-1] & upperMask) | (r.mt[0] & lowerMask)
	r.mt[stateSize-1] = r.mt[shiftSize-1] ^ (y >> 1) ^ mag(y)
	r.index = 0
}

// NextUint32 returns the next tempered 32-bit output.
func (r *PythonLikeRandom) NextUint32() uint32 {
	if r.index >= stateSize {
		r.twist()
	}
	y := r.mt[r.index]
	r.index++
	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// Random returns a float in [0, 1) with 53 bits of precision.
func (r *PythonLikeRandom) Random() float64 {
	a := r.NextUint32() >> 5
	b := r.NextUint32() >> 6
	return (float64(a)*67108864.0 + float64(b)) * twoPow53Inv
}

// GetRandBits returns a non-negative integer with k random bits.
// Words are drawn least significant first and the last word is truncated.
func (r *PythonLikeRandom) GetRandBits(k int) *big.Int {
	if k <= 0 {
		return new(big.Int)
	}
	if k <= 64 {
		return new(big.Int).SetUint64(r.getRandBits64(k))
	}
	words := (k-1)/32 + 1
	be := make([]byte, words*4)
	remaining := k
	for i := 0; i < words; i++ {
		w := r.NextUint32()
		if remaining < 32 {
			w >>= uint(32 - remaining)
		}
		off := (words - 1 - i) * 4
		binary.BigEndian.PutUint32(be[off:], w)
		remaining -= 32
	}
	return new(big.Int).SetBytes(be)
}

func (r *PythonLikeRandom) getRandBits64(k int) uint64 {
	if k <= 32 {
		return uint64(r.NextUint32() >> uint(32-k))
	}
	lo := uint64(r.NextUint32())
	hi := uint64(r.NextUint32() >> uint(64-k))
	return hi<<32 | lo
}

// RandBelow returns a uniform value in [0, n) using CPython's rejection sampling.
func (r *PythonLikeRandom) RandBelow(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	k := bits.Len64(n)
	v := r.getRandBits64(k)
	for v >= n {
		v = r.getRandBits64(k)
	}
	return v
}

// RandBelowBig is RandBelow for bounds wider than 64 bits.
func (r *PythonLikeRandom) RandBelowBig(n *big.Int) *big.Int {
	if n.Sign() <= 0 {
		return new(big.Int)
	}
	if n.IsUint64() {
		return new(big.Int).SetUint64(r.RandBelow(n.Uint64()))
	}
	k := n.BitLen()
	v := r.GetRandBits(k)
	for v.Cmp(n) >= 0 {
		v = r.GetRandBits(k)
	}
	return v
}
