package crypto

import (
	"testing"

	"github.com/xmok/rednote-signer/pkg/models"
)

func TestNormalizeAndSigned(t *testing.T) {
	testCases := []struct {
		in       int64
		unsigned uint32
		signed   int32
	}{
		{0, 0, 0},
		{-1, 0xFFFFFFFF, -1},
		{0x7FFFFFFF, 0x7FFFFFFF, 0x7FFFFFFF},
		{0x80000000, 0x80000000, -2147483648},
		{0x1_0000_0005, 5, 5},
	}
	for _, tc := range testCases {
		u := NormalizeTo32Bit(tc.in)
		if u != tc.unsigned {
			t.Errorf("NormalizeTo32Bit(%d) = %d, want %d", tc.in, u, tc.unsigned)
		}
		if s := ToSigned32Bit(u); s != tc.signed {
			t.Errorf("ToSigned32Bit(%d) = %d, want %d", u, s, tc.signed)
		}
	}
}

func TestComputeSeedValue(t *testing.T) {
	testCases := map[int64]int32{
		0:          0,
		1024:       -2147483648,
		4096:       -2147483648,
		12345:      0,
		0x7FFFFFFF: 0,
		-1:         0,
		1700000000: -2147483648,
	}
	for seed, want := range testCases {
		if got := ComputeSeedValue(seed); got != want {
			t.Errorf("ComputeSeedValue(%d) = %d, want %d", seed, got, want)
		}
	}
}

func TestXorTransformArrayCutoff(t *testing.T) {
	ops, err := NewBitOperations(models.DefaultCryptoConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ops.KeyLength() != 144 {
		t.Fatalf("key length = %d, want 144", ops.KeyLength())
	}

	in := make([]int, ops.KeyLength()+6)
	for i := range in {
		in[i] = i*7 + 300
	}
	once := ops.XorTransformArray(in)

	back := make([]int, len(once))
	for i, b := range once {
		back[i] = int(b)
	}
	twice := ops.XorTransformArray(back)

	for i := range in {
		masked := byte(in[i] & 0xFF)
		if i < ops.KeyLength() {
			if once[i] == masked && ops.key[i] != 0 {
				t.Errorf("index %d was not transformed", i)
			}
			if twice[i] != masked {
				t.Errorf("index %d: re-XOR gave %d, want %d", i, twice[i], masked)
			}
			continue
		}
		if once[i] != masked {
			t.Errorf("index %d beyond key: got %d, want passthrough %d", i, once[i], masked)
		}
	}
}

func TestXorTransformArrayFirstBytes(t *testing.T) {
	ops, err := NewBitOperations(models.DefaultCryptoConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := ops.XorTransformArray([]int{119, 104, 96, 41})
	want := []byte{0x06, 0xcb, 0x62, 0x0c}
	if string(got) != string(want) {
		t.Fatalf("got %x, want %x", got, want)
	}
	if out := ops.XorTransformArray(nil); len(out) != 0 {
		t.Fatalf("empty input gave %v", out)
	}
}

func TestNewBitOperationsRejectsBadKey(t *testing.T) {
	cfg := models.DefaultCryptoConfig().With(models.WithHexKey("zz"))
	if _, err := NewBitOperations(cfg); err == nil {
		t.Fatal("expected error for invalid hex key")
	}
}
