package fingerprinting

import (
	"testing"

	"github.com/xmok/rednote-signer/pkg/models"
)

func b1Fixture() models.Fingerprint {
	return models.Fingerprint{
		"x1":  "ignored by b1",
		"x33": "0",
		"x34": "0",
		"x35": "0",
		"x36": "7",
		"x37": "0|0|0|0|0|0|0|0|0|1|0|0|0|0|0|0|0|0|1|0|0|0|0|0",
		"x38": "0|0|1|0|1|0|0|0|0|0|1|0|1|0|1|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0",
		"x39": 0,
		"x42": "3.4.4",
		"x43": "742cc32c",
		"x44": "1700000000000",
		"x45": "__SEC_CAV__1-1-1-1-1|__SEC_WSA__|",
		"x46": "false",
		"x48": "",
		"x49": "{list:[],type:}",
		"x50": "",
		"x51": "",
		"x52": "",
		"x82": "_0x17a2|_0x1954",
	}
}

const b1Golden = "I38rHdgsjopgIvesdVwgIC+oIELmBZ5e3VwXLgFTIxS3bqwErFeexd0ekncAzMFYnqthIhJeDBMDKutRI3KsYorWHPtGrbV0P9WfIi/eWc6eYqtyQApPI37ekmR6QL+5Ii6sdnoeSfqYHqwl2qt5B0DoIx+PGDi/sVtkIxdsxuwr4qtiIhuaIE3e3LV0I3VTIC7e0utl2ADmsLveDSKsSPw5IEvsiVtJOqw8BuwfPpdeTFWOIx4TIiu6ZPwrPut5IvlaLbgs3qtxIxes1VwHIkumIkIyejgsY/WTge7eSqte/D7sDcpipedeYrDtIC6eDVw2IENsSqtlnlSuNjVtIvoekqwMgbOe1eY2Ii4cIhEe+AF0I3pPKlz8IizuBVwMIvGF4B6sdcgskVw3IC7eWo7sYeSqIk5eTDZIKqwjIhJe3n5s3SgeiVt/c9deYqwCICMyL/0efPwvp9gsDPwbI3EnI3QTBuwtgVwesBZ/yLOsYeOe0PwxIvesiS7eSsEGIvJekjOs3grFIide6utCIkHiwPtbcPw4IEosjuwpIv5eSPtwIxKeTVwG8qwPrPwDI3h5IxWrJgl7NS3sxVwSIEDrIk0sdqwzBWzac/0sd0HfIiZOGutorutUIxKsTqw0qF5sfoOs3cWOIi/e176exPts/VwqI3Ae0qwCIkge6suLICdeYsveSqt9I37sVuwu4B8qIkWyIvgsxFOekgveDS6edVtNIkF1I3Q6JutpIxElIEee6b4MzsJeWutmIEEQZqt1QW=="

func TestGenerateB1Golden(t *testing.T) {
	g := newTestGenerator(t, 1)
	got, err := g.GenerateB1(b1Fixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != b1Golden {
		t.Fatalf("b1 mismatch\n got: %s\nwant: %s", got, b1Golden)
	}

	fp := b1Fixture()
	fp["x1"] = "a different user agent"
	fp["x57"] = "a1=changed"
	again, err := g.GenerateB1(fp)
	if err != nil || again != b1Golden {
		t.Fatalf("fields outside the b1 subset changed the result: %v", err)
	}
}

func TestGenerateB1Deterministic(t *testing.T) {
	g := newTestGenerator(t, 9)
	fp, err := g.Generate(nil, "ua")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err := g.GenerateB1(fp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := g.GenerateB1(fp)
	if a != b || a == "" {
		t.Fatalf("b1 not stable: %q vs %q", a, b)
	}
}

func TestEncodeURIComponent(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"", ""},
		{"abcXYZ019", "abcXYZ019"},
		{"-_.!~*'()", "-_.!~*'()"},
		{"a b/é~*'()!ü%", "a%20b%2F%C3%A9~*'()!%C3%BC%25"},
		{"{\"k\":1}", "%7B%22k%22%3A1%7D"},
	}
	for _, tc := range testCases {
		if got := EncodeURIComponent(tc.in); got != tc.want {
			t.Errorf("EncodeURIComponent(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParsePercentEncoded(t *testing.T) {
	testCases := []struct {
		in   string
		want []byte
	}{
		{"", []byte{}},
		{"ab", []byte("ab")},
		{"%C3%A9", []byte{0xc3, 0xa9}},
		{"x%2fy", []byte("x/y")},
		{"%zz", []byte("%zz")},
		{"50%", []byte("50%")},
		{"é", []byte{0xe9}},
	}
	for _, tc := range testCases {
		got := ParsePercentEncoded(tc.in)
		if string(got) != string(tc.want) {
			t.Errorf("ParsePercentEncoded(%q) = %x, want %x", tc.in, got, tc.want)
		}
	}
}
