package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/xxh3"
)

// Fingerprint is the synthetic browser fingerprint keyed by wire names (x1..x82).
type Fingerprint map[string]interface{}

// LocationInfo is the x66 object.
type LocationInfo struct {
	Referer  string `json:"referer"`
	Location string `json:"location"`
	Frame    int    `json:"frame"`
}

// BoundingRect is the x78 object.
type BoundingRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

func (fp Fingerprint) String(key string) string {
	v, ok := fp[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Keys returns the fingerprint keys in numeric order (x1, x2, ..., x82).
func (fp Fingerprint) Keys() []string {
	keys := make([]string, 0, len(fp))
	for k := range fp {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, nj := keyIndex(keys[i]), keyIndex(keys[j])
		if ni != nj {
			return ni < nj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func keyIndex(k string) int {
	n := 0
	if len(k) < 2 || k[0] != 'x' {
		return 1 << 30
	}
	for _, c := range k[1:] {
		if c < '0' || c > '9' {
			return 1 << 30
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// MarshalOrdered encodes the listed keys, in order, as compact JSON without HTML escaping.
// Missing keys are encoded as null.
func (fp Fingerprint) MarshalOrdered(keys []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := encodeCompact(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := encodeCompact(fp[k])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeCompact(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Digest is a short, stable identifier of the fingerprint contents for logs.
func (fp Fingerprint) Digest() string {
	data, err := fp.MarshalOrdered(fp.Keys())
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

func (fp Fingerprint) Clone() Fingerprint {
	out := make(Fingerprint, len(fp))
	for k, v := range fp {
		out[k] = v
	}
	return out
}
