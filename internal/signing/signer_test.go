package signing

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/xmok/rednote-signer/internal/crypto"
	"github.com/xmok/rednote-signer/internal/evasion/fingerprinting"
	"github.com/xmok/rednote-signer/pkg/models"
	"github.com/xmok/rednote-signer/pkg/utils"
)

const (
	goldenXSGet      = "XYS_2UQhPsHCH0c1Pjh9HjIj2erjwjQhyoPTqBPT49pjHjIj2eHjwjQgynEDJ74AHjIj2ePjwjQTJdPIPAZlg98yGLTl8M+QGnq3JFDhJ7Y9JUR9p7QVzezdyL+awepnPf4x2bSxzLWUy0pe+FDF8om3cFRopp8/zbpGLLYzqd4bwbkOq0b12dbDc7z12/8jyrDM8r+M4r+Fc08MnaRc8BVhqD8YygkHq7+ywBkpGfMY8LzjaDSH+FRFzrQ3JM4ScSz+c9EIqMQCLDkcpnbLP9IUz9lDPBTnGFQP4gqMwepC//YHJez9OaHVHdWFH0ijHdF="
	goldenXSPost     = "XYS_2UQhPsHCH0c1Pjh9HjIj2erjwjQhyoPTqBPT49pjHjIj2eHjwjQgynEDJ74AHjIj2ePjwjQTJdPIPAZlg98yGLTl8M+QGnq3JFDhJ7Y9JUR9p7QVzezdyL+awepnPf4x2bSxzLWUy0pe+FDF8BSr+AH6yAYr/ADALLYzqd4bwbkOq0b12dbDc7z12/8jyrDM8r+M4r+Fc08MnaRc8BVhqD8YygkHq7+ywBkpGfMY8LzjaDSH+FRFzrQ3JM4ScSz+c9EIqMQCLDkcpnbLP9IUz9lDPBTnGFQP4gqMwepC//YHJez9OaHVHdWFH0ijHdF="
	goldenXSNoParams = "XYS_2UQhPsHCH0c1Pjh9HjIj2erjwjQhyoPTqBPT49pjHjIj2eHjwjQgynEDJ74AHjIj2ePjwjQTJdPIPAZlg98yGLTl8M+QGnq3JFDhJ7Y9JUR9p7QVzezdyL+awepnPf4x2bSxzLWUyfEd+FDF8Bzg8nMNL7z9Pd8xLLYzqd4bwbkOq0b12dbDc7z12/8jyrDM8r+M4r+Fc08MnaRc8BVhqD8YygkHq7+ywBkpGfMY8LzjaDSH+FRFzrQ3JM4ScSz+c9EIqMQCLDkcpnbLP9IUz9lDPBTnGFQP4gqMwepC//YHJez9OaHVHdWFH0ijHdF="
	goldenXSCommon   = "2UQAPsHC+aIj2eZjwjHlHjIj2erjwjHFN0H1+jHVHdWUH0ijp9S18BR7qUHVHdWAH0ij2BYANgm0Ng4SGjHVHdWFH0ij+shh+jhIHjIj2eLjwjQA8g+AynR1NnbjGUHVHdW9H0ijP/qIPeZIPeZIPeZIPsHVHdW7H0ijnbS/gAQpLnYcqFYeaem0PpmxyeSHyDSxPfpUyd4xLnYEJMmLqLQcpecEqBkHyDSxPfpHyd4xLn4EJDpra0qFcLYxaniU8pmx49kzprkDLrSccpkV8ADh2L4PpBIh/aTzz9ElPFkBzBYt+MDEaSpawgZ7Lp8C8gkD2LI3Gg4SqBEc80zhPfQ/2okPpMpEPomStF8rz0Y6J/+0zSQ6qoZhN7kjqr4P/bSCqncFGd4jyFRlPBHlPfzjzBP720rUNAYx2gQr//YUtFFFqjTBGAZh/nEYLfPhcS8iqLchngSdyFYl+UTE4FQ3qr4f/pDh/okxGLz/asTBLD8CqSrAaDFFL9+/2jT0wLpQqLMzcFlry9+IJfQPLeSQpgiEJrzccSz1zF8zLezdqLM78gmeNUR8arkS20SOGLYnaBzgzDWIynkH8rGRHjIj2eWjwjQjPg8YJopSHjIj2eDjwjFl+AWU+AP9weH9NsQhP/Zjw0ZVHdWlPaHCHfE6qfMYJsQR"
)

func seededProcessor(t *testing.T) *crypto.CryptoProcessor {
	t.Helper()
	p, err := crypto.NewCryptoProcessor(models.DefaultCryptoConfig().With(models.WithRandomSeed(12345)), nil)
	if err != nil {
		t.Fatalf("NewCryptoProcessor: %v", err)
	}
	return p
}

func TestContentString(t *testing.T) {
	testCases := []struct {
		name    string
		method  string
		payload map[string]interface{}
		want    string
	}{
		{"get_sorted_query", "GET", map[string]interface{}{"num": "30", "cursor": "", "user_id": "u1"}, "/api?cursor=&num=30&user_id=u1"},
		{"get_no_payload", "GET", nil, "/api"},
		{"get_empty_payload", "get", map[string]interface{}{}, "/api"},
		{"get_list_and_number", "GET", map[string]interface{}{"ids": []interface{}{"a", "b"}, "n": 3}, "/api?ids=a,b&n=3"},
		{"get_large_float", "GET", map[string]interface{}{"num": float64(1234567), "ratio": 0.25}, "/api?num=1234567&ratio=0.25"},
		{"get_json_number", "GET", map[string]interface{}{"num": json.Number("12345678901234567890")}, "/api?num=12345678901234567890"},
		{"post_sorted_json", "POST", map[string]interface{}{"b": 1, "a": "<x>"}, `/api{"a":"<x>","b":1}`},
		{"post_no_payload", "POST", nil, "/api"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ContentString(tc.method, "/api", tc.payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildXSGolden(t *testing.T) {
	testCases := []struct {
		name    string
		method  string
		uri     string
		payload map[string]interface{}
		want    string
	}{
		{"get", "GET", "/api/sns/web/v1/user_posted", map[string]interface{}{"num": "30", "cursor": "", "user_id": "5ff0e6410000000001008400"}, goldenXSGet},
		{"post", "POST", "/api/sns/web/v1/feed", map[string]interface{}{"source_note_id": "abc", "image_formats": []string{"jpg", "webp"}}, goldenXSPost},
		{"no_payload", "GET", "/api/sns/web/v1/homefeed", nil, goldenXSNoParams},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BuildXS(seededProcessor(t), tc.method, tc.uri, "session-abc", "xhs-pc-web", tc.payload, 1700000000)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("x-s mismatch\n got: %s\nwant: %s", got, tc.want)
			}
		})
	}
}

func TestBuildXSCommonGolden(t *testing.T) {
	p := seededProcessor(t)
	got, err := BuildXSCommon(p.Config(), p.Encoder(), "session-abc", "1700000000000", goldenXSGet, "b1value")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != goldenXSCommon {
		t.Fatalf("x-s-common mismatch\n got: %s\nwant: %s", got, goldenXSCommon)
	}
	decoded, err := p.Encoder().DecodeString(got)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(string(decoded), `{"s0":5,"x0":"1","x1":"4.2.6","x2":"Windows","x3":"xhs-pc-web","x4":"4.86.0","x5":"session-abc"`) {
		t.Fatalf("unexpected field order: %s", decoded)
	}
}

func TestMRC(t *testing.T) {
	testCases := []struct {
		in   string
		want int32
	}{
		{"", -306674912},
		{"abc", -660815134},
		{"1700000000000" + goldenXSGet + "b1value", -1782736826},
	}
	for _, tc := range testCases {
		if got := MRC(tc.in); got != tc.want {
			t.Errorf("MRC(%.16q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func newTestSigner(t *testing.T, opts Options) (*Signer, *fingerprinting.Session) {
	t.Helper()
	metrics, err := utils.NewSignerMetrics(false)
	if err != nil {
		t.Fatalf("NewSignerMetrics: %v", err)
	}
	cfg := models.DefaultCryptoConfig().With(models.WithRandomSeed(12345))
	sm := fingerprinting.NewSessionManager(cfg, metrics, nil)
	session, err := sm.StartSession(map[string]string{"a1": "cookie-a1", "webId": "w1"}, "")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return NewSigner(session, opts, metrics, nil), session
}

func TestSignHeaders(t *testing.T) {
	signer, session := newTestSigner(t, Options{XSCommon: true, TraceIDs: true})

	res, err := signer.SignHeaders(Request{
		Method:    "get",
		URI:       " /api/sns/web/v1/homefeed ",
		Cookies:   map[string]string{"a1": "cookie-a1"},
		Timestamp: 1700000000,
	})
	if err != nil {
		t.Fatalf("SignHeaders: %v", err)
	}
	if res.Status != models.StatusSigned || res.SessionID != session.ID || res.RequestID == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Method != "GET" || res.URI != "/api/sns/web/v1/homefeed" {
		t.Fatalf("request not normalised: %s %q", res.Method, res.URI)
	}
	if res.Timestamp != 1700000000000 || res.Headers[HeaderXT] != "1700000000000" {
		t.Fatalf("x-t = %s, timestamp = %d", res.Headers[HeaderXT], res.Timestamp)
	}
	if !strings.HasPrefix(res.Headers[HeaderXS], "XYS_") {
		t.Fatalf("x-s = %s", res.Headers[HeaderXS])
	}
	for _, h := range []string{HeaderXSCommon, HeaderB3, HeaderXray} {
		if res.Headers[h] == "" {
			t.Fatalf("missing header %s", h)
		}
	}
	if len(res.Headers[HeaderB3]) != 16 || len(res.Headers[HeaderXray]) != 32 {
		t.Fatalf("trace ids %s / %s", res.Headers[HeaderB3], res.Headers[HeaderXray])
	}
	if res.Fingerprint == "" {
		t.Fatal("fingerprint digest not recorded")
	}

	p := seededProcessor(t)
	decoded, err := p.Encoder().DecodeString(res.Headers[HeaderXSCommon])
	if err != nil {
		t.Fatalf("decode x-s-common: %v", err)
	}
	if !strings.Contains(string(decoded), `"x5":"cookie-a1","x6":"1700000000000","x7":"`+res.Headers[HeaderXS]+`"`) {
		t.Fatalf("x-s-common does not embed a1, x-t and x-s: %s", decoded)
	}
}

func TestSignHeadersOptionalHeaders(t *testing.T) {
	signer, _ := newTestSigner(t, Options{})
	res, err := signer.SignHeaders(Request{Method: "POST", URI: "/api/x", A1: "a", Payload: map[string]interface{}{"k": "v"}})
	if err != nil {
		t.Fatalf("SignHeaders: %v", err)
	}
	if len(res.Headers) != 2 {
		t.Fatalf("expected only x-s and x-t, got %v", res.Headers)
	}
	if res.Timestamp <= 0 {
		t.Fatalf("timestamp should default to now, got %d", res.Timestamp)
	}
}

func TestSignHeadersRejectsBadInput(t *testing.T) {
	signer, _ := newTestSigner(t, Options{})
	testCases := []struct {
		name string
		req  Request
	}{
		{"bad_method", Request{Method: "PUT", URI: "/x", A1: "a"}},
		{"empty_uri", Request{Method: "GET", URI: "  ", A1: "a"}},
		{"no_a1_anywhere", Request{Method: "GET", URI: "/x"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := signer.SignHeaders(tc.req)
			if !errors.Is(err, models.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if res.Status != models.StatusFailed || res.Error == "" {
				t.Fatalf("unexpected result %+v", res)
			}
		})
	}
}

func TestSignersWithSameSeedAgree(t *testing.T) {
	a, _ := newTestSigner(t, Options{})
	b, _ := newTestSigner(t, Options{})
	req := Request{Method: "GET", URI: "/api/x", A1: "a1", Timestamp: 1700000000.25}
	ra, err := a.SignHeaders(req)
	if err != nil {
		t.Fatalf("SignHeaders: %v", err)
	}
	rb, err := b.SignHeaders(req)
	if err != nil {
		t.Fatalf("SignHeaders: %v", err)
	}
	if ra.Headers[HeaderXS] != rb.Headers[HeaderXS] {
		t.Fatal("sessions with a pinned seed should sign identically")
	}
	rc, err := a.SignHeaders(req)
	if err != nil {
		t.Fatalf("SignHeaders: %v", err)
	}
	if rc.Headers[HeaderXS] == ra.Headers[HeaderXS] {
		t.Fatal("successive signatures from one session should differ")
	}
}
