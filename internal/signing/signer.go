// Package signing assembles the signed request headers from one signing session.
package signing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xmok/rednote-signer/internal/crypto"
	"github.com/xmok/rednote-signer/internal/evasion/fingerprinting"
	"github.com/xmok/rednote-signer/internal/validation"
	"github.com/xmok/rednote-signer/pkg/models"
	"github.com/xmok/rednote-signer/pkg/utils"
)

const (
	HeaderXS       = "x-s"
	HeaderXT       = "x-t"
	HeaderXSCommon = "x-s-common"
	HeaderB3       = "x-b3-traceid"
	HeaderXray     = "x-xray-traceid"

	mrcXorKey = 0xEDB88320
)

// Request is one call to SignHeaders. An empty A1 is read from the a1 cookie,
// an empty AppID falls back to the configured default and a zero Timestamp
// (seconds) means now.
type Request struct {
	Method    string                 `json:"method" yaml:"method"`
	URI       string                 `json:"uri" yaml:"uri"`
	A1        string                 `json:"a1,omitempty" yaml:"a1,omitempty"`
	AppID     string                 `json:"app_id,omitempty" yaml:"app_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty" yaml:"payload,omitempty"`
	Cookies   map[string]string      `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	Timestamp float64                `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

type Options struct {
	XSCommon bool
	TraceIDs bool
}

type Signer struct {
	config  models.CryptoConfig
	session *fingerprinting.Session
	opts    Options
	metrics *utils.MetricsCollector
	logger  *logrus.Logger
	now     func() time.Time
}

func NewSigner(session *fingerprinting.Session, opts Options, metrics *utils.MetricsCollector, logger *logrus.Logger) *Signer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Signer{
		config:  session.Config(),
		session: session,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// xsBody is the JSON wrapped by x-s. Field order is part of the wire format.
type xsBody struct {
	X0 string `json:"x0"`
	X1 string `json:"x1"`
	X2 string `json:"x2"`
	X3 string `json:"x3"`
	X4 string `json:"x4"`
}

type xsCommonBody struct {
	S0  int    `json:"s0"`
	X0  string `json:"x0"`
	X1  string `json:"x1"`
	X2  string `json:"x2"`
	X3  string `json:"x3"`
	X4  string `json:"x4"`
	X5  string `json:"x5"`
	X6  string `json:"x6"`
	X7  string `json:"x7"`
	X8  string `json:"x8"`
	X9  int32  `json:"x9"`
	X10 int    `json:"x10"`
	X11 string `json:"x11"`
}

// SignXS computes the x-s header for an already validated request.
func (s *Signer) SignXS(method, uri, a1, appID string, payload map[string]interface{}, ts float64) (string, error) {
	var xs string
	err := s.session.Do(func(p *crypto.CryptoProcessor, _ *fingerprinting.FingerprintGenerator) error {
		var err error
		xs, err = BuildXS(p, method, uri, a1, appID, payload, ts)
		return err
	})
	return xs, err
}

// SignXSCommon builds x-s-common from the a1 cookie, x-t, x-s and b1.
func (s *Signer) SignXSCommon(a1, xt, xs, b1 string) (string, error) {
	var out string
	err := s.session.Do(func(p *crypto.CryptoProcessor, _ *fingerprinting.FingerprintGenerator) error {
		var err error
		out, err = BuildXSCommon(p.Config(), p.Encoder(), a1, xt, xs, b1)
		return err
	})
	return out, err
}

// BuildXS draws one payload from p and wraps it into an x-s value.
func BuildXS(p *crypto.CryptoProcessor, method, uri, a1, appID string, payload map[string]interface{}, ts float64) (string, error) {
	content, err := ContentString(method, uri, payload)
	if err != nil {
		return "", err
	}
	cfg := p.Config()
	raw, err := p.BuildPayloadArray(utils.MD5Hex(content), a1, appID, content, ts)
	if err != nil {
		return "", fmt.Errorf("sign x-s: %w", err)
	}
	body, err := marshalCompact(xsBody{
		X0: cfg.SignatureVersion,
		X1: appID,
		X2: cfg.Platform,
		X3: p.BuildX3(raw),
		X4: "",
	})
	if err != nil {
		return "", fmt.Errorf("sign x-s: %w", err)
	}
	return cfg.XYSPrefix + p.Encoder().Encode(body), nil
}

func BuildXSCommon(cfg models.CryptoConfig, enc *crypto.Base64Encoder, a1, xt, xs, b1 string) (string, error) {
	body, err := marshalCompact(xsCommonBody{
		S0:  cfg.XSCommonS0,
		X0:  cfg.XSCommonX0,
		X1:  cfg.SignatureVersion,
		X2:  cfg.Platform,
		X3:  cfg.DefaultAppID,
		X4:  cfg.SDKVersion,
		X5:  a1,
		X6:  xt,
		X7:  xs,
		X8:  b1,
		X9:  MRC(xt + xs + b1),
		X10: cfg.XSCommonX10,
		X11: cfg.XSCommonX11,
	})
	if err != nil {
		return "", fmt.Errorf("sign x-s-common: %w", err)
	}
	return enc.Encode(body), nil
}

// SignHeaders validates req and returns every signing header for it.
func (s *Signer) SignHeaders(req Request) (*models.SignResult, error) {
	start := s.now()
	result := &models.SignResult{
		RequestID: utils.GenerateUUID(),
		SessionID: s.session.ID,
		Method:    req.Method,
		URI:       req.URI,
	}

	headers, digest, err := s.signHeaders(&req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = models.StatusFailed
		result.Error = err.Error()
		s.metrics.RecordSignature("headers", models.StatusFailed, result.Duration)
		s.logger.WithError(err).WithField("uri", req.URI).Warn("signing failed")
		return result, err
	}

	result.Method = req.Method
	result.URI = req.URI
	result.Timestamp, _ = strconv.ParseInt(headers[HeaderXT], 10, 64)
	result.Headers = headers
	result.Fingerprint = digest
	result.Status = models.StatusSigned
	s.metrics.RecordSignature("headers", models.StatusSigned, result.Duration)

	s.logger.WithFields(logrus.Fields{
		"session_id": s.session.ID,
		"uri":        req.URI,
		"a1":         utils.MaskSensitiveData(req.A1),
	}).Debug("signed request")
	return result, nil
}

func (s *Signer) signHeaders(req *Request) (map[string]string, string, error) {
	if req.A1 == "" {
		req.A1 = req.Cookies["a1"]
	}
	if req.AppID == "" {
		req.AppID = s.config.DefaultAppID
	}
	valid, err := validation.ValidateSignRequest(validation.SignRequest{
		Method:  req.Method,
		URI:     req.URI,
		A1:      req.A1,
		AppID:   req.AppID,
		Payload: req.Payload,
		Cookies: req.Cookies,
	})
	if err != nil {
		return nil, "", err
	}
	req.Method, req.URI, req.A1, req.AppID = valid.Method, valid.URI, valid.A1, valid.AppID

	ts := req.Timestamp
	if ts <= 0 {
		ts = float64(s.now().UnixNano()) / 1e9
	}
	tsMs := int64(ts * 1000)
	xt := strconv.FormatInt(tsMs, 10)

	xsStart := time.Now()
	xs, err := s.SignXS(req.Method, req.URI, req.A1, req.AppID, req.Payload, ts)
	s.metrics.RecordSignature(HeaderXS, statusOf(err), time.Since(xsStart))
	if err != nil {
		return nil, "", err
	}
	var digest string
	headers := map[string]string{
		HeaderXS: xs,
		HeaderXT: xt,
	}

	if s.opts.XSCommon {
		for k, v := range req.Cookies {
			s.session.SetCookie(k, v)
		}
		fp := s.session.Fingerprint(req.URI)
		digest = fp.Digest()
		var b1 string
		err := s.session.Do(func(_ *crypto.CryptoProcessor, g *fingerprinting.FingerprintGenerator) error {
			var err error
			b1, err = g.GenerateB1(fp)
			return err
		})
		if err != nil {
			return nil, "", fmt.Errorf("derive b1: %w", err)
		}
		commonStart := time.Now()
		common, err := s.SignXSCommon(req.A1, xt, xs, b1)
		s.metrics.RecordSignature(HeaderXSCommon, statusOf(err), time.Since(commonStart))
		if err != nil {
			return nil, "", err
		}
		headers[HeaderXSCommon] = common
	}

	if s.opts.TraceIDs {
		err := s.session.Do(func(p *crypto.CryptoProcessor, _ *fingerprinting.FingerprintGenerator) error {
			headers[HeaderB3] = p.Random().GenerateB3TraceID()
			xray, err := p.Random().GenerateXrayTraceID(tsMs, nil)
			if err != nil {
				return err
			}
			headers[HeaderXray] = xray
			return nil
		})
		if err != nil {
			return nil, "", fmt.Errorf("trace ids: %w", err)
		}
	}
	return headers, digest, nil
}

func statusOf(err error) string {
	if err != nil {
		return models.StatusFailed
	}
	return models.StatusSigned
}

// ContentString is the text hashed into x-s: the uri plus, for GET, the
// query in key order and, for POST, the payload as compact JSON.
func ContentString(method, uri string, payload map[string]interface{}) (string, error) {
	if len(payload) == 0 {
		return uri, nil
	}
	if strings.EqualFold(method, validation.MethodPost) {
		body, err := marshalCompact(payload)
		if err != nil {
			return "", fmt.Errorf("encode payload: %w", err)
		}
		return uri + string(body), nil
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+queryValue(payload[k]))
	}
	return uri + "?" + strings.Join(parts, "&"), nil
}

func queryValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case []string:
		return strings.Join(val, ",")
	case []interface{}:
		items := make([]string, len(val))
		for i, item := range val {
			items[i] = queryValue(item)
		}
		return strings.Join(items, ",")
	default:
		return fmt.Sprint(val)
	}
}

// MRC is CRC-32 (IEEE) of s, XORed with the reflected polynomial and read as int32.
func MRC(s string) int32 {
	return int32(crc32.ChecksumIEEE([]byte(s)) ^ mrcXorKey)
}

func marshalCompact(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (s *Signer) SessionID() string {
	return s.session.ID
}
