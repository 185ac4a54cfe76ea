// Package validation holds the input checks run at the public signing entry points.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xmok/rednote-signer/pkg/models"
)

const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

// SignRequest is the normalized form of a signing call.
type SignRequest struct {
	Method  string
	URI     string
	A1      string
	AppID   string
	Payload map[string]interface{}
	Cookies map[string]string
}

// ValidateMethod accepts GET or POST in any case and returns it upper-cased.
func ValidateMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	switch m {
	case MethodGet, MethodPost:
		return m, nil
	case "":
		return "", models.NewValidationError("method", "must not be empty")
	}
	return "", models.NewValidationError("method", fmt.Sprintf("%q is not GET or POST", method))
}

func ValidateURI(uri string) (string, error) {
	return nonEmpty("uri", uri)
}

func ValidateA1(a1 string) (string, error) {
	return nonEmpty("a1", a1)
}

func ValidateAppID(appID string) (string, error) {
	return nonEmpty("app_id", appID)
}

func nonEmpty(field, v string) (string, error) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "", models.NewValidationError(field, "must be a non-empty string")
	}
	return trimmed, nil
}

// ValidatePayload accepts nil or a map that encodes to JSON.
func ValidatePayload(payload map[string]interface{}) error {
	if payload == nil {
		return nil
	}
	if _, err := json.Marshal(payload); err != nil {
		return models.NewValidationError("payload", fmt.Sprintf("not JSON serializable: %v", err))
	}
	return nil
}

// ValidateCookies accepts nil or a map whose keys are non-empty.
func ValidateCookies(cookies map[string]string) error {
	for k := range cookies {
		if strings.TrimSpace(k) == "" {
			return models.NewValidationError("cookies", "cookie names must not be empty")
		}
	}
	return nil
}

// ValidateSignRequest runs every check and returns the normalized request.
// It stops at the first failure.
func ValidateSignRequest(req SignRequest) (SignRequest, error) {
	var err error
	out := req
	if out.Method, err = ValidateMethod(req.Method); err != nil {
		return SignRequest{}, err
	}
	if out.URI, err = ValidateURI(req.URI); err != nil {
		return SignRequest{}, err
	}
	if out.A1, err = ValidateA1(req.A1); err != nil {
		return SignRequest{}, err
	}
	if out.AppID, err = ValidateAppID(req.AppID); err != nil {
		return SignRequest{}, err
	}
	if err = ValidatePayload(req.Payload); err != nil {
		return SignRequest{}, err
	}
	if err = ValidateCookies(req.Cookies); err != nil {
		return SignRequest{}, err
	}
	return out, nil
}
