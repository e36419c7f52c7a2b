package chatapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/quickpage/internal/common"
)

// Kind tags a classified backend response.
type Kind int

const (
	Malformed Kind = iota
	Success
	AuthFailure
	AppError
	Timeout
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case AuthFailure:
		return "auth_failure"
	case AppError:
		return "app_error"
	case Timeout:
		return "timeout"
	default:
		return "malformed"
	}
}

// Result is a backend response after envelope unwrapping and
// classification. Text is the answer for Success, the error text for
// AppError and the gateway message for Timeout.
type Result struct {
	Kind    Kind
	Text    string
	Payload map[string]json.RawMessage
}

// Classify unwraps an optional proxy envelope ({statusCode, body}) where body
// is a JSON string or an object, then applies, in order: auth status, auth
// marker in an error field, gateway message, application error, success
// field. successField names the field that marks success; when empty any
// error-free object counts. raw must be a JSON object.
func Classify(httpStatus int, raw []byte, successField string) (Result, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Result{}, err
	}

	if httpStatus == http.StatusUnauthorized || statusCode(top) == http.StatusUnauthorized {
		return Result{Kind: AuthFailure, Payload: top}, nil
	}

	payload := top
	_, enveloped := top["body"]
	if enveloped {
		inner, err := unwrapBody(top["body"])
		if err != nil {
			return Result{}, err
		}
		payload = inner
	}

	for _, p := range []map[string]json.RawMessage{payload, top} {
		if msg, ok := str(p, "error"); ok && strings.Contains(msg, common.AuthTokenMarker) {
			return Result{Kind: AuthFailure, Text: msg, Payload: payload}, nil
		}
	}

	_, hasResp := payload["response"]
	_, hasErr := payload["error"]
	if !enveloped && !hasResp && !hasErr {
		if msg, ok := str(top, "message"); ok {
			return Result{Kind: Timeout, Text: msg, Payload: payload}, nil
		}
	}

	for _, key := range []string{"error", "errorMessage"} {
		if msg, ok := str(payload, key); ok && msg != "" {
			return Result{Kind: AppError, Text: msg, Payload: payload}, nil
		}
	}

	if successField == "" {
		if payload != nil {
			return Result{Kind: Success, Payload: payload}, nil
		}
		return Result{Kind: Malformed}, nil
	}
	if v, ok := payload[successField]; ok {
		res := Result{Kind: Success, Payload: payload}
		if s, ok := asString(v); ok {
			res.Text = s
		}
		return res, nil
	}
	return Result{Kind: Malformed, Payload: payload}, nil
}

func statusCode(m map[string]json.RawMessage) int {
	var code int
	if v, ok := m["statusCode"]; ok {
		_ = json.Unmarshal(v, &code)
	}
	return code
}

func unwrapBody(body json.RawMessage) (map[string]json.RawMessage, error) {
	if s, ok := asString(body); ok {
		body = json.RawMessage(s)
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(body, &inner); err != nil {
		return nil, err
	}
	return inner, nil
}

func str(m map[string]json.RawMessage, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	return asString(v)
}

func asString(v json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}
