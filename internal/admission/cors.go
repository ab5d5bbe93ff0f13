package admission

import (
	"encoding/json"
	"net/http"
)

// OriginPolicy validates the handshake Origin header against a configured
// allow-list, matched byte-exactly (case-sensitive, scheme+host+port,
// no trailing slash).
type OriginPolicy struct {
	Allowed       map[string]struct{}
	AllowNoOrigin bool
}

// NewOriginPolicy builds a policy from an explicit allow-list.
func NewOriginPolicy(allowed []string, allowNoOrigin bool) OriginPolicy {
	m := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		m[o] = struct{}{}
	}
	return OriginPolicy{Allowed: m, AllowNoOrigin: allowNoOrigin}
}

// Check validates origin, treating "" and the literal string "null" as
// missing. When no allow-list is configured, every origin is accepted
// (the operator has opted out of origin checking).
func (p OriginPolicy) Check(origin string) (code string, ok bool) {
	if len(p.Allowed) == 0 {
		return "", true
	}
	if origin == "" || origin == "null" {
		if p.AllowNoOrigin {
			return "", true
		}
		return "CORS_ORIGIN_REQUIRED", false
	}
	if _, found := p.Allowed[origin]; found {
		return "", true
	}
	return "CORS_ORIGIN_NOT_ALLOWED", false
}

// ProblemDetails is an RFC 7807 error body.
type ProblemDetails struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// WriteProblem writes an RFC 7807 Problem-Details JSON response.
func WriteProblem(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetails{
		Title:  "admission rejected",
		Status: status,
		Code:   code,
		Detail: detail,
	})
}
