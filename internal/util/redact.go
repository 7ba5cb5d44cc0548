// Package util holds small payload-repair and sanitization helpers shared
// by the route handlers and the hook observation log.
package util

import (
	"encoding/json"
	"net/url"
	"strings"
)

const redactedValue = "[REDACTED]"

// sensitiveKeywords flags any key that carries credential material, in
// query strings and JSON documents alike.
var sensitiveKeywords = []string{
	"authorization", "cookie", "api_key", "apikey", "secret", "token", "password",
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, kw := range sensitiveKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}

// MaskSensitiveQuery redacts the values of credential-bearing query
// parameters so raw request URLs are safe to log.
func MaskSensitiveQuery(rawQuery string) string {
	if strings.TrimSpace(rawQuery) == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}
	for key := range values {
		if isSensitiveKey(key) {
			values[key] = []string{redactedValue}
		}
	}
	return values.Encode()
}

// RedactSensitiveJSON walks a JSON document and replaces the value of any
// credential-bearing key. Payloads that aren't valid JSON pass through
// untouched.
func RedactSensitiveJSON(body []byte) []byte {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return body
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return body
	}
	out, err := json.Marshal(redactValue(v))
	if err != nil {
		return body
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if isSensitiveKey(k) {
				t[k] = redactedValue
			} else {
				t[k] = redactValue(val)
			}
		}
		return t
	case []any:
		for i := range t {
			t[i] = redactValue(t[i])
		}
		return t
	default:
		return v
	}
}
