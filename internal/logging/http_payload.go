package logging

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FormatHTTPPayload renders a response or frame body for a log field: JSON is
// compacted onto one line, a JSON-encoded string is unwrapped and everything
// else is passed through. The result is clipped.
func FormatHTTPPayload(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "<empty>"
	}
	var quoted string
	if err := json.Unmarshal([]byte(trimmed), &quoted); err == nil {
		trimmed = strings.TrimSpace(quoted)
	}
	return Clip(compactJSONText(trimmed))
}

func marshalNoEscape(value any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

var sensitiveKeys = map[string]struct{}{
	"x-csrf-token":  {},
	"refresh-token": {},
	"csrf_token":    {},
	"refresh_token": {},
	"csrftoken":     {},
	"refreshtoken":  {},
	"cookie":        {},
	"set-cookie":    {},
}

// Redact masks a credential so logs only carry enough of it to correlate.
func Redact(value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return "<empty>"
	case len(value) <= 8:
		return "****"
	default:
		return value[:4] + "****"
	}
}

// RedactField masks value when key names a credential header or token field.
func RedactField(key string, value any) any {
	if _, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]; !ok {
		return value
	}
	if text, ok := value.(string); ok {
		return Redact(text)
	}
	return "****"
}
