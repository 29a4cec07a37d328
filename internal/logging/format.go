package logging

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// fieldClip bounds a single rendered field so one payload cannot flood the
// log pane.
const fieldClip = 240

// Clip flattens value onto one line and shortens it to fieldClip bytes,
// keeping UTF-8 intact.
func Clip(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return "<empty>"
	}
	if len(value) <= fieldClip {
		return value
	}
	cut := fieldClip
	for cut > 0 && !isRuneStart(value[cut]) {
		cut--
	}
	return value[:cut] + "…"
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// FormatEventLine renders event as one plain text line for non-terminal
// output.
func FormatEventLine(event Event) string {
	var b strings.Builder
	b.WriteString(event.Time.Format("15:04:05"))
	b.WriteString(" [")
	b.WriteString(strings.ToUpper(event.Level.String()))
	b.WriteString("] ")
	if event.Component != "" {
		b.WriteString(event.Component)
		b.WriteString(": ")
	}
	b.WriteString(event.Message)
	for _, key := range sortedFieldKeys(event.Fields) {
		fmt.Fprintf(&b, " %s=%s", key, fieldText(key, event.Fields[key]))
	}
	b.WriteByte('\n')
	return b.String()
}

// sortedFieldKeys orders keys alphabetically with payload-like keys last.
func sortedFieldKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		pi, pj := isPayloadFieldKey(keys[i]), isPayloadFieldKey(keys[j])
		if pi != pj {
			return pj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func isPayloadFieldKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "payload", "response", "body", "data", "frame":
		return true
	default:
		return false
	}
}

// fieldText renders one field value on a single line, masking credentials.
func fieldText(key string, value any) string {
	value = RedactField(key, value)
	switch v := value.(type) {
	case nil:
		return "<nil>"
	case string:
		return Clip(compactJSONText(v))
	case []byte:
		return Clip(compactJSONText(string(v)))
	case json.RawMessage:
		return Clip(compactJSONText(string(v)))
	case error:
		return Clip(v.Error())
	case fmt.Stringer:
		return Clip(v.String())
	case encoding.TextMarshaler:
		if text, err := v.MarshalText(); err == nil {
			return Clip(string(text))
		}
	}
	switch reflect.Indirect(reflect.ValueOf(value)).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if payload, err := json.Marshal(value); err == nil {
			return Clip(string(payload))
		}
	}
	return Clip(fmt.Sprintf("%v", value))
}

// compactJSONText re-encodes JSON containers without whitespace and leaves
// any other text untouched.
func compactJSONText(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return text
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return text
	}
	out, err := marshalNoEscape(decoded)
	if err != nil {
		return text
	}
	return out
}
