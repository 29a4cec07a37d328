package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestSortedFieldKeysPayloadLast(t *testing.T) {
	keys := sortedFieldKeys(map[string]any{
		"status":  500,
		"payload": `{"message":"failed"}`,
		"error":   "submit failed",
	})
	want := []string{"error", "status", "payload"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("sortedFieldKeys() = %v, want %v", keys, want)
	}
}

func TestFieldText(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		want  string
	}{
		{name: "nil", key: "x", value: nil, want: "<nil>"},
		{name: "json compacted", key: "payload", value: "{\n  \"a\": 1,\n  \"b\": [1, 2]\n}", want: `{"a":1,"b":[1,2]}`},
		{name: "prefixed json untouched", key: "error", value: `500: {"m":1}`, want: `500: {"m":1}`},
		{name: "error", key: "error", value: errors.New("boom"), want: "boom"},
		{name: "struct", key: "party", value: struct {
			ID int64 `json:"id"`
		}{ID: 7}, want: `{"id":7}`},
		{name: "redacted", key: "refresh-token", value: "eyJhbGciOi.payload.sig", want: "eyJh****"},
		{name: "multiline flattened", key: "msg", value: "a\n  b\tc", want: "a b c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fieldText(tt.key, tt.value); got != tt.want {
				t.Fatalf("fieldText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClipKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("파티", fieldClip)
	got := Clip(long)
	if !utf8.ValidString(got) {
		t.Fatalf("Clip() produced invalid UTF-8")
	}
	if !strings.HasSuffix(got, "…") || len(got) > fieldClip+len("…") {
		t.Fatalf("Clip() length = %d", len(got))
	}
}

func TestFormatHTTPPayload(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "<empty>"},
		{in: `{ "data": { "id": 3 } }`, want: `{"data":{"id":3}}`},
		{in: `"{\"a\":\"<b>\"}"`, want: `{"a":"<b>"}`},
		{in: "plain text", want: "plain text"},
	}
	for _, tt := range tests {
		if got := FormatHTTPPayload([]byte(tt.in)); got != tt.want {
			t.Fatalf("FormatHTTPPayload(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatEventLine(t *testing.T) {
	line := FormatEventLine(Event{
		Time:      time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC),
		Level:     slog.LevelWarn,
		Component: "stomp",
		Message:   "reconnecting",
		Fields:    map[string]any{"attempt": 2, "frame": "MESSAGE"},
	})
	want := "09:30:00 [WARN] stomp: reconnecting attempt=2 frame=MESSAGE\n"
	if line != want {
		t.Fatalf("FormatEventLine() = %q, want %q", line, want)
	}
}

func TestFormatEventANSIIsSingleLine(t *testing.T) {
	line := FormatEventANSI(Event{
		Time:    time.Now(),
		Level:   slog.LevelError,
		Message: "send failed",
		Fields:  map[string]any{"payload": "{\n\"a\": 1\n}"},
	})
	if strings.Count(line, "\n") != 1 || !strings.HasSuffix(line, "\n") {
		t.Fatalf("FormatEventANSI() should render one line, got %q", line)
	}
	if !strings.Contains(line, "send failed") {
		t.Fatalf("FormatEventANSI() missing message: %q", line)
	}
}
