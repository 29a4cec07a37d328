package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNamedLoggerSharesSubscribersAndTagsComponent(t *testing.T) {
	root := New(true)
	root.SetTerminalOutputEnabled(false)

	var got []Event
	unsubscribe := root.Subscribe(func(event Event) { got = append(got, event) })
	defer unsubscribe()

	root.Named("realtime").Info("connected", Field("transport", "websocket"))
	root.Warn("plain")

	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].Component != "realtime" {
		t.Fatalf("component = %q, want realtime", got[0].Component)
	}
	if got[0].Fields["transport"] != "websocket" {
		t.Fatalf("fields = %#v", got[0].Fields)
	}
	if got[1].Component != "" {
		t.Fatalf("root component = %q, want empty", got[1].Component)
	}
}

func TestDebugHiddenFromSubscribersUnlessEnabled(t *testing.T) {
	logger := New(false)
	logger.SetTerminalOutputEnabled(false)

	count := 0
	logger.Subscribe(func(Event) { count++ })

	logger.Debug("hidden")
	if count != 0 {
		t.Fatalf("debug event published while debug disabled")
	}
	logger.SetDebugEnabled(true)
	logger.Debug("shown")
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestTerminalOutputIncludesComponent(t *testing.T) {
	logger := New(false)
	var buf bytes.Buffer
	logger.core.out = &buf
	logger.core.pretty = false

	logger.Named("http").Warn("request failed", Field("status", "500"))

	line := buf.String()
	if !strings.Contains(line, "http: request failed") || !strings.Contains(line, "status=500") {
		t.Fatalf("line = %q", line)
	}
}

func TestRedactField(t *testing.T) {
	tests := []struct {
		key   string
		value any
		want  any
	}{
		{key: "X-CSRF-TOKEN", value: "abcdefghijkl", want: "abcd****"},
		{key: "refresh_token", value: "short", want: "****"},
		{key: "refresh-token", value: "", want: "<empty>"},
		{key: "cookie", value: 42, want: "****"},
		{key: "status", value: "200 OK", want: "200 OK"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := RedactField(tt.key, tt.value); got != tt.want {
				t.Fatalf("RedactField(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}
