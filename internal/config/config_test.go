package config

import "testing"

func TestBuildEndpoints_NormalizesOrigin(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		origin string
		ws     string
	}{
		{name: "bare host", base: "https://maple-party.com", origin: "https://maple-party.com/", ws: "wss://maple-party.com/ws/websocket"},
		{name: "trailing slash", base: "https://maple-party.com/", origin: "https://maple-party.com/", ws: "wss://maple-party.com/ws/websocket"},
		{name: "pasted api path", base: "https://maple-party.com/api/auth/refresh", origin: "https://maple-party.com/", ws: "wss://maple-party.com/ws/websocket"},
		{name: "local http port", base: "http://127.0.0.1:8080/v1/party?x=1#frag", origin: "http://127.0.0.1:8080/", ws: "ws://127.0.0.1:8080/ws/websocket"},
		{name: "upper scheme", base: "HTTPS://maple-party.com", origin: "https://maple-party.com/", ws: "wss://maple-party.com/ws/websocket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoints, err := BuildEndpoints(tt.base)
			if err != nil {
				t.Fatalf("BuildEndpoints failed: %v", err)
			}
			if endpoints.Origin != tt.origin {
				t.Fatalf("Origin = %q, want %q", endpoints.Origin, tt.origin)
			}
			if endpoints.WebSocketURL != tt.ws {
				t.Fatalf("WebSocketURL = %q, want %q", endpoints.WebSocketURL, tt.ws)
			}
			if endpoints.SockJSURL != tt.origin+"ws" {
				t.Fatalf("SockJSURL = %q", endpoints.SockJSURL)
			}
			if endpoints.RefreshPath != "api/auth/refresh" {
				t.Fatalf("RefreshPath = %q", endpoints.RefreshPath)
			}
		})
	}
}

func TestBuildEndpoints_InvalidScheme(t *testing.T) {
	tests := []string{
		"ftp://example.com",
		"ws://example.com",
		"file:///tmp/party",
		"maple-party.com",
	}
	for _, base := range tests {
		t.Run(base, func(t *testing.T) {
			if _, err := BuildEndpoints(base); err == nil {
				t.Fatalf("expected error for %q", base)
			}
		})
	}
}

func TestWithDefaultsAndValidate(t *testing.T) {
	opts := WithDefaults(Options{StateDir: t.TempDir()})
	if opts.BaseURL != DefaultBaseURL || opts.Store != StoreJSON || opts.LoginURL != DefaultLoginURL {
		t.Fatalf("defaults not applied: %#v", opts)
	}
	if err := Validate(opts); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	opts.Store = "sqlite"
	if err := Validate(opts); err == nil {
		t.Fatalf("Validate() expected error for unknown store")
	}
	opts.Store = StoreBolt
	opts.Party = -1
	if err := Validate(opts); err == nil {
		t.Fatalf("Validate() expected error for negative party")
	}
}
