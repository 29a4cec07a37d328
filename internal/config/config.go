package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL  = "https://maple-party.com/"
	DefaultLoginURL = "https://discord.com/oauth2/authorize?client_id=1201514665218420766&response_type=code" +
		"&redirect_uri=https%3A%2F%2Fmaple-party.com%2Fv1%2Fdiscord%2Fredirect&scope=identify+email&state=apdlvmfvkxl"

	StoreJSON = "json"
	StoreBolt = "bolt"
)

type Options struct {
	BaseURL      string `long:"base-url" env:"MAPLE_PARTY_BASE_URL" description:"Backend origin (e.g. https://maple-party.com)"`
	StateDir     string `long:"state-dir" env:"MAPLE_PARTY_STATE_DIR" description:"Directory holding persisted session state"`
	Store        string `long:"store" env:"MAPLE_PARTY_STORE" choice:"json" choice:"bolt" description:"Persisted state backend"`
	Party        int64  `long:"party" env:"MAPLE_PARTY_ID" description:"Party to join once the realtime session is up"`
	LoginURL     string `long:"login-url" env:"MAPLE_PARTY_LOGIN_URL" description:"Authorization URL opened when sign-in is required"`
	ForcePolling bool   `long:"force-polling" env:"MAPLE_PARTY_FORCE_POLLING" description:"Skip the WebSocket transport and use HTTP polling"`
	SignOut      bool   `long:"sign-out" description:"Sign out of the stored session and exit"`
	Debug        bool   `long:"debug" env:"MAPLE_PARTY_DEBUG" description:"Enable verbose debug output"`
}

type Endpoints struct {
	// Origin always ends with a slash; request paths are relative to it.
	Origin       string
	RefreshPath  string
	SockJSURL    string
	WebSocketURL string
}

const (
	refreshPath = "api/auth/refresh"
	sockJSPath  = "ws"
)

func ParseOptions() (Options, error) {
	_ = godotenv.Load()
	opts := Options{}
	if _, err := flags.Parse(&opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// WithDefaults fills every unset option that has a sensible fallback.
func WithDefaults(opts Options) Options {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(opts.Store) == "" {
		opts.Store = StoreJSON
	}
	if strings.TrimSpace(opts.LoginURL) == "" {
		opts.LoginURL = DefaultLoginURL
	}
	if strings.TrimSpace(opts.StateDir) == "" {
		opts.StateDir = DefaultStateDir()
	}
	return opts
}

func Validate(opts Options) error {
	if strings.TrimSpace(opts.StateDir) == "" {
		return errors.New("state directory is required")
	}
	switch opts.Store {
	case StoreJSON, StoreBolt:
	default:
		return errors.New("store must be json or bolt")
	}
	if opts.Party < 0 {
		return errors.New("party id must not be negative")
	}
	if _, err := BuildEndpoints(opts.BaseURL); err != nil {
		return err
	}
	return nil
}

func DefaultStateDir() string {
	root, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(root, "maple-party", "state")
}

func BuildEndpoints(rawBaseURL string) (Endpoints, error) {
	origin, err := normalizeOrigin(rawBaseURL)
	if err != nil {
		return Endpoints{}, err
	}
	wsOrigin := *origin
	if strings.EqualFold(origin.Scheme, "https") {
		wsOrigin.Scheme = "wss"
	} else {
		wsOrigin.Scheme = "ws"
	}
	base := origin.String()
	return Endpoints{
		Origin:       base,
		RefreshPath:  refreshPath,
		SockJSURL:    base + sockJSPath,
		WebSocketURL: wsOrigin.String() + sockJSPath + "/websocket",
	}, nil
}

func normalizeOrigin(raw string) (*url.URL, error) {
	value := strings.TrimSpace(raw)
	parsed, err := url.Parse(value)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("expected absolute URL like https://maple-party.com")
	}
	if !strings.EqualFold(parsed.Scheme, "http") && !strings.EqualFold(parsed.Scheme, "https") {
		return nil, errors.New("base URL scheme must be http or https")
	}

	// Pasted API or page URLs collapse to the origin.
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Path = "/"
	parsed.RawPath = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.User = nil
	return parsed, nil
}
