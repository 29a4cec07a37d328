package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

type ClientSettings struct {
	BaseURL   string `json:"base_url"`
	StateDir  string `json:"state_dir"`
	Store     string `json:"store"`
	LastParty int64  `json:"last_party,omitempty"`
	Debug     bool   `json:"debug"`
}

func SettingsPath() (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "maple-party", "settings.json"), nil
}

func LoadSettings() (ClientSettings, error) {
	path, err := SettingsPath()
	if err != nil {
		return ClientSettings{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ClientSettings{}, err
	}
	var settings ClientSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return ClientSettings{}, err
	}
	return settings, nil
}

func SaveSettings(settings ClientSettings) error {
	path, err := SettingsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// MergeOptionsWithSettings fills options the command line left empty from saved settings.
func MergeOptionsWithSettings(cli Options, saved ClientSettings) Options {
	if strings.TrimSpace(cli.BaseURL) == "" {
		cli.BaseURL = saved.BaseURL
	}
	if strings.TrimSpace(cli.StateDir) == "" {
		cli.StateDir = saved.StateDir
	}
	if strings.TrimSpace(cli.Store) == "" {
		cli.Store = saved.Store
	}
	if cli.Party == 0 {
		cli.Party = saved.LastParty
	}
	if !cli.Debug {
		cli.Debug = saved.Debug
	}
	return cli
}

func SettingsFromOptions(opts Options) ClientSettings {
	return ClientSettings{
		BaseURL:   strings.TrimSpace(opts.BaseURL),
		StateDir:  strings.TrimSpace(opts.StateDir),
		Store:     strings.TrimSpace(opts.Store),
		LastParty: opts.Party,
		Debug:     opts.Debug,
	}
}
