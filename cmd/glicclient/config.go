package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/glicbridge/internal/glic"
)

type fileConfig struct {
	URL          string   `toml:"url"`
	Origin       string   `toml:"origin"`
	HostOrigin   string   `toml:"host_origin"`
	AuthToken    string   `toml:"auth_token"`
	DialAttempts int      `toml:"dial_attempts"`
	OpenURLs     []string `toml:"open_urls"`
	LogLevel     string   `toml:"log_level"`
}

type clientConfig struct {
	URL          string
	Origin       string
	HostOrigin   string
	AuthToken    string
	DialAttempts int
	OpenURLs     []string
	LogLevel     string
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		URL:        "ws://localhost:9400/glic/ws",
		Origin:     "http://localhost:3000",
		HostOrigin: glic.HostOrigin,
		LogLevel:   "info",
	}
}

// loadClientConfig overlays keys present in the file at path on the
// defaults. An empty path returns the defaults.
func loadClientConfig(path string) (clientConfig, error) {
	cfg := defaultClientConfig()
	if path == "" {
		return cfg, validateClientConfig(cfg)
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return clientConfig{}, fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("origin") {
		cfg.Origin = strings.TrimSpace(raw.Origin)
	}
	if meta.IsDefined("host_origin") {
		cfg.HostOrigin = strings.TrimSpace(raw.HostOrigin)
	}
	if meta.IsDefined("auth_token") {
		cfg.AuthToken = strings.TrimSpace(raw.AuthToken)
	}
	if meta.IsDefined("dial_attempts") {
		cfg.DialAttempts = raw.DialAttempts
	}
	if meta.IsDefined("open_urls") {
		cfg.OpenURLs = normalizeURLs(raw.OpenURLs)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return clientConfig{}, fmt.Errorf("load client config: unknown key %q", undecoded[0].String())
	}
	return cfg, validateClientConfig(cfg)
}

func validateClientConfig(cfg clientConfig) error {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("url must be ws:// or wss://, got %q", cfg.URL)
	}
	if cfg.Origin == "" || cfg.Origin == "*" {
		return fmt.Errorf("origin must name the web client origin")
	}
	if cfg.HostOrigin == "" || cfg.HostOrigin == "*" {
		return fmt.Errorf("host_origin must name the host origin")
	}
	if cfg.DialAttempts < 0 {
		return fmt.Errorf("dial_attempts must be >= 0")
	}
	return nil
}

func normalizeURLs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
