package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/danmuck/glicbridge/internal/glic"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every host config environment override.
const EnvPrefix = "GLICHOST"

var ErrInvalidConfig = errors.New("config: invalid")

// HostConfig fields map to GLICHOST_<FIELD> environment variables, with
// nested tables adding their own segment, e.g. GLICHOST_BROWSER_STORE_PATH.
type HostConfig struct {
	Name string `toml:"name"`
	Addr string `toml:"addr"`
	// HostOrigin is the origin clients address the host as.
	HostOrigin string `toml:"host_origin" split_words:"true"`
	// ClientOrigins are the web-client origins allowed to connect. They also
	// form the CORS allow-list.
	ClientOrigins []string `toml:"client_origins" split_words:"true"`
	// AuthToken protects the WebSocket endpoint. Empty disables the check.
	AuthToken string          `toml:"auth_token" split_words:"true"`
	Browser   BrowserConfig   `toml:"browser"`
	Transport TransportConfig `toml:"transport"`
}

type BrowserConfig struct {
	Version      string `toml:"version"`
	StorePath    string `toml:"store_path" split_words:"true"`
	FetchPages   *bool  `toml:"fetch_pages" split_words:"true"`
	FetchTimeout string `toml:"fetch_timeout" split_words:"true"`
	UserAgent    string `toml:"user_agent" split_words:"true"`
	MinWidth     int    `toml:"min_width" split_words:"true"`
	MinHeight    int    `toml:"min_height" split_words:"true"`
	MaxWidth     int    `toml:"max_width" split_words:"true"`
	MaxHeight    int    `toml:"max_height" split_words:"true"`
}

type TransportConfig struct {
	HandshakeTimeout string `toml:"handshake_timeout" split_words:"true"`
	WriteTimeout     string `toml:"write_timeout" split_words:"true"`
	PingInterval     string `toml:"ping_interval" split_words:"true"`
	MaxPayloadBytes  uint64 `toml:"max_payload_bytes" split_words:"true"`
}

func DefaultHostConfig() HostConfig {
	fetch := true
	return HostConfig{
		Name:          "glichost",
		Addr:          ":9400",
		HostOrigin:    glic.HostOrigin,
		ClientOrigins: []string{"http://localhost:3000"},
		Browser: BrowserConfig{
			Version:      "1.0.0.0",
			StorePath:    ":memory:",
			FetchPages:   &fetch,
			FetchTimeout: "10s",
		},
		Transport: TransportConfig{
			HandshakeTimeout: "5s",
			WriteTimeout:     "10s",
			PingInterval:     "20s",
		},
	}
}

// LoadHostConfig applies defaults, then the TOML file at path (skipped when
// path is empty), then GLICHOST_* environment overrides, and validates the
// result.
func LoadHostConfig(path string) (HostConfig, error) {
	cfg := DefaultHostConfig()
	if path != "" {
		if err := loadToml(path, &cfg); err != nil {
			return HostConfig{}, err
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return HostConfig{}, fmt.Errorf("config env override failed: %w", err)
	}
	if err := ValidateHostConfig(cfg); err != nil {
		return HostConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateHostConfig(cfg HostConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("%w: missing addr", ErrInvalidConfig)
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("%w: addr %q: %v", ErrInvalidConfig, cfg.Addr, err)
	}
	if err := validateOrigin(cfg.HostOrigin); err != nil {
		return fmt.Errorf("%w: host_origin: %v", ErrInvalidConfig, err)
	}
	if len(cfg.ClientOrigins) == 0 {
		return fmt.Errorf("%w: client_origins is empty", ErrInvalidConfig)
	}
	for i, origin := range cfg.ClientOrigins {
		if err := validateOrigin(origin); err != nil {
			return fmt.Errorf("%w: client_origins[%d]: %v", ErrInvalidConfig, i, err)
		}
		if !webOrigin(origin) {
			return fmt.Errorf("%w: client_origins[%d]: %q is not a web or extension origin", ErrInvalidConfig, i, origin)
		}
	}
	if _, err := cfg.BrowserOptions(); err != nil {
		return err
	}
	if _, err := cfg.TransportOptions(); err != nil {
		return err
	}
	return nil
}

func validateOrigin(origin string) error {
	switch strings.TrimSpace(origin) {
	case "":
		return errors.New("empty origin")
	case "*":
		return errors.New("wildcard origin")
	}
	if !strings.Contains(origin, "://") {
		return fmt.Errorf("origin %q has no scheme", origin)
	}
	if strings.HasSuffix(origin, "/") {
		return fmt.Errorf("origin %q has a trailing slash", origin)
	}
	return nil
}

// webOrigin reports whether a web client can be served from origin.
func webOrigin(origin string) bool {
	scheme, _, _ := strings.Cut(origin, "://")
	switch scheme {
	case "http", "https":
		return true
	}
	return strings.HasSuffix(scheme, "-extension")
}
