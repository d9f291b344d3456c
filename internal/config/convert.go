package config

import (
	"fmt"
	"time"

	"github.com/danmuck/glicbridge/internal/browser"
	"github.com/danmuck/glicbridge/internal/wsbridge"
)

// BrowserOptions converts the [browser] table for browser.NewBackend.
func (c HostConfig) BrowserOptions() (browser.Config, error) {
	out := browser.Config{
		Version:   c.Browser.Version,
		UserAgent: c.Browser.UserAgent,
		MinWidth:  c.Browser.MinWidth,
		MinHeight: c.Browser.MinHeight,
		MaxWidth:  c.Browser.MaxWidth,
		MaxHeight: c.Browser.MaxHeight,
	}
	if c.Browser.FetchPages != nil {
		out.FetchPages = *c.Browser.FetchPages
	}
	timeout, err := parseDuration("browser.fetch_timeout", c.Browser.FetchTimeout)
	if err != nil {
		return browser.Config{}, err
	}
	out.FetchTimeout = timeout
	if _, err := browser.ParseChromeVersion(out.WithDefaults().Version); err != nil {
		return browser.Config{}, fmt.Errorf("%w: browser.version: %v", ErrInvalidConfig, err)
	}
	return out.WithDefaults(), nil
}

// TransportOptions converts the [transport] table for wsbridge.
func (c HostConfig) TransportOptions() (wsbridge.Config, error) {
	var out wsbridge.Config
	var err error
	if out.HandshakeTimeout, err = parseDuration("transport.handshake_timeout", c.Transport.HandshakeTimeout); err != nil {
		return wsbridge.Config{}, err
	}
	if out.WriteTimeout, err = parseDuration("transport.write_timeout", c.Transport.WriteTimeout); err != nil {
		return wsbridge.Config{}, err
	}
	if out.PingInterval, err = parseDuration("transport.ping_interval", c.Transport.PingInterval); err != nil {
		return wsbridge.Config{}, err
	}
	out.Limits.MaxPayloadBytes = c.Transport.MaxPayloadBytes
	return out.WithDefaults(), nil
}

// parseDuration treats an empty value as unset.
func parseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s: bad duration %q", ErrInvalidConfig, field, raw)
	}
	return d, nil
}
