package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidConfig = errors.New("config: invalid probe config")

// ProbeConfig is the on-disk probe configuration. Every key is optional: an
// absent key keeps the probe default, a present key is applied as written,
// zero values included. Durations are Go duration strings.
type ProbeConfig struct {
	ID               *string `toml:"id"`
	Addr             *string `toml:"addr"`
	AdminListenAddr  *string `toml:"admin_listen_addr"`
	ReadTimeout      *string `toml:"read_timeout"`
	WriteTimeout     *string `toml:"write_timeout"`
	MaxBufferedBytes *int    `toml:"max_buffered_bytes"`
	MaxSessions      *int    `toml:"max_sessions"`
	Echo             *bool   `toml:"echo"`
	ByteOrder        *string `toml:"byte_order"`
	IntEncoding      *string `toml:"int_encoding"`
	TunnelToken      *string `toml:"tunnel_token,omitempty"`
}

// LoadProbeConfig reads path strictly: unknown keys are rejected so typos
// do not silently fall back to defaults.
func LoadProbeConfig(path string) (ProbeConfig, error) {
	var cfg ProbeConfig
	if err := loadToml(path, &cfg); err != nil {
		return ProbeConfig{}, err
	}
	if err := ValidateProbeConfig(cfg); err != nil {
		return ProbeConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config parse failed (%s): %w: %s", path, ErrInvalidConfig, strings.TrimSpace(strict.String()))
		}
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// ValidateProbeConfig reports whether cfg converts to a runnable probe
// service config.
func ValidateProbeConfig(cfg ProbeConfig) error {
	_, err := cfg.ServiceConfig()
	return err
}

// Marshal renders cfg back to TOML. Unset keys are omitted.
func Marshal(cfg ProbeConfig) ([]byte, error) {
	return toml.Marshal(cfg)
}

// parseDuration requires a valid, non-negative duration. "0s" disables the
// deadline; an empty string is an error.
func parseDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}
