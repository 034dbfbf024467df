package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/edgetun/internal/config"
	"github.com/danmuck/edgetun/internal/probe"
)

// loadServiceConfig decodes path and applies only the keys it defines, so an
// explicit zero (echo = false, admin_listen_addr = "") still takes effect.
func loadServiceConfig(path string) (probe.ServiceConfig, error) {
	var raw config.ProbeConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return probe.ServiceConfig{}, fmt.Errorf("load probe config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return probe.ServiceConfig{}, fmt.Errorf("load probe config: %w: unknown keys %v", config.ErrInvalidConfig, undecoded)
	}
	cfg, err := raw.ServiceConfig()
	if err != nil {
		return probe.ServiceConfig{}, fmt.Errorf("load probe config: %w", err)
	}
	return cfg, nil
}
