package config

import (
	"fmt"
	"strings"

	"github.com/danmuck/edgetun/internal/probe"
	"github.com/danmuck/edgetun/internal/protocol"
)

// ServiceConfig overlays the keys set in cfg on the probe defaults and
// validates the result. Every probe loader goes through here.
func (cfg ProbeConfig) ServiceConfig() (probe.ServiceConfig, error) {
	out := probe.DefaultServiceConfig()
	if cfg.ID != nil {
		out.ProbeID = strings.TrimSpace(*cfg.ID)
	}
	if cfg.Addr != nil {
		out.ListenAddr = strings.TrimSpace(*cfg.Addr)
	}
	if cfg.AdminListenAddr != nil {
		out.AdminListenAddr = strings.TrimSpace(*cfg.AdminListenAddr)
	}
	if cfg.ReadTimeout != nil {
		d, err := parseDuration(*cfg.ReadTimeout)
		if err != nil {
			return probe.ServiceConfig{}, fmt.Errorf("%w: read_timeout: %v", ErrInvalidConfig, err)
		}
		out.Stream.ReadTimeout = d
	}
	if cfg.WriteTimeout != nil {
		d, err := parseDuration(*cfg.WriteTimeout)
		if err != nil {
			return probe.ServiceConfig{}, fmt.Errorf("%w: write_timeout: %v", ErrInvalidConfig, err)
		}
		out.Stream.WriteTimeout = d
	}
	if cfg.MaxBufferedBytes != nil {
		if *cfg.MaxBufferedBytes < 0 {
			return probe.ServiceConfig{}, fmt.Errorf("%w: max_buffered_bytes must not be negative", ErrInvalidConfig)
		}
		out.Stream.MaxBufferedBytes = *cfg.MaxBufferedBytes
	}
	if cfg.MaxSessions != nil {
		out.MaxSessions = *cfg.MaxSessions
	}
	if cfg.Echo != nil {
		out.Echo = *cfg.Echo
	}
	if cfg.TunnelToken != nil {
		out.TunnelToken = strings.TrimSpace(*cfg.TunnelToken)
	}
	if cfg.ByteOrder != nil {
		order, err := protocol.ParseByteOrder(*cfg.ByteOrder)
		if err != nil {
			return probe.ServiceConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		out.Stream.Codec.ByteOrder = order
	}
	if cfg.IntEncoding != nil {
		enc, err := protocol.ParseIntEncoding(*cfg.IntEncoding)
		if err != nil {
			return probe.ServiceConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		out.Stream.Codec.IntEncoding = enc
	}
	if err := out.Validate(); err != nil {
		return probe.ServiceConfig{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return out, nil
}

// FromServiceConfig renders svc with every key set, for printing the
// effective configuration.
func FromServiceConfig(svc probe.ServiceConfig) ProbeConfig {
	cfg := ProbeConfig{
		ID:               ptr(svc.ProbeID),
		Addr:             ptr(svc.ListenAddr),
		AdminListenAddr:  ptr(svc.AdminListenAddr),
		ReadTimeout:      ptr(svc.Stream.ReadTimeout.String()),
		WriteTimeout:     ptr(svc.Stream.WriteTimeout.String()),
		MaxBufferedBytes: ptr(svc.Stream.MaxBufferedBytes),
		MaxSessions:      ptr(svc.MaxSessions),
		Echo:             ptr(svc.Echo),
		ByteOrder:        ptr(svc.Stream.Codec.ByteOrder.String()),
		IntEncoding:      ptr(svc.Stream.Codec.IntEncoding.String()),
	}
	if svc.TunnelToken != "" {
		cfg.TunnelToken = ptr(svc.TunnelToken)
	}
	return cfg
}

func ptr[T any](v T) *T { return &v }
