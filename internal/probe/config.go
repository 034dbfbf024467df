package probe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/edgetun/internal/protocol/stream"
)

var (
	ErrMissingID     = errors.New("probe: id is required")
	ErrMissingAddr   = errors.New("probe: listen addr is required")
	ErrSessionLimit  = errors.New("probe: max_sessions must be positive")
	ErrServiceClosed = errors.New("probe: service closed")
)

// ServiceConfig controls one probe endpoint.
type ServiceConfig struct {
	ProbeID         string
	ListenAddr      string
	AdminListenAddr string
	// MaxSessions bounds concurrently served sessions across TCP and
	// websocket. Sessions beyond the bound are refused immediately.
	MaxSessions int
	// Echo writes every received message back to the sender.
	Echo bool
	// TunnelToken, when set, is required on the websocket tunnel endpoint.
	TunnelToken string
	Stream      stream.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ProbeID:         "probe.local",
		ListenAddr:      ":7400",
		AdminListenAddr: "127.0.0.1:7401",
		MaxSessions:     64,
		Echo:            true,
		Stream:          stream.DefaultConfig(),
	}
}

func (c ServiceConfig) Validate() error {
	if strings.TrimSpace(c.ProbeID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return ErrMissingAddr
	}
	if c.MaxSessions <= 0 {
		return ErrSessionLimit
	}
	if err := c.Stream.Codec.Validate(); err != nil {
		return fmt.Errorf("probe: codec: %w", err)
	}
	return nil
}
