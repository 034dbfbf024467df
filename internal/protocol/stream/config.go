package stream

import (
	"time"

	"github.com/danmuck/edgetun/internal/protocol"
)

// Config defines transport defaults around the codec.
type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ReadChunkSize is the size of each transport read appended to the
	// receive buffer.
	ReadChunkSize int
	// MaxBufferedBytes caps undecoded bytes held for one stream. Zero
	// disables the cap.
	MaxBufferedBytes int
	Codec            protocol.Config
}

// DefaultConfig returns the transport defaults.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     15 * time.Second,
		ReadChunkSize:    32 * 1024,
		MaxBufferedBytes: 8 * 1024 * 1024,
		Codec:            protocol.Standard(),
	}
}

// WithDefaults fills unset sizes. Timeouts of zero stay disabled.
func (c Config) WithDefaults() Config {
	if c.ReadChunkSize <= 0 {
		c.ReadChunkSize = DefaultConfig().ReadChunkSize
	}
	if c.MaxBufferedBytes < 0 {
		c.MaxBufferedBytes = 0
	}
	return c
}
