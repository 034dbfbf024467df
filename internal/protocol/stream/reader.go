package stream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/edgetun/internal/protocol"
)

var (
	ErrBufferLimit = errors.New("stream: receive buffer limit exceeded")
	ErrTruncated   = errors.New("stream: transport closed mid-frame")
)

// Observer receives per-frame accounting from Reader and Writer.
type Observer interface {
	FrameDecoded(kind protocol.Kind, size int)
	FrameEncoded(kind protocol.Kind, size int)
	DecodeFailed(err error)
	EncodeFailed(err error)
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Reader decodes messages from a transport. It owns the receive buffer;
// all partial-frame state lives there between calls. A Reader is not safe
// for concurrent use.
type Reader struct {
	src   io.Reader
	cfg   Config
	codec protocol.Codec
	obs   Observer
	buf   bytes.Buffer
	chunk []byte
}

// NewReader wraps src. If src has SetReadDeadline, cfg.ReadTimeout is
// applied before every transport read.
func NewReader(src io.Reader, cfg Config) *Reader {
	cfg = cfg.WithDefaults()
	return &Reader{
		src:   src,
		cfg:   cfg,
		codec: protocol.NewCodec(cfg.Codec),
		chunk: make([]byte, cfg.ReadChunkSize),
	}
}

// Observe attaches obs for frame accounting.
func (r *Reader) Observe(obs Observer) *Reader {
	r.obs = obs
	return r
}

// Buffered returns the number of received bytes not yet decoded.
func (r *Reader) Buffered() int {
	return r.buf.Len()
}

// ReadMessage returns the next complete message, reading from the
// transport only when the buffer holds no complete frame. A malformed
// frame is returned as a *protocol.DecodeError; the stream cannot be
// resumed after it.
func (r *Reader) ReadMessage() (protocol.Message, error) {
	for {
		before := r.buf.Len()
		msg, ok, err := r.codec.Decode(&r.buf)
		if err != nil {
			if r.obs != nil {
				r.obs.DecodeFailed(err)
			}
			return nil, err
		}
		if ok {
			if r.obs != nil {
				r.obs.FrameDecoded(msg.Kind(), before-r.buf.Len())
			}
			return msg, nil
		}

		if r.cfg.MaxBufferedBytes > 0 && r.buf.Len() >= r.cfg.MaxBufferedBytes {
			err := fmt.Errorf("%w: %d bytes buffered", ErrBufferLimit, r.buf.Len())
			if r.obs != nil {
				r.obs.DecodeFailed(err)
			}
			return nil, err
		}
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
}

func (r *Reader) fill() error {
	if d, ok := r.src.(readDeadliner); ok && r.cfg.ReadTimeout > 0 {
		_ = d.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout))
	}
	limit := len(r.chunk)
	if r.cfg.MaxBufferedBytes > 0 {
		if room := r.cfg.MaxBufferedBytes - r.buf.Len(); room < limit {
			limit = room
		}
	}
	n, err := r.src.Read(r.chunk[:limit])
	if n > 0 {
		r.buf.Write(r.chunk[:n])
		// Bytes that arrived with an error are decoded first; the error
		// resurfaces on the next read.
		return nil
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		if r.buf.Len() > 0 {
			return fmt.Errorf("%w: %d bytes pending", ErrTruncated, r.buf.Len())
		}
		return io.EOF
	}
	return err
}
