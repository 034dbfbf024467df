package stream

import (
	"io"
	"sync"
	"time"

	"github.com/danmuck/edgetun/internal/protocol"
)

// Writer encodes messages onto a transport. Concurrent WriteMessage calls
// are serialized so frames never interleave.
type Writer struct {
	mu      sync.Mutex
	dst     io.Writer
	cfg     Config
	codec   protocol.Codec
	obs     Observer
	scratch []byte
}

// NewWriter wraps dst. If dst has SetWriteDeadline, cfg.WriteTimeout is
// applied before every frame.
func NewWriter(dst io.Writer, cfg Config) *Writer {
	cfg = cfg.WithDefaults()
	return &Writer{
		dst:   dst,
		cfg:   cfg,
		codec: protocol.NewCodec(cfg.Codec),
	}
}

// Observe attaches obs for frame accounting.
func (w *Writer) Observe(obs Observer) *Writer {
	w.obs = obs
	return w
}

// WriteMessage encodes m and writes the frame with a single Write call.
func (w *Writer) WriteMessage(m protocol.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	frame, err := w.codec.Append(w.scratch[:0], m)
	if err != nil {
		w.encodeFailed(err)
		return err
	}
	w.scratch = frame

	if d, ok := w.dst.(writeDeadliner); ok && w.cfg.WriteTimeout > 0 {
		_ = d.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	}
	if _, err := w.dst.Write(frame); err != nil {
		err = &protocol.EncodeError{Kind: m.Kind(), Err: err}
		w.encodeFailed(err)
		return err
	}
	if w.obs != nil {
		w.obs.FrameEncoded(m.Kind(), len(frame))
	}
	return nil
}

// WriteMessages writes msgs in order, stopping at the first error.
func (w *Writer) WriteMessages(msgs ...protocol.Message) error {
	for _, m := range msgs {
		if err := w.WriteMessage(m); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) encodeFailed(err error) {
	if w.obs != nil {
		w.obs.EncodeFailed(err)
	}
}
