package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/danmuck/edgetun/internal/observability"
	"github.com/danmuck/edgetun/internal/protocol"
	"github.com/danmuck/edgetun/internal/protocol/stream"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Session outcomes, also used as the result label of sessions_total.
const (
	ResultClosed     = "closed"
	ResultEOF        = "eof"
	ResultMalformed  = "malformed"
	ResultOverflow   = "buffer_limit"
	ResultTimeout    = "timeout"
	ResultTransport  = "transport_error"
	ResultCancelled  = "cancelled"
	ResultEncodeFail = "encode_error"
)

// SessionResult summarizes one finished session.
type SessionResult struct {
	ID        string
	Transport string
	Remote    string
	FramesIn  int
	FramesOut int
	Result    string
	Err       error
	Duration  time.Duration
}

// ServeConn runs one session on conn until the peer sends Close, the
// stream ends, or a frame cannot be decoded. conn is closed on return.
func (s *Service) ServeConn(ctx context.Context, conn io.ReadWriteCloser, transport, remote string) SessionResult {
	defer conn.Close()

	res := SessionResult{
		ID:        uuid.NewString(),
		Transport: transport,
		Remote:    remote,
	}
	start := time.Now()
	logger := s.logger.With().
		Str("session", res.ID).
		Str("transport", transport).
		Str("remote", remote).
		Logger()

	ctx, span := s.tracer.Start(ctx, "probe.session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("probe.id", s.cfg.ProbeID),
			attribute.String("session.id", res.ID),
			attribute.String("net.transport", transport),
			attribute.String("net.peer", remote),
		),
	)
	defer span.End()

	s.active.Add(1)
	observability.RecordSessionStart(s.cfg.ProbeID, transport)
	logger.Info().Int64("active", s.active.Load()).Msg("probe.session open")

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	r := stream.NewReader(conn, s.cfg.Stream).Observe(s.obs)
	w := stream.NewWriter(conn, s.cfg.Stream).Observe(s.obs)
	res.Result, res.Err = s.pump(ctx, r, w, &res, logger)

	res.Duration = time.Since(start)
	s.active.Add(-1)
	s.served.Add(1)
	observability.RecordSessionEnd(s.cfg.ProbeID, transport, res.Result, res.Duration)

	span.SetAttributes(
		attribute.Int("session.frames_in", res.FramesIn),
		attribute.Int("session.frames_out", res.FramesOut),
		attribute.String("session.result", res.Result),
	)
	event := logger.Info()
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		event = logger.Warn().Err(res.Err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	event.
		Str("result", res.Result).
		Int("frames_in", res.FramesIn).
		Int("frames_out", res.FramesOut).
		Dur("duration", res.Duration).
		Msg("probe.session done")
	return res
}

func (s *Service) pump(ctx context.Context, r *stream.Reader, w *stream.Writer, res *SessionResult, logger zerolog.Logger) (string, error) {
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			return classifyReadErr(ctx, err)
		}
		res.FramesIn++

		switch m := msg.(type) {
		case protocol.Close:
			logger.Debug().Msg("probe.session close requested")
			if err := w.WriteMessage(protocol.Close{}); err != nil {
				return ResultEncodeFail, err
			}
			res.FramesOut++
			return ResultClosed, nil
		case protocol.Log:
			logger.Info().Str("text", m.Message).Msg("probe.session peer log")
		case protocol.NewConnection:
			logger.Debug().Uint16("conn", m.ConnectionID).Uint16("port", m.Port).Msg("probe.session new_connection")
		case protocol.ConnectionClose:
			logger.Debug().Uint16("conn", m.ConnectionID).Msg("probe.session connection_close")
		case protocol.Data:
			logger.Trace().Uint16("conn", m.ConnectionID).Int("bytes", len(m.Data)).Msg("probe.session data")
		}

		if s.cfg.Echo {
			if err := w.WriteMessage(msg); err != nil {
				return ResultEncodeFail, err
			}
			res.FramesOut++
		}
	}
}

func classifyReadErr(ctx context.Context, err error) (string, error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		return ResultEOF, nil
	case ctx.Err() != nil:
		return ResultCancelled, nil
	case errors.Is(err, protocol.ErrMalformed):
		return ResultMalformed, err
	case errors.Is(err, stream.ErrBufferLimit):
		return ResultOverflow, err
	case errors.As(err, &netErr) && netErr.Timeout():
		return ResultTimeout, err
	default:
		return ResultTransport, err
	}
}
