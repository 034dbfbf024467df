package observability

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/edgetun/internal/protocol"
	"github.com/danmuck/edgetun/internal/protocol/stream"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgetun",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgetun",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	framesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgetun",
			Subsystem: "codec",
			Name:      "frames_decoded_total",
			Help:      "Frames decoded from the wire.",
		},
		[]string{"node", "kind"},
	)
	framesEncoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgetun",
			Subsystem: "codec",
			Name:      "frames_encoded_total",
			Help:      "Frames written to the wire.",
		},
		[]string{"node", "kind"},
	)
	frameBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgetun",
			Subsystem: "codec",
			Name:      "frame_bytes",
			Help:      "Encoded frame size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"node", "direction"},
	)
	decodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgetun",
			Subsystem: "codec",
			Name:      "decode_failures_total",
			Help:      "Streams abandoned because the receive buffer could not be decoded.",
		},
		[]string{"node", "reason"},
	)
	encodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgetun",
			Subsystem: "codec",
			Name:      "encode_failures_total",
			Help:      "Messages that could not be encoded or written.",
		},
		[]string{"node", "reason"},
	)
	sessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "edgetun",
			Subsystem: "probe",
			Name:      "sessions_active",
			Help:      "Probe sessions currently being served.",
		},
		[]string{"node", "transport"},
	)
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgetun",
			Subsystem: "probe",
			Name:      "sessions_total",
			Help:      "Finished probe sessions by outcome.",
		},
		[]string{"node", "transport", "result"},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgetun",
			Subsystem: "probe",
			Name:      "session_duration_seconds",
			Help:      "Probe session lifetime in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "transport"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			framesDecoded, framesEncoded, frameBytes,
			decodeFailures, encodeFailures,
			sessionsActive, sessionsTotal, sessionDuration,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSessionStart(node, transport string) {
	RegisterMetrics()
	sessionsActive.WithLabelValues(node, transport).Inc()
}

func RecordSessionEnd(node, transport, result string, duration time.Duration) {
	RegisterMetrics()
	sessionsActive.WithLabelValues(node, transport).Dec()
	sessionsTotal.WithLabelValues(node, transport, result).Inc()
	sessionDuration.WithLabelValues(node, transport).Observe(duration.Seconds())
}

// FailureReason maps codec and stream errors onto a bounded label set.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, protocol.ErrUnknownTag):
		return "unknown_tag"
	case errors.Is(err, protocol.ErrInvalidIntMarker):
		return "invalid_int_marker"
	case errors.Is(err, protocol.ErrIntOverflow):
		return "int_overflow"
	case errors.Is(err, protocol.ErrLengthOverflow):
		return "length_overflow"
	case errors.Is(err, protocol.ErrInvalidUTF8):
		return "invalid_utf8"
	case errors.Is(err, stream.ErrBufferLimit):
		return "buffer_limit"
	case errors.Is(err, protocol.ErrNilMessage):
		return "nil_message"
	case errors.Is(err, protocol.ErrUnknownMessage):
		return "unknown_message"
	case errors.Is(err, protocol.ErrResource):
		return "resource"
	case protocol.IsEncodeError(err):
		return "transport"
	default:
		return "other"
	}
}

// CodecObserver records stream frame accounting under one node label.
type CodecObserver struct {
	node string
}

var _ stream.Observer = CodecObserver{}

func NewCodecObserver(node string) CodecObserver {
	RegisterMetrics()
	return CodecObserver{node: node}
}

func (o CodecObserver) FrameDecoded(kind protocol.Kind, size int) {
	framesDecoded.WithLabelValues(o.node, kind.String()).Inc()
	frameBytes.WithLabelValues(o.node, "in").Observe(float64(size))
}

func (o CodecObserver) FrameEncoded(kind protocol.Kind, size int) {
	framesEncoded.WithLabelValues(o.node, kind.String()).Inc()
	frameBytes.WithLabelValues(o.node, "out").Observe(float64(size))
}

func (o CodecObserver) DecodeFailed(err error) {
	decodeFailures.WithLabelValues(o.node, FailureReason(err)).Inc()
}

func (o CodecObserver) EncodeFailed(err error) {
	encodeFailures.WithLabelValues(o.node, FailureReason(err)).Inc()
}
