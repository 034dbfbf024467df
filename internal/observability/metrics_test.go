package observability

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/edgetun/internal/protocol"
	"github.com/danmuck/edgetun/internal/protocol/stream"
	"github.com/danmuck/edgetun/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)

	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("probe-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordSessionStart("probe-a", "tcp")
	RecordSessionEnd("probe-a", "tcp", "closed", 40*time.Millisecond)

	if got := testutil.ToFloat64(sessionsActive.WithLabelValues("probe-a", "tcp")); got != 0 {
		t.Fatalf("sessions_active should return to zero, got %v", got)
	}
}

func TestCodecObserverCountsFrames(t *testing.T) {
	testlog.Start(t)

	obs := NewCodecObserver("probe-observer")
	obs.FrameDecoded(protocol.KindData, 12)
	obs.FrameDecoded(protocol.KindData, 3)
	obs.FrameEncoded(protocol.KindClose, 1)
	obs.DecodeFailed(&protocol.DecodeError{Err: protocol.ErrUnknownTag})

	if got := testutil.ToFloat64(framesDecoded.WithLabelValues("probe-observer", "data")); got != 2 {
		t.Fatalf("frames_decoded_total{data}=%v want 2", got)
	}
	if got := testutil.ToFloat64(framesEncoded.WithLabelValues("probe-observer", "close")); got != 1 {
		t.Fatalf("frames_encoded_total{close}=%v want 1", got)
	}
	if got := testutil.ToFloat64(decodeFailures.WithLabelValues("probe-observer", "unknown_tag")); got != 1 {
		t.Fatalf("decode_failures_total{unknown_tag}=%v want 1", got)
	}
}

func TestFailureReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{&protocol.DecodeError{Err: protocol.ErrInvalidUTF8}, "invalid_utf8"},
		{&protocol.DecodeError{Err: protocol.ErrIntOverflow}, "int_overflow"},
		{fmt.Errorf("%w: 9 bytes", stream.ErrBufferLimit), "buffer_limit"},
		{&protocol.EncodeError{Err: protocol.ErrNilMessage}, "nil_message"},
		{&protocol.EncodeError{Kind: protocol.KindData, Err: io.ErrClosedPipe}, "transport"},
		{errors.New("boom"), "other"},
	}
	for _, tc := range cases {
		if got := FailureReason(tc.err); got != tc.want {
			t.Fatalf("FailureReason(%v)=%q want %q", tc.err, got, tc.want)
		}
	}
}

func TestMiddlewareRecordsRoutePath(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop(), "/health"), RequestMetricsMiddleware("probe-mw"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/health", "/nope"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(httpRequests.WithLabelValues("probe-mw", "GET", "/health", "200")); got != 1 {
		t.Fatalf("health requests=%v want 1", got)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("probe-mw", "GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched requests=%v want 1", got)
	}
}
