package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/danmuck/edgetun/internal/auth"
	"github.com/danmuck/edgetun/internal/observability"
	"github.com/danmuck/edgetun/internal/protocol/stream"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	// The tunnel is not a browser endpoint.
	CheckOrigin: func(*http.Request) bool { return true },
}

// AdminHandler returns the admin router: health, readiness, prometheus
// metrics and the websocket tunnel endpoint.
func (s *Service) AdminHandler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		gin.Recovery(),
		observability.RequestLogger(s.logger, "/health", "/ready", "/metrics"),
		observability.RequestMetricsMiddleware(s.cfg.ProbeID),
	)
	started := time.Now()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"probe":   s.cfg.ProbeID,
			"uptime":  time.Since(started).Round(time.Second).String(),
			"service": "edgetun-probe",
		})
	})
	r.GET("/ready", func(c *gin.Context) {
		status := http.StatusOK
		state := "ready"
		if !s.Ready() {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{
			"status":          state,
			"active_sessions": s.ActiveSessions(),
			"served_sessions": s.SessionsServed(),
			"max_sessions":    s.cfg.MaxSessions,
			"codec": gin.H{
				"byte_order":   s.cfg.Stream.Codec.ByteOrder.String(),
				"int_encoding": s.cfg.Stream.Codec.IntEncoding.String(),
			},
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	tunnel := []gin.HandlerFunc{s.handleTunnel}
	if s.cfg.TunnelToken != "" {
		tunnel = append([]gin.HandlerFunc{auth.Require(auth.StaticToken{Token: s.cfg.TunnelToken})}, tunnel...)
	}
	r.GET("/tunnel", tunnel...)
	return r
}

// SessionsServed returns the number of finished sessions.
func (s *Service) SessionsServed() uint64 {
	return s.served.Load()
}

func (s *Service) handleTunnel(c *gin.Context) {
	if s.closed.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrServiceClosed.Error()})
		return
	}
	if s.pool.Free() == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "probe at capacity"})
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn().Err(err).Msg("probe.tunnel upgrade failed")
		return
	}
	conn := stream.NewWebSocketConn(ws)
	remote := c.ClientIP()
	s.trackConn(conn)

	// Hijacked connections are closed through the tracked set on shutdown.
	ctx := context.WithoutCancel(c.Request.Context())
	done := make(chan struct{})
	err = s.pool.Submit(func() {
		defer close(done)
		defer s.untrackConn(conn)
		s.ServeConn(ctx, conn, TransportWebSocket, remote)
	})
	if err != nil {
		s.refuse(conn, TransportWebSocket, err)
		return
	}
	<-done
}
