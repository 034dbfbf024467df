package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/danmuck/edgetun/internal/auth"
	"github.com/danmuck/edgetun/internal/protocol"
	"github.com/danmuck/edgetun/internal/protocol/stream"
	"github.com/gorilla/websocket"
)

// Client is the controller side of a probe session.
type Client struct {
	conn io.ReadWriteCloser
	r    *stream.Reader
	w    *stream.Writer
}

// DialOption adjusts Dial.
type DialOption func(*dialOptions)

type dialOptions struct {
	token string
}

// WithToken presents token to a websocket tunnel endpoint. It has no
// effect on TCP targets.
func WithToken(token string) DialOption {
	return func(o *dialOptions) { o.token = token }
}

// Dial connects to target. ws:// and wss:// URLs use the websocket tunnel
// endpoint; anything else is dialed as TCP host:port.
func Dial(ctx context.Context, target string, cfg stream.Config, opts ...DialOption) (*Client, error) {
	var o dialOptions
	for _, opt := range opts {
		opt(&o)
	}
	if strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://") {
		ws, resp, err := websocket.DefaultDialer.DialContext(ctx, target, auth.Header(o.token))
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("probe: dial %s: %w", target, err)
		}
		return NewClient(stream.NewWebSocketConn(ws), cfg), nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, fmt.Errorf("probe: dial %s: %w", target, err)
	}
	return NewClient(conn, cfg), nil
}

// NewClient wraps an established transport.
func NewClient(conn io.ReadWriteCloser, cfg stream.Config) *Client {
	return &Client{
		conn: conn,
		r:    stream.NewReader(conn, cfg),
		w:    stream.NewWriter(conn, cfg),
	}
}

func (c *Client) Send(msgs ...protocol.Message) error {
	return c.w.WriteMessages(msgs...)
}

func (c *Client) Receive() (protocol.Message, error) {
	return c.r.ReadMessage()
}

// Observe attaches obs to both directions.
func (c *Client) Observe(obs stream.Observer) *Client {
	c.r.Observe(obs)
	c.w.Observe(obs)
	return c
}

func (c *Client) Close() error {
	return c.conn.Close()
}
