package stream

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/edgetun/internal/protocol"
	"github.com/danmuck/edgetun/internal/testutil/testlog"
	"github.com/gorilla/websocket"
)

type countingObserver struct {
	mu       sync.Mutex
	decoded  map[protocol.Kind]int
	encoded  map[protocol.Kind]int
	bytesIn  int
	bytesOut int
	decErrs  []error
	encErrs  []error
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		decoded: make(map[protocol.Kind]int),
		encoded: make(map[protocol.Kind]int),
	}
}

func (o *countingObserver) FrameDecoded(kind protocol.Kind, size int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decoded[kind]++
	o.bytesIn += size
}

func (o *countingObserver) FrameEncoded(kind protocol.Kind, size int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.encoded[kind]++
	o.bytesOut += size
}

func (o *countingObserver) DecodeFailed(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decErrs = append(o.decErrs, err)
}

func (o *countingObserver) EncodeFailed(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.encErrs = append(o.encErrs, err)
}

// oneByteReader returns at most one byte per Read.
type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func encodeAll(t *testing.T, msgs ...protocol.Message) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, m := range msgs {
		if err := protocol.Encode(&buf, m); err != nil {
			t.Fatalf("encode %v: %v", m.Kind(), err)
		}
	}
	return buf.Bytes()
}

func TestReaderOneByteChunks(t *testing.T) {
	testlog.Start(t)

	msgs := []protocol.Message{
		protocol.NewConnection{ConnectionID: 1, Port: 8080},
		protocol.Data{ConnectionID: 1, Data: bytes.Repeat([]byte{0xab}, 300)},
		protocol.Log{Message: "hello"},
		protocol.ConnectionClose{ConnectionID: 1},
		protocol.Close{},
	}
	raw := encodeAll(t, msgs...)

	obs := newCountingObserver()
	r := NewReader(oneByteReader{bytes.NewReader(raw)}, DefaultConfig()).Observe(obs)
	for i, want := range msgs {
		got, err := r.ReadMessage()
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		if !protocol.Equal(got, want) {
			t.Fatalf("message %d mismatch: got=%#v want=%#v", i, got, want)
		}
	}
	if _, err := r.ReadMessage(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after last frame, got %v", err)
	}
	if obs.bytesIn != len(raw) {
		t.Fatalf("observer saw %d bytes, want %d", obs.bytesIn, len(raw))
	}
	if obs.decoded[protocol.KindData] != 1 {
		t.Fatalf("expected one data frame, got %d", obs.decoded[protocol.KindData])
	}
}

func TestReaderTruncatedFrame(t *testing.T) {
	testlog.Start(t)

	raw := encodeAll(t, protocol.Data{ConnectionID: 3, Data: []byte("abcdef")})
	r := NewReader(bytes.NewReader(raw[:len(raw)-2]), DefaultConfig())
	if _, err := r.ReadMessage(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if r.Buffered() != len(raw)-2 {
		t.Fatalf("partial bytes should stay buffered, got %d", r.Buffered())
	}
}

func TestReaderMalformedFrame(t *testing.T) {
	testlog.Start(t)

	obs := newCountingObserver()
	r := NewReader(bytes.NewReader([]byte{9, 0, 0}), DefaultConfig()).Observe(obs)
	_, err := r.ReadMessage()
	if !errors.Is(err, protocol.ErrMalformed) || !errors.Is(err, protocol.ErrUnknownTag) {
		t.Fatalf("expected unknown tag error, got %v", err)
	}
	if len(obs.decErrs) != 1 {
		t.Fatalf("expected one decode failure, got %d", len(obs.decErrs))
	}
}

func TestReaderBufferLimit(t *testing.T) {
	testlog.Start(t)

	// Data frame announcing 4096 payload bytes.
	raw := encodeAll(t, protocol.Data{ConnectionID: 1, Data: make([]byte, 4096)})
	cfg := DefaultConfig()
	cfg.MaxBufferedBytes = 64
	cfg.ReadChunkSize = 16

	r := NewReader(bytes.NewReader(raw), cfg)
	_, err := r.ReadMessage()
	if !errors.Is(err, ErrBufferLimit) {
		t.Fatalf("expected ErrBufferLimit, got %v", err)
	}
	if r.Buffered() != 64 {
		t.Fatalf("reader should stop exactly at the cap, buffered=%d", r.Buffered())
	}
}

func TestWriterEncodesAndObserves(t *testing.T) {
	testlog.Start(t)

	var buf bytes.Buffer
	obs := newCountingObserver()
	w := NewWriter(&buf, DefaultConfig()).Observe(obs)
	if err := w.WriteMessages(protocol.Log{Message: "a"}, protocol.Close{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{4, 1, 'a', 0}) {
		t.Fatalf("unexpected bytes: %x", buf.Bytes())
	}
	if obs.encoded[protocol.KindLog] != 1 || obs.encoded[protocol.KindClose] != 1 || obs.bytesOut != 4 {
		t.Fatalf("unexpected observer state: %+v", obs.encoded)
	}
	if err := w.WriteMessage(nil); !errors.Is(err, protocol.ErrNilMessage) {
		t.Fatalf("expected ErrNilMessage, got %v", err)
	}
	if len(obs.encErrs) != 1 {
		t.Fatalf("expected one encode failure, got %d", len(obs.encErrs))
	}
}

type shortWriter struct{}

func (shortWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriterWrapsTransportError(t *testing.T) {
	testlog.Start(t)

	w := NewWriter(shortWriter{}, DefaultConfig())
	err := w.WriteMessage(protocol.ConnectionClose{ConnectionID: 2})
	var encErr *protocol.EncodeError
	if !errors.As(err, &encErr) || encErr.Kind != protocol.KindConnectionClose {
		t.Fatalf("expected EncodeError for connection_close, got %v", err)
	}
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestPipeRoundTripConcurrentWriters(t *testing.T) {
	testlog.Start(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cfg := DefaultConfig()
	cfg.ReadTimeout = 5 * time.Second
	w := NewWriter(client, cfg)
	r := NewReader(server, cfg)

	const perWriter = 25
	var wg sync.WaitGroup
	for id := uint16(1); id <= 4; id++ {
		wg.Add(1)
		go func(id uint16) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				payload := []byte(strings.Repeat("x", int(id)*10+i))
				if err := w.WriteMessage(protocol.Data{ConnectionID: id, Data: payload}); err != nil {
					t.Errorf("writer %d: %v", id, err)
					return
				}
			}
		}(id)
	}

	seen := make(map[uint16]int)
	for i := 0; i < 4*perWriter; i++ {
		msg, err := r.ReadMessage()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		d, ok := msg.(protocol.Data)
		if !ok {
			t.Fatalf("unexpected message %T", msg)
		}
		want := int(d.ConnectionID)*10 + seen[d.ConnectionID]
		if len(d.Data) != want {
			t.Fatalf("conn %d frame %d: len=%d want %d", d.ConnectionID, seen[d.ConnectionID], len(d.Data), want)
		}
		seen[d.ConnectionID]++
	}
	wg.Wait()
}

func TestWebSocketConnSplitsAndJoinsFrames(t *testing.T) {
	testlog.Start(t)

	raw := encodeAll(t,
		protocol.NewConnection{ConnectionID: 7, Port: 22},
		protocol.Data{ConnectionID: 7, Data: []byte("ssh-banner")},
		protocol.Close{},
	)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conn := NewWebSocketConn(ws)
		defer conn.Close()
		// Split at arbitrary points so frames straddle websocket messages.
		_ = ws.WriteMessage(websocket.TextMessage, []byte("ignored"))
		for _, part := range [][]byte{raw[:1], raw[1:6], raw[6:]} {
			if _, err := conn.Write(part); err != nil {
				t.Errorf("write: %v", err)
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn := NewWebSocketConn(ws)
	defer conn.Close()

	r := NewReader(conn, DefaultConfig())
	want := []protocol.Kind{protocol.KindNewConnection, protocol.KindData, protocol.KindClose}
	for i, kind := range want {
		msg, err := r.ReadMessage()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if msg.Kind() != kind {
			t.Fatalf("read %d: kind=%s want %s", i, msg.Kind(), kind)
		}
	}
	if _, err := r.ReadMessage(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF on normal close, got %v", err)
	}
}
