// Package transport serves the command protocol over WebSocket connections.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shehryarbajwa/bluetooth-emulator/internal/bidi"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/bluetooth"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/events"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/protolog"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/ratelimit"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

var errRateLimited = &bidi.Error{Code: bidi.CodeUnknownError, Message: "rate limit exceeded"}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server accepts protocol connections.
type Server struct {
	dispatcher *bidi.Dispatcher
	bus        *events.Bus
	limiter    *ratelimit.Limiter
	recorder   protolog.Recorder
	logger     *slog.Logger
}

// NewServer creates a WebSocket protocol server. limiter and recorder may
// be nil.
func NewServer(d *bidi.Dispatcher, bus *events.Bus, limiter *ratelimit.Limiter, recorder protolog.Recorder, logger *slog.Logger) *Server {
	if recorder == nil {
		recorder = protolog.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dispatcher: d,
		bus:        bus,
		limiter:    limiter,
		recorder:   recorder,
		logger:     logger,
	}
}

type conn struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	subs *subscriptions
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		subs: newSubscriptions(),
	}
}

// shutdown marks the connection as closing. Either the reader or a failed
// writer may call it first.
func (c *conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// ServeHTTP upgrades the request and serves commands until the peer
// disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("transport: upgrade failed", "error", err)
		return
	}

	c := newConn(ws)
	s.logger.Info("transport: client connected", "conn", c.id, "remote", r.RemoteAddr)

	sub := s.bus.Subscribe()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.writeLoop(c)
	}()
	go func() {
		defer wg.Done()
		s.forwardEvents(c, sub.C())
	}()

	s.readLoop(r.Context(), c)

	c.shutdown()
	sub.Close()
	wg.Wait()
	if s.limiter != nil {
		s.limiter.Forget(c.id)
	}
	if d := sub.Dropped(); d > 0 {
		s.logger.Warn("transport: events dropped for connection", "conn", c.id, "dropped", d)
	}
	s.logger.Info("transport: client disconnected", "conn", c.id)
}

func (s *Server) readLoop(ctx context.Context, c *conn) {
	ctx = context.WithoutCancel(ctx)
	for {
		select {
		case <-c.done:
			return
		default:
		}
		kind, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("transport: read failed", "conn", c.id, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		cmd, err := bidi.ParseCommand(frame)
		s.record(c, protolog.Inbound, cmd.Method, frame)
		if err != nil {
			s.reply(c, cmd.Method, bidi.Failure(cmd.ID, err))
			continue
		}
		if s.limiter != nil && !s.limiter.Allow(c.id) {
			s.reply(c, cmd.Method, bidi.Failure(cmd.ID, errRateLimited))
			continue
		}
		s.reply(c, cmd.Method, s.handle(ctx, c, cmd))
	}
}

func (s *Server) handle(ctx context.Context, c *conn, cmd bidi.Command) any {
	var (
		result any
		err    error
	)
	switch cmd.Method {
	case MethodSubscribe:
		c.mu.Lock()
		result, err = c.subs.subscribe(cmd.Params)
		c.mu.Unlock()
	case MethodUnsubscribe:
		c.mu.Lock()
		result, err = c.subs.unsubscribe(cmd.Params)
		c.mu.Unlock()
	case MethodStatus:
		result = statusResult{Ready: true}
	default:
		return s.dispatcher.Respond(ctx, cmd)
	}
	if err != nil {
		return bidi.Failure(cmd.ID, err)
	}
	return bidi.Success(*cmd.ID, result)
}

// reply queues a response. Responses are never dropped; it gives up only
// when the connection is closing.
func (s *Server) reply(c *conn, method string, msg any) {
	frame, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("transport: encode response", "conn", c.id, "error", err)
		return
	}
	select {
	case c.send <- frame:
		s.record(c, protolog.Outbound, method, frame)
	case <-c.done:
	}
}

func (s *Server) forwardEvents(c *conn, in <-chan bluetooth.Event) {
	for ev := range in {
		c.mu.Lock()
		want := c.subs.wants(ev)
		c.mu.Unlock()
		if !want {
			continue
		}
		msg, ok := bidi.EventMessageFrom(ev)
		if !ok {
			continue
		}
		frame, err := json.Marshal(msg)
		if err != nil {
			s.logger.Error("transport: encode event", "conn", c.id, "error", err)
			continue
		}
		select {
		case c.send <- frame:
			s.record(c, protolog.Outbound, msg.Method, frame)
		case <-c.done:
		default:
			s.logger.Warn("transport: send queue full, dropping event", "conn", c.id, "method", msg.Method)
		}
	}
}

func (s *Server) writeLoop(c *conn) {
	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.logger.Warn("transport: write failed", "conn", c.id, "error", err)
				}
				c.shutdown()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *Server) record(c *conn, dir protolog.Direction, method string, frame []byte) {
	s.recorder.Record(protolog.Record{
		Time:      time.Now().UTC(),
		ConnID:    c.id,
		Direction: dir,
		Method:    method,
		Payload:   frame,
	})
}
