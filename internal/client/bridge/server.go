// Package bridge connects the coordinator to the browser extension over a
// local WebSocket. The extension reports navigations and images and answers
// extraction requests; the bridge turns them into calls on the coordinator.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/quickpage/internal/client/models"
	"github.com/dmitrijs2005/quickpage/internal/logging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var (
	ErrNotConnected = errors.New("no extension connected")
	ErrDisconnected = errors.New("extension disconnected")
)

// Handler receives host-platform signals.
type Handler interface {
	TabUpdated(ctx context.Context, tab models.Tab)
	IncludeImage(ctx context.Context, imageURL string)
}

type Options struct {
	ExtractTimeout time.Duration
	MaxMessageSize int64
	PingInterval   time.Duration
}

func (o *Options) defaults() {
	if o.ExtractTimeout <= 0 {
		o.ExtractTimeout = 10 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 8 << 20
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
}

type extractReply struct {
	text string
	err  error
}

// Server serves /bridge and /health. One extension connection is active at
// a time; a new one replaces it.
type Server struct {
	echo     *echo.Echo
	upgrader websocket.Upgrader
	handler  Handler
	opts     Options
	log      logging.Logger

	mu      sync.Mutex
	conn    *connection
	pending map[string]chan extractReply
	tab     models.Tab
	hasTab  bool
}

func NewServer(handler Handler, opts Options, log logging.Logger) *Server {
	opts.defaults()
	if log == nil {
		log = logging.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo: e,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// the listener is bound to loopback; extension origins vary per install
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		handler: handler,
		opts:    opts,
		log:     log,
		pending: make(map[string]chan extractReply),
	}

	e.GET("/health", s.handleHealth)
	e.GET("/bridge", s.handleWebSocket)
	return s
}

// SetHandler replaces the signal handler. It must be called before Start.
func (s *Server) SetHandler(h Handler) { s.handler = h }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.mu.Unlock()
	if c != nil {
		c.close()
	}
	return s.echo.Shutdown(ctx)
}

// ServeHTTP exposes the routes for embedding and tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Connected reports whether an extension is attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// ActiveTab returns the last tab reported or set.
func (s *Server) ActiveTab() (models.Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab, s.hasTab
}

// SetActiveTab records tab as active without an extension, for pages opened
// from the command line.
func (s *Server) SetActiveTab(tab models.Tab) {
	s.mu.Lock()
	s.tab, s.hasTab = tab, true
	s.mu.Unlock()
}

// Extract asks the extension for the text of tab and waits for the answer.
func (s *Server) Extract(ctx context.Context, tab models.Tab) (string, error) {
	s.mu.Lock()
	c := s.conn
	if c == nil {
		s.mu.Unlock()
		return "", ErrNotConnected
	}
	id := uuid.NewString()
	reply := make(chan extractReply, 1)
	s.pending[id] = reply
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	msg := ExtractMessage{BaseMessage: BaseMessage{Type: TypeExtract}, RequestID: id, TabID: tab.ID}
	if err := c.sendJSON(msg); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.ExtractTimeout)
	defer cancel()
	select {
	case r := <-reply:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("extract tab %d: %w", tab.ID, ctx.Err())
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"connected": s.Connected(),
	})
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn(c.Request().Context(), "websocket upgrade failed", "error", err)
		return nil
	}
	ws.SetReadLimit(s.opts.MaxMessageSize)

	conn := newConnection(ws)
	s.mu.Lock()
	prev := s.conn
	s.conn = conn
	s.mu.Unlock()
	if prev != nil {
		s.log.Info(context.Background(), "replacing extension connection")
		prev.close()
	}
	s.log.Info(context.Background(), "extension connected", "remote", c.RealIP())

	go conn.writePump(s.opts.PingInterval)
	go s.readPump(conn)
	return nil
}

func (s *Server) readPump(conn *connection) {
	ctx := context.Background()
	defer func() {
		conn.close()
		s.detach(conn)
	}()

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn(ctx, "extension connection error", "error", err)
			}
			return
		}
		s.handleMessage(ctx, data)
	}
}

// detach forgets conn and fails the extractions waiting on it.
func (s *Server) detach(conn *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return
	}
	s.conn = nil
	for id, ch := range s.pending {
		ch <- extractReply{err: ErrDisconnected}
		delete(s.pending, id)
	}
	s.log.Info(context.Background(), "extension disconnected")
}

func (s *Server) handleMessage(ctx context.Context, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.log.Warn(ctx, "invalid bridge frame", "error", err)
		return
	}

	switch base.Type {
	case TypeTabUpdated:
		var msg TabUpdatedMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.URL == "" {
			s.log.Warn(ctx, "invalid tab_updated frame")
			return
		}
		tab := models.Tab{ID: msg.TabID, URL: msg.URL}
		s.SetActiveTab(tab)
		if s.handler != nil {
			s.handler.TabUpdated(ctx, tab)
		}

	case TypeExtractResult:
		var msg ExtractResultMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn(ctx, "invalid extract_result frame")
			return
		}
		s.mu.Lock()
		ch, ok := s.pending[msg.RequestID]
		delete(s.pending, msg.RequestID)
		s.mu.Unlock()
		if !ok {
			s.log.Debug(ctx, "late extract_result", "request_id", msg.RequestID)
			return
		}
		r := extractReply{text: msg.Text}
		if msg.Error != "" {
			r.err = errors.New(msg.Error)
		}
		ch <- r

	case TypeIncludeImage:
		var msg IncludeImageMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.ImageURL == "" {
			s.log.Warn(ctx, "invalid include_image frame")
			return
		}
		if s.handler != nil {
			s.handler.IncludeImage(ctx, msg.ImageURL)
		}

	default:
		s.log.Warn(ctx, "unknown bridge frame", "type", base.Type)
	}
}
