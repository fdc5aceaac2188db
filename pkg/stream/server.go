package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Server exposes the hub over HTTP:
//
//	GET /healthz   liveness
//	GET /snapshot  latest frame, ?format=msgpack for binary
//	GET /ws        websocket push of every frame, same format switch
type Server struct {
	hub    *Hub
	engine *gin.Engine
	lg     *slog.Logger
}

func NewServer(hub *Hub, lg *slog.Logger) *Server {
	if lg == nil {
		lg = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{hub: hub, engine: gin.New(), lg: lg.With(slog.String("component", "http"))}
	s.engine.Use(gin.Recovery(), cors.Default())
	s.engine.GET("/healthz", s.health)
	s.engine.GET("/snapshot", s.snapshot)
	s.engine.GET("/ws", s.subscribe)
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run listens on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.lg.Info("listening", slog.String("addr", addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) snapshot(c *gin.Context) {
	format, err := parseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f := s.hub.Latest()
	if f == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot yet"})
		return
	}
	if format == JSON {
		c.JSON(http.StatusOK, f)
		return
	}
	data, _, err := f.encode(format)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/msgpack", data)
}

func (s *Server) subscribe(c *gin.Context) {
	format, err := parseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.lg.Warn("websocket upgrade", slog.Any("err", err))
		return
	}
	cl := &client{id: uuid.NewString(), conn: conn, format: format, send: make(chan message, 64)}
	if !s.hub.join(cl) {
		conn.Close()
		return
	}
	go cl.writer()
	go cl.reader(s.hub)
}
