package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

// service is the slice of *monitor.Monitor the HTTP API drives.
type service interface {
	Snapshot() types.Snapshot
	Status() types.Status
	SetConfig(types.ConfigPatch) (types.Config, error)
	Start()
	Stop()
	Interfaces(ctx context.Context) ([]string, error)
	Interval() time.Duration
}

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type server struct {
	svc     service
	rateLog string
	logger  *zap.Logger
}

func newRouter(svc service, gatherer prometheus.Gatherer, rateLog string, logger *zap.Logger) *gin.Engine {
	s := &server{svc: svc, rateLog: rateLog, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog)

	api := r.Group("/api")
	api.GET("/data", s.getData)
	api.GET("/config", s.getConfig)
	api.POST("/config", s.postConfig)
	api.POST("/start", s.postStart)
	api.POST("/stop", s.postStop)
	api.GET("/interfaces", s.getInterfaces)
	api.GET("/download-csv", s.downloadCSV)

	r.GET("/ws", s.streamSnapshots)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return r
}

func (s *server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("http request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("latency", time.Since(start)))
}

func (s *server) getData(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Snapshot())
}

func (s *server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Status())
}

func (s *server) postConfig(c *gin.Context) {
	var patch types.ConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := s.svc.SetConfig(patch)
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": verr.Field})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated", "interval": cfg.Interval, "window_size": cfg.WindowSize})
}

func (s *server) postStart(c *gin.Context) {
	s.svc.Start()
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (s *server) postStop(c *gin.Context) {
	s.svc.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (s *server) getInterfaces(c *gin.Context) {
	names, err := s.svc.Interfaces(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"interfaces": names})
}

func (s *server) downloadCSV(c *gin.Context) {
	if _, err := os.Stat(s.rateLog); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "CSV file not found"})
		return
	}
	c.FileAttachment(s.rateLog, filepath.Base(s.rateLog))
}

// streamSnapshots pushes a snapshot every sampling interval until the client
// goes away or the request context ends.
func (s *server) streamSnapshots(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer ws.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("websocket read", zap.Error(err))
				}
				return
			}
		}
	}()

	ctx := c.Request.Context()
	for {
		_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := ws.WriteJSON(s.svc.Snapshot()); err != nil {
			s.logger.Debug("websocket write", zap.Error(err))
			return
		}
		select {
		case <-time.After(s.svc.Interval()):
		case <-gone:
			return
		case <-ctx.Done():
			return
		}
	}
}

// serve runs the HTTP server until ctx is cancelled.
func serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// websocket streams observe shutdown through their request context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
