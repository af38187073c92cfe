// Package server exposes a Runner over HTTP so that a sampling loop in
// another process can ask for token masks and commit tokens.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/DataSpeaksTech/aici/envconfig"
	"github.com/DataSpeaksTech/aici/host"
	"github.com/DataSpeaksTech/aici/library"
	"github.com/DataSpeaksTech/aici/logutil"
	"github.com/DataSpeaksTech/aici/runner"
)

type Server struct {
	runner  *runner.Runner
	library *library.Library
	vars    *host.MemoryStorage
}

// New returns a server for r. lib may be nil, in which case only inline
// constraints can be created.
func New(r *runner.Runner, lib *library.Library, vars *host.MemoryStorage) *Server {
	if vars == nil {
		vars = host.NewMemoryStorage()
	}
	return &Server{runner: r, library: lib, vars: vars}
}

const requestIDHeader = "X-Request-ID"

// requestID tags every request with an id, reusing the caller's when
// given, and puts a logger carrying it into the request context.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(requestIDHeader, id)

		logger := slog.Default().With("request_id", id)
		c.Request = c.Request.WithContext(logutil.WithLogger(c.Request.Context(), logger))

		start := time.Now()
		c.Next()

		logger.Debug("request", "method", c.Request.Method, "path", c.FullPath(), "status", c.Writer.Status(), "duration", time.Since(start))
	}
}

func (s *Server) GenerateRoutes() http.Handler {
	config := cors.DefaultConfig()
	config.AllowWildcard = true
	config.AllowBrowserExtensions = true
	config.AllowHeaders = []string{"Authorization", "Content-Type", "User-Agent", "Accept", "X-Requested-With", requestIDHeader}
	config.ExposeHeaders = []string{requestIDHeader}
	config.AllowOrigins = envconfig.Origins()

	r := gin.New()
	r.Use(gin.Recovery(), cors.New(config), requestID())

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		r.Handle(method, "/", func(c *gin.Context) {
			c.String(http.StatusOK, "aici is running")
		})
	}

	v1 := r.Group("/v1")
	v1.POST("/tokenize", s.TokenizeHandler)
	v1.POST("/detokenize", s.DetokenizeHandler)

	v1.POST("/sequences", s.CreateHandler)
	v1.GET("/sequences/:id", s.SequenceHandler)
	v1.POST("/sequences/:id/fork", s.ForkHandler)
	v1.GET("/sequences/:id/step", s.StepHandler)
	v1.POST("/sequences/:id/commit", s.CommitHandler)
	v1.DELETE("/sequences/:id", s.DropHandler)

	v1.GET("/vars/:name", s.GetVarHandler)
	v1.PUT("/vars/:name", s.SetVarHandler)
	v1.POST("/vars/:name", s.AppendVarHandler)

	v1.GET("/library", s.LibraryHandler)

	return r
}

// Serve handles requests on ln until ctx is done.
func Serve(ctx context.Context, ln net.Listener, s *Server) error {
	srvr := &http.Server{
		Handler:           s.GenerateRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("listening", "addr", ln.Addr(), "sequences", s.runner.Len(), "vocab", s.runner.Trie().VocabSize())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srvr.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srvr.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
