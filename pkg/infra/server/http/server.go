// Package http serves a gin engine over TCP or a Unix domain socket.
package http

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	apierrors "github.com/kart-io/sensei/pkg/errors"
	"github.com/kart-io/sensei/pkg/infra/server"
	options "github.com/kart-io/sensei/pkg/options/server/http"
	"github.com/kart-io/sensei/pkg/response"
)

var _ server.Runnable = (*Server)(nil)

// Server is the HTTP server implementation.
type Server struct {
	opts   *options.Options
	engine *gin.Engine

	mu         sync.Mutex
	server     *http.Server
	listener   net.Listener
	socketPath string
}

// NewEngine returns a gin engine without default middleware and with a
// JSON 404 for unknown routes.
func NewEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})
	return engine
}

// NewServer creates a new HTTP server for engine.
func NewServer(opts *options.Options, engine *gin.Engine) *Server {
	if opts == nil {
		opts = options.NewOptions()
	}
	if engine == nil {
		engine = NewEngine()
	}
	return &Server{opts: opts, engine: engine}
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once started. For unix sockets it is the
// socket path.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	if s.socketPath != "" {
		return s.socketPath
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves in the background.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("http server already started")
	}

	ln, err := s.listen()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}
	s.server = srv
	s.listener = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("http server stopped unexpectedly", "addr", s.opts.Addr, "error", err.Error())
		}
	}()

	logger.Infow("HTTP server listening", "addr", s.opts.Addr, "network", ln.Addr().Network())
	return nil
}

func (s *Server) listen() (net.Listener, error) {
	if !s.opts.IsUnix() {
		ln, err := net.Listen("tcp", s.opts.Addr)
		if err != nil {
			return nil, fmt.Errorf("listen tcp %s: %w", s.opts.Addr, err)
		}
		return ln, nil
	}

	path := s.opts.SocketPath()
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen unix %s: %w", path, err)
	}
	if err := os.Chmod(path, fs.FileMode(s.opts.SocketMode)); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("chmod socket %s: %w", path, err)
	}
	s.socketPath = path
	return ln, nil
}

// removeStaleSocket deletes a socket left behind by a previous process.
// Anything other than a socket at path is left alone.
func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat socket %s: %w", path, err)
	}
	if fi.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("refusing to replace non-socket file %s", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	logger.Infow("removed stale socket", "path", path)
	return nil
}

// Stop stops the HTTP server gracefully and removes the socket file.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, path := s.server, s.socketPath
	s.server, s.listener, s.socketPath = nil, nil, ""
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	if path != "" {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			err = errors.Join(err, fmt.Errorf("remove socket %s: %w", path, rmErr))
		}
	}
	return err
}
