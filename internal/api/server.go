// Package api exposes the gateway over HTTP (tool calls, health, metrics and
// a websocket fill stream) and gRPC.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"brokergw/internal/config"
	"brokergw/internal/gateway"
	"brokergw/internal/metrics"
)

// ShutdownTimeout bounds graceful shutdown once the serve context ends.
const ShutdownTimeout = 5 * time.Second

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	gw       *gateway.Gateway
	hub      *Hub
	log      *zap.Logger
	httpAddr string
	grpcAddr string

	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
}

// NewServer creates a new Server configured from cfg. hub may be nil, in
// which case /ws is not served. An empty gRPC address disables gRPC.
func NewServer(cfg config.Server, gw *gateway.Gateway, hub *Hub, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		gw:       gw,
		hub:      hub,
		log:      log.With(zap.String("component", "api")),
		httpAddr: cfg.Addr(),
		grpcAddr: cfg.GRPCAddr(),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.grpcServer, s.health = newGRPCServer(gw, s.log)
	return s
}

// Handler returns the HTTP handler with CORS, request id and access log
// middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/call", s.handleCall).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	if s.hub != nil {
		r.HandleFunc("/ws", s.hub.HandleWebSocket)
	}
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.Use(requestID, s.accessLog)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})
	return c.Handler(r)
}

// GRPCServer returns the gRPC server so callers can serve it on a custom
// listener.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// ListenAndServe binds the configured addresses and serves until ctx is
// cancelled or a listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.httpAddr)
	}

	var grpcLn net.Listener
	if s.grpcAddr != "" {
		grpcLn, err = net.Listen("tcp", s.grpcAddr)
		if err != nil {
			httpLn.Close()
			return errors.Wrapf(err, "listening on %s", s.grpcAddr)
		}
	}
	return s.Serve(ctx, httpLn, grpcLn)
}

// Serve serves HTTP on httpLn and, when grpcLn is non-nil, gRPC on grpcLn.
// It blocks until ctx is cancelled or a server fails, then shuts everything
// down.
func (s *Server) Serve(ctx context.Context, httpLn, grpcLn net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	if s.hub != nil {
		g.Go(func() error {
			s.hub.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		s.log.Info("HTTP server listening", zap.String("addr", httpLn.Addr().String()))
		if err := s.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serving HTTP")
		}
		return nil
	})

	if grpcLn != nil {
		g.Go(func() error {
			s.log.Info("gRPC server listening", zap.String("addr", grpcLn.Addr().String()))
			if err := s.grpcServer.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return errors.Wrap(err, "serving gRPC")
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	err := s.httpServer.Shutdown(ctx)

	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
	return errors.Wrap(err, "shutting down HTTP")
}
