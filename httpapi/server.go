// Package httpapi is the HTTP view surface of the storefront. Every
// mutating request publishes the matching view intent on the event bus and
// answers with the state the intent produced.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoCodeAlone/storefront"
	"github.com/GoCodeAlone/storefront/app"
	"github.com/GoCodeAlone/storefront/eventbus"
	"github.com/GoCodeAlone/storefront/order"
)

// Server errors
var (
	ErrNilStateReader   = errors.New("http api requires a state reader")
	ErrServerNotStarted = errors.New("http server not started")
	ErrServerStarted    = errors.New("http server already started")
	ErrNotInitialized   = errors.New("http api module not initialized")
)

// StateReader returns a consistent copy of the storefront state.
type StateReader interface {
	Snapshot(ctx context.Context) (app.Snapshot, error)
}

// Server is the storefront module serving the HTTP API.
type Server struct {
	state  StateReader
	bus    eventbus.EventBus
	logger storefront.Logger
	config storefront.ServerConfig
	router *chi.Mux

	subscriptions []eventbus.Subscription
	// pending receives the outcome of the submission requested over HTTP.
	// The dispatch lock guards the field.
	pending chan submission

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

type submission struct {
	Result *order.Result `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// New creates the HTTP module. state is usually the *app.App the module is
// registered with.
func New(state StateReader) (*Server, error) {
	if state == nil {
		return nil, ErrNilStateReader
	}
	return &Server{state: state, logger: storefront.NopLogger{}}, nil
}

// Name returns the module name.
func (s *Server) Name() string {
	return "httpapi"
}

// Init builds the router and subscribes to order outcomes.
func (s *Server) Init(a storefront.Application) error {
	s.bus = a.Bus()
	s.logger = a.Logger()
	if cfg := a.Config(); cfg != nil {
		s.config = cfg.Server
	}

	outcomes := map[string]eventbus.EventHandler{
		order.TopicSubmitted: s.recordSubmitted,
		order.TopicFailed:    s.recordFailed,
	}
	for _, topic := range []string{order.TopicSubmitted, order.TopicFailed} {
		sub, err := s.bus.Subscribe(topic, outcomes[topic])
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		s.subscriptions = append(s.subscriptions, sub)
	}

	s.router = s.routes()
	s.logger.Debug("HTTP routes registered", "module", s.Name())
	return nil
}

func (s *Server) recordSubmitted(_ context.Context, e eventbus.Event) error {
	submitted, err := eventbus.PayloadAs[order.Submitted](e)
	if err != nil {
		return err
	}
	s.deliver(submission{Result: &submitted.Result})
	return nil
}

func (s *Server) recordFailed(_ context.Context, e eventbus.Event) error {
	failed, err := eventbus.PayloadAs[order.Failed](e)
	if err != nil {
		return err
	}
	s.deliver(submission{Error: failed.Error})
	return nil
}

// deliver hands an outcome to the waiting request, if any. Submissions
// started elsewhere have nobody waiting.
func (s *Server) deliver(outcome submission) {
	if s.pending == nil {
		return
	}
	s.pending <- outcome
	s.pending = nil
}

// Handler returns the router. It is nil before Init.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return ErrNotInitialized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return ErrServerStarted
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	s.listener = listener
	s.done = make(chan struct{})
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}(s.server, s.done)

	s.logger.Info("HTTP server started", "address", listener.Addr().String())
	return nil
}

// Addr returns the address the server listens on, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully within the shutdown timeout and
// drops the bus subscriptions.
func (s *Server) Stop(ctx context.Context) error {
	for _, sub := range s.subscriptions {
		_ = s.bus.Unsubscribe(sub)
	}
	s.subscriptions = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return ErrServerNotStarted
	}

	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	s.logger.Info("Stopping HTTP server", "timeout", s.config.ShutdownTimeout)
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down HTTP server: %w", err)
	}
	<-s.done

	s.server = nil
	s.listener = nil
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"requestID", middleware.GetReqID(r.Context()))
	})
}
