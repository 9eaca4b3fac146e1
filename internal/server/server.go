package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// CallbackServer hosts a [CallbackHandler] on the redirect URI's host:port
// for the duration of one authorization flow.
type CallbackServer struct {
	handler *CallbackHandler
	srv     *http.Server
	logger  *log.Logger
}

// NewCallbackServer builds a server listening on the host and port of the
// OAuth2 config's redirect URL, serving its path.
func NewCallbackServer(config *oauth2.Config, state string, logger *log.Logger) (*CallbackServer, error) {
	redirect, err := url.Parse(config.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI %q: %w", config.RedirectURL, err)
	}
	path := redirect.Path
	if path == "" {
		path = "/callback"
	}

	handler := NewCallbackHandler(config, state)

	mux := http.NewServeMux()
	mux.Handle(path, logRequests(logger, handler))

	return &CallbackServer{
		handler: handler,
		srv: &http.Server{
			Addr:              redirect.Host,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// Start begins listening in the background. Returns once the listener is
// bound, so the browser can be opened immediately after.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	s.logger.Debug("callback server listening", "addr", s.srv.Addr)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("callback server failed", "error", err)
		}
	}()
	return nil
}

// Wait blocks until the callback delivers a token or the context expires,
// then shuts the listener down.
func (s *CallbackServer) Wait(ctx context.Context) (*oauth2.Token, error) {
	defer s.shutdown()

	select {
	case result := <-s.handler.Result():
		if err := result.Error(); err != nil {
			return nil, err
		}
		return result.Token, nil
	case <-ctx.Done():
		s.handler.Cancel(ctx)
		return nil, fmt.Errorf("timed out waiting for authorization callback: %w", ctx.Err())
	}
}

func (s *CallbackServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("callback server shutdown", "error", err)
	}
}

// logRequests logs each callback hit at debug level.
func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("handled request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
