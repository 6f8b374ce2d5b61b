package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/w-h-a/vox/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type httpServer struct {
	options server.Options
	handler http.Handler
	srv     *http.Server
	addr    string
	errCh   chan error
	mtx     sync.RWMutex
}

func (s *httpServer) Options() server.Options {
	return s.options
}

func (s *httpServer) Handle(handler any) error {
	h, ok := handler.(http.Handler)
	if !ok {
		return fmt.Errorf("http server needs an http.Handler, got %T", handler)
	}

	if ms, ok := MiddlewareFrom(s.options.Context); ok {
		for i := len(ms) - 1; i >= 0; i-- {
			h = ms[i](h)
		}
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.handler = otelhttp.NewHandler(h, s.options.Name)

	return nil
}

func (s *httpServer) Start() error {
	listener, err := net.Listen("tcp", s.options.Address)
	if err != nil {
		return err
	}

	if err := s.startOn(listener); err != nil {
		listener.Close()
		return err
	}

	return nil
}

func (s *httpServer) startOn(listener net.Listener) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.handler == nil {
		return errors.New("no handler registered")
	}

	if s.srv != nil {
		return errors.New("server already started")
	}

	s.addr = listener.Addr().String()

	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(context.Background(), "http server stopped", "error", err)
			s.errCh <- err
		}
		close(s.errCh)
	}()

	slog.InfoContext(context.Background(), "http server listening", "name", s.options.Name, "address", s.addr)

	return nil
}

func (s *httpServer) Stop(ctx context.Context) error {
	s.mtx.RLock()
	srv := s.srv
	s.mtx.RUnlock()

	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	return <-s.errCh
}

func (s *httpServer) Errors() <-chan error {
	return s.errCh
}

func (s *httpServer) Address() string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.addr
}

func NewServer(opts ...server.Option) server.Server {
	options := server.NewOptions(opts...)

	return &httpServer{
		options: options,
		errCh:   make(chan error, 1),
	}
}
