package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	handler "github.com/w-h-a/vox/internal/handler/http"
	"github.com/w-h-a/vox/server"
	httpserver "github.com/w-h-a/vox/server/http"
)

type ServeCmd struct {
	Address string `help:"Address to listen on" default:":8080" env:"VOX_ADDRESS"`
}

func (c *ServeCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := g.open(ctx, true)
	if err != nil {
		return err
	}
	defer engine.Close()

	m, err := g.manifest()
	if err != nil {
		return err
	}

	srv := httpserver.NewServer(
		server.WithName("vox"),
		server.WithAddress(c.Address),
		httpserver.WithMiddleware(httpserver.Recoverer, httpserver.RequestLogger),
	)

	if err := srv.Handle(handler.NewRouter(handler.NewHandler(engine, m))); err != nil {
		return err
	}

	return serveUntilDone(ctx, srv)
}

// serveUntilDone runs srv until ctx ends or the server fails on its own.
func serveUntilDone(ctx context.Context, srv server.Server) error {
	if err := srv.Start(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case err := <-srv.Errors():
		if err != nil {
			return err
		}
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdown)
}
