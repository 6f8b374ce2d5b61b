package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/vox/server"
)

func TestServerLifecycle(t *testing.T) {
	var order []string

	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	srv := NewServer(
		server.WithAddress("127.0.0.1:0"),
		WithMiddleware(Recoverer, mark("outer"), mark("inner")),
	)

	require.Error(t, srv.Start(), "start without a handler")
	require.Error(t, srv.Handle("not a handler"))

	require.NoError(t, srv.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/panic" {
			panic("boom")
		}
		_, _ = io.WriteString(w, "ok")
	})))

	require.NoError(t, srv.Start())

	rsp, err := http.Get("http://" + srv.Address() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(rsp.Body)
	rsp.Body.Close()

	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, []string{"outer", "inner"}, order)

	rsp, err = http.Get("http://" + srv.Address() + "/panic")
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, rsp.StatusCode)

	require.NoError(t, srv.Stop(context.Background()))

	_, open := <-srv.Errors()
	assert.False(t, open, "errors close after a clean stop")
}

type brokenListener struct{}

func (brokenListener) Accept() (net.Conn, error) { return nil, errors.New("listener broken") }
func (brokenListener) Close() error              { return nil }
func (brokenListener) Addr() net.Addr            { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func TestServerReportsServeFailure(t *testing.T) {
	srv := NewServer().(*httpServer)

	require.NoError(t, srv.Handle(http.NotFoundHandler()))
	require.NoError(t, srv.startOn(brokenListener{}))

	select {
	case err := <-srv.Errors():
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listener broken")
	case <-time.After(5 * time.Second):
		t.Fatal("serve failure was not reported")
	}
}
