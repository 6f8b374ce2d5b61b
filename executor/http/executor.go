package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/w-h-a/vox/executor"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type runRequest struct {
	Payload string `json:"payload"`
}

type runResponse struct {
	Error string `json:"error,omitempty"`
}

// httpExecutor posts payloads to a device bridge that speaks JSON.
type httpExecutor struct {
	options executor.Options
	client  *http.Client
}

func (e *httpExecutor) Run(ctx context.Context, payload string) error {
	body, err := json.Marshal(runRequest{Payload: payload})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.options.Location, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	rsp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", executor.ErrExecution, err)
	}
	defer rsp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(rsp.Body, 64<<10))

	if rsp.StatusCode == http.StatusConflict || rsp.StatusCode == http.StatusTooManyRequests {
		return executor.ErrBusy
	}

	var out runResponse
	_ = json.Unmarshal(data, &out)

	if rsp.StatusCode >= 300 {
		detail := out.Error
		if len(detail) == 0 {
			detail = strings.TrimSpace(string(data))
		}
		return fmt.Errorf("%w: bridge returned %d: %s", executor.ErrExecution, rsp.StatusCode, detail)
	}

	if len(out.Error) > 0 {
		return fmt.Errorf("%w: %s", executor.ErrExecution, out.Error)
	}

	return nil
}

func NewExecutor(opts ...executor.Option) executor.Executor {
	options := executor.NewOptions(opts...)

	if len(options.Location) == 0 {
		panic("missing location for http executor")
	}

	return &httpExecutor{
		options: options,
		client: &http.Client{
			Timeout:   options.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}
