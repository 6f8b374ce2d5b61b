package utcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	goutcp "github.com/universal-tool-calling-protocol/go-utcp"
	"github.com/w-h-a/vox/executor"
)

const DefaultToolName = "device.run"

type utcpExecutor struct {
	options  executor.Options
	client   goutcp.UtcpClientInterface
	toolName string
}

func (e *utcpExecutor) Run(ctx context.Context, payload string) error {
	if e.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.options.Timeout)
		defer cancel()
	}

	raw, err := e.client.CallTool(ctx, e.toolName, map[string]any{
		"payload": payload,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", executor.ErrExecution, e.toolName, err)
	}

	return checkResult(raw)
}

// checkResult treats a result carrying an "error" field as a device failure.
func checkResult(raw any) error {
	var result map[string]any

	switch v := raw.(type) {
	case map[string]any:
		result = v
	case string:
		if err := json.Unmarshal([]byte(v), &result); err != nil {
			return nil
		}
	default:
		return nil
	}

	if msg, ok := result["error"]; ok && msg != nil && msg != "" {
		return fmt.Errorf("%w: %v", executor.ErrExecution, msg)
	}

	return nil
}

func NewExecutor(opts ...executor.Option) executor.Executor {
	options := executor.NewOptions(opts...)

	e := &utcpExecutor{
		options:  options,
		toolName: DefaultToolName,
	}

	if name, ok := ToolNameFrom(options.Context); ok && len(name) > 0 {
		e.toolName = name
	}

	if client, ok := UtcpClientFrom(options.Context); ok {
		e.client = client
		return e
	}

	providersPath := options.Location

	if isURL(providersPath) {
		tmpPath, err := writeProviders(providersPath)
		if err != nil {
			detail := "failed to write utcp providers file"
			slog.ErrorContext(context.Background(), detail, "error", err)
			panic(detail)
		}
		providersPath = tmpPath
		defer os.Remove(tmpPath)
	}

	client, err := goutcp.NewUTCPClient(
		context.Background(),
		&goutcp.UtcpClientConfig{
			ProvidersFilePath: providersPath,
		},
		nil,
		nil,
	)
	if err != nil {
		detail := "failed to create utcp client"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	e.client = client

	return e
}
