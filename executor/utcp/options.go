package utcp

import (
	"context"

	goutcp "github.com/universal-tool-calling-protocol/go-utcp"
	"github.com/w-h-a/vox/executor"
)

type utcpClientKey struct{}

func WithUtcpClient(client goutcp.UtcpClientInterface) executor.Option {
	return func(o *executor.Options) {
		o.Context = context.WithValue(o.Context, utcpClientKey{}, client)
	}
}

func UtcpClientFrom(ctx context.Context) (goutcp.UtcpClientInterface, bool) {
	client, ok := ctx.Value(utcpClientKey{}).(goutcp.UtcpClientInterface)
	return client, ok
}

type toolNameKey struct{}

// WithToolName names the remote tool that accepts payloads.
func WithToolName(name string) executor.Option {
	return func(o *executor.Options) {
		o.Context = context.WithValue(o.Context, toolNameKey{}, name)
	}
}

func ToolNameFrom(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(toolNameKey{}).(string)
	return name, ok
}
