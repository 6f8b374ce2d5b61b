package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
)

type Globals struct {
	// Logging config
	LogLevel  string `help:"Log level" enum:"debug,info,warn,error" default:"info" env:"VOX_LOG_LEVEL"`
	LogFormat string `help:"Log format" enum:"text,json" default:"text" env:"VOX_LOG_FORMAT"`

	// Store config
	Store         string `help:"Command store backend" enum:"memory,sqlite,postgres,qdrant" default:"sqlite" env:"VOX_STORE"`
	StoreLocation string `help:"Store location: sqlite path, postgres DSN or qdrant URL" default:"" env:"VOX_STORE_LOCATION"`
	Collection    string `help:"Table or collection holding the commands" default:"vox_commands" env:"VOX_COLLECTION"`
	QdrantKey     string `help:"API key for qdrant" default:"" env:"VOX_QDRANT_KEY"`

	// Embedder config
	Embedder      string `help:"Embedding backend" enum:"lexical,openai,google" default:"lexical" env:"VOX_EMBEDDER"`
	EmbedderKey   string `help:"API key for the embedder" default:"" env:"VOX_EMBEDDER_KEY"`
	EmbedderModel string `help:"Model identifier for the embedder" default:"" env:"VOX_EMBEDDER_MODEL"`
	EmbedderURL   string `help:"Base URL for an OpenAI compatible embedder" default:"" env:"VOX_EMBEDDER_URL"`
	Dimension     int    `help:"Embedding dimension, zero for the backend default" default:"0" env:"VOX_DIMENSION"`

	// Executor config
	Executor         string        `help:"Execution backend" enum:"dryrun,http,utcp" default:"dryrun" env:"VOX_EXECUTOR"`
	ExecutorLocation string        `help:"Device bridge URL or UTCP providers file" default:"" env:"VOX_EXECUTOR_LOCATION"`
	ExecutorTool     string        `help:"UTCP tool that runs payloads" default:"device.run" env:"VOX_EXECUTOR_TOOL"`
	ExecutorTimeout  time.Duration `help:"Timeout for one payload" default:"10s" env:"VOX_EXECUTOR_TIMEOUT"`

	// Catalog config
	Manifest    string `help:"Manifest to seed from, the built-in motion commands when empty" default:"" env:"VOX_MANIFEST" type:"path"`
	NoBootstrap bool   `help:"Do not seed the catalog at startup" env:"VOX_NO_BOOTSTRAP"`

	// Policy config
	ExecutionThreshold float64 `help:"Minimum similarity to execute a command" default:"0.5" env:"VOX_EXECUTION_THRESHOLD"`
	LearningThreshold  float64 `help:"Minimum similarity to learn a paraphrase" default:"0.85" env:"VOX_LEARNING_THRESHOLD"`
	DedupThreshold     float64 `help:"Similarity above which a new command is a duplicate" default:"0.9" env:"VOX_DEDUP_THRESHOLD"`
	Learning           bool    `help:"Learn close paraphrases while resolving" env:"VOX_LEARNING"`
	PendingPayload     string  `help:"Payload given to learned paraphrases" default:"" env:"VOX_PENDING_PAYLOAD"`
}

var cli struct {
	Globals

	Resolve    ResolveCmd    `cmd:"" help:"Resolve one utterance and run the matching command"`
	Learn      LearnCmd      `cmd:"" help:"Teach a new command"`
	Forget     ForgetCmd     `cmd:"" help:"Remove a command"`
	List       ListCmd       `cmd:"" help:"List stored commands"`
	Stats      StatsCmd      `cmd:"" help:"Show catalog statistics"`
	Reset      ResetCmd      `cmd:"" help:"Remove every command"`
	Thresholds ThresholdsCmd `cmd:"" help:"Check the similarity thresholds"`
	Repl       ReplCmd       `cmd:"" default:"1" help:"Read utterances from stdin"`
	Serve      ServeCmd      `cmd:"" help:"Serve the administrative HTTP API"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("vox"),
		kong.Description("Resolve spoken or typed commands against a learned catalog."),
		kong.UsageOnError(),
	)

	setupLogging(&cli.Globals)

	if err := ctx.Run(&cli.Globals); err != nil {
		slog.Error("vox failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(g *Globals) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if g.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
