package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/w-h-a/vox/command"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

type ResolveCmd struct {
	Text []string `arg:"" help:"Utterance to resolve"`
}

func (c *ResolveCmd) Run(g *Globals) error {
	ctx := context.Background()

	engine, err := g.open(ctx, true)
	if err != nil {
		return err
	}
	defer engine.Close()

	outcome := engine.Resolve(ctx, strings.Join(c.Text, " "))

	if err := printJSON(outcome); err != nil {
		return err
	}

	if outcome.Status == command.StatusError {
		return fmt.Errorf("resolve failed: %s", outcome.Reason)
	}

	return nil
}

type LearnCmd struct {
	Id          string `arg:"" help:"Command identifier"`
	Description string `arg:"" help:"Natural language description"`
	Payload     string `help:"Device code to run" required:""`
	Category    string `help:"Category of the command" default:"custom"`
}

func (c *LearnCmd) Run(g *Globals) error {
	ctx := context.Background()

	engine, err := g.open(ctx, true)
	if err != nil {
		return err
	}
	defer engine.Close()

	result := engine.Learn(ctx, command.Command{
		Id:          c.Id,
		Description: c.Description,
		Payload:     strings.ReplaceAll(c.Payload, `\n`, "\n"),
		Category:    c.Category,
	})

	if err := printJSON(result); err != nil {
		return err
	}

	if result.Status == command.LearnFailure {
		return fmt.Errorf("learn failed: %s", result.Reason)
	}

	return nil
}

type ForgetCmd struct {
	Id string `arg:"" help:"Command identifier"`
}

func (c *ForgetCmd) Run(g *Globals) error {
	ctx := context.Background()

	engine, err := g.open(ctx, false)
	if err != nil {
		return err
	}
	defer engine.Close()

	result := engine.Forget(ctx, c.Id)
	if result.Err != nil {
		return result.Err
	}

	return printJSON(result)
}

type ListCmd struct{}

func (c *ListCmd) Run(g *Globals) error {
	ctx := context.Background()

	engine, err := g.open(ctx, true)
	if err != nil {
		return err
	}
	defer engine.Close()

	records, err := engine.List(ctx)
	if err != nil {
		return err
	}

	for _, r := range records {
		fmt.Printf("%-24s %-10s %s\n", r.Id, r.Category, r.Description)
	}

	return nil
}

type StatsCmd struct{}

func (c *StatsCmd) Run(g *Globals) error {
	ctx := context.Background()

	engine, err := g.open(ctx, true)
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.Stats(ctx)
	if err != nil {
		return err
	}

	return printJSON(stats)
}

type ResetCmd struct {
	Reseed bool `help:"Seed the manifest again after the reset"`
	Yes    bool `help:"Do not ask for confirmation" short:"y"`
}

func (c *ResetCmd) Run(g *Globals) error {
	ctx := context.Background()

	if !c.Yes {
		return errors.New("reset removes every command, rerun with --yes")
	}

	engine, err := g.open(ctx, false)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Reset(ctx); err != nil {
		return err
	}

	fmt.Println("✅ Catalog reset")

	if !c.Reseed {
		return nil
	}

	m, err := g.manifest()
	if err != nil {
		return err
	}

	return printJSON(engine.Bootstrap(ctx, m))
}

type ThresholdsCmd struct {
	Execution *float64 `help:"Execution threshold to check"`
	Learning  *float64 `help:"Learning threshold to check"`
	Dedup     *float64 `help:"Dedup threshold to check"`
}

// Run validates a threshold update against the configured values. The CLI
// holds no state between runs, so the result applies to flags and env only.
func (c *ThresholdsCmd) Run(g *Globals) error {
	current, err := g.thresholds()
	if err != nil {
		return err
	}

	next, err := command.ThresholdUpdate{
		Execution: c.Execution,
		Learning:  c.Learning,
		Dedup:     c.Dedup,
	}.Apply(current)
	if err != nil {
		return err
	}

	return printJSON(next)
}
