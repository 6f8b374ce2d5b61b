package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/w-h-a/vox"
	"github.com/w-h-a/vox/command"
)

type ReplCmd struct{}

func (c *ReplCmd) Run(g *Globals) error {
	ctx := context.Background()

	engine, err := g.open(ctx, true)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Println("vox console. Type a command, :list, :stats, :learn on|off or :quit.")

	return repl(ctx, engine, os.Stdin, os.Stdout)
}

func repl(ctx context.Context, engine *vox.Engine, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")

		if !scanner.Scan() {
			fmt.Fprintln(out, "Goodbye!")
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if len(input) == 0 {
			continue
		}

		if strings.HasPrefix(input, ":") {
			quit, err := meta(ctx, engine, input, out)
			if err != nil {
				fmt.Fprintf(out, "❌ %v\n", err)
			}
			if quit {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			continue
		}

		printOutcome(out, engine.Resolve(ctx, input))
	}
}

func meta(ctx context.Context, engine *vox.Engine, input string, out io.Writer) (bool, error) {
	fields := strings.Fields(input)

	switch fields[0] {
	case ":quit", ":q":
		return true, nil
	case ":list":
		records, err := engine.List(ctx)
		if err != nil {
			return false, err
		}
		for _, r := range records {
			fmt.Fprintf(out, "  • %s: %s\n", r.Id, r.Description)
		}
	case ":stats":
		stats, err := engine.Stats(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "📊 %d commands %v, learning %v\n", stats.Total, stats.Categories, stats.LearningMode)
	case ":learn":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			return false, fmt.Errorf("usage: :learn on|off")
		}
		engine.SetLearningMode(fields[1] == "on")
		fmt.Fprintf(out, "learning %s\n", fields[1])
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}

	return false, nil
}

func printOutcome(out io.Writer, o command.Outcome) {
	switch o.Status {
	case command.StatusExecuted:
		fmt.Fprintf(out, "✅ %s (%.2f) %s\n", o.Id, o.Similarity, o.Description)
		if len(o.LearnedId) > 0 {
			fmt.Fprintf(out, "🧠 learned %s\n", o.LearnedId)
		}
	case command.StatusUnknown:
		fmt.Fprintf(out, "❓ unknown command: %s\n", o.Text)
		for _, s := range o.Suggestions {
			fmt.Fprintf(out, "   did you mean %s '%s' (%.2f)?\n", s.Id, s.Description, s.Similarity)
		}
	default:
		if len(o.Id) > 0 {
			fmt.Fprintf(out, "❌ %s: %s\n", o.Id, o.Reason)
		} else {
			fmt.Fprintf(out, "❌ %s\n", o.Reason)
		}
	}
}
