package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/sandevgo/gavbot/internal/config"
	"github.com/sandevgo/gavbot/internal/service/pipeline"
	"github.com/sandevgo/gavbot/pkg/log"
)

const defaultConversationKey = "cli-local"

// ReadLine is the local terminal transport, handy for trying the assistant
// without any messaging provider.
type ReadLine struct {
	cfg  *config.AppConfig
	pipe *pipeline.Pipeline
	rl   *readline.Instance
}

func NewReadLine(pipe *pipeline.Pipeline, cfg *config.AppConfig) (*ReadLine, error) {
	// Ensure runtime directory exists
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.RuntimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{cfg: cfg, pipe: pipe, rl: rl}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("CLI chat started. Type 'exit' to quit.")

	for {
		// Check context before blocking read
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		reply := r.pipe.HandleTurn(ctx, defaultConversationKey, line)
		fmt.Println(reply)
	}
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	return r.rl.Close()
}
