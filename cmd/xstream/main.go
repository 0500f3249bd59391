package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xlog/adapter/zerolog"

	"github.com/trickstertwo/xstream/internal/cli"
)

func main() {
	// XSTREAM_DEBUG=1 turns on debug logs on stderr; stdout carries command output
	cfg := zerolog.Config{
		Console:           true,
		ConsoleTimeFormat: time.RFC3339,
		Writer:            os.Stderr,
	}
	if os.Getenv("XSTREAM_DEBUG") != "" {
		cfg.MinLevel = xlog.LevelDebug
	}
	logger := zerolog.Use(cfg).With(xlog.Str("app", "xstream"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRoot(cli.DefaultOpener(logger))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
