package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raysh454/miru/internal/app"
	"github.com/raysh454/miru/internal/cli"
	"github.com/raysh454/miru/internal/logging"
	"github.com/raysh454/miru/internal/vlm"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	parsed, err := cli.ParseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "miru: %v\n", err)
		fmt.Fprintln(os.Stderr, "usage: miru -suite <file> [-model <path>] [-backend moondream|ollama] [-verbose]")
		return 2
	}

	logger := logging.NewStdoutLogger("miru")

	cfg := app.DefaultConfig()
	cfg.FromArgs(parsed)

	vlm.RegisterDefaultBackends()

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		logger.Error("startup failed", logging.Field{Key: "error", Value: err.Error()})
		return 1
	}
	defer func() {
		if err := application.Shutdown(); err != nil {
			logger.Warn("shutdown", logging.Field{Key: "error", Value: err.Error()})
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ok, err := application.RunSuite(ctx, parsed.SuitePath, os.Stdout, parsed.Verbose)
	if err != nil {
		logger.Error("suite run failed", logging.Field{Key: "error", Value: err.Error()})
		return 1
	}
	if !ok {
		return 1
	}
	return 0
}
