package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Makepad-fr/tasks/internal/auth"
	"github.com/Makepad-fr/tasks/internal/cli"
	"github.com/Makepad-fr/tasks/internal/config"
	"github.com/Makepad-fr/tasks/internal/logging"
)

func main() {
	fs := flag.NewFlagSet("tasks", flag.ContinueOnError)
	// Root flags (apply to every subcommand)
	groupPending := fs.Bool("group", false, "group ls output by pending/done")

	cfg, args, err := config.Load(fs, os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.New(os.Stderr, level)

	creds, err := auth.Default()
	if err != nil {
		logger.Error("credentials", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := cli.New(cfg, cli.Options{Group: *groupPending}, creds, logger, os.Stdin, os.Stdout, os.Stderr)

	// Hand the remaining args to the CLI runner.
	code := r.Run(ctx, args)
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	stop()
	os.Exit(code)
}
