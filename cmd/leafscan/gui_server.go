package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdxmph/leafscan/pkg/classify"
	"github.com/pdxmph/leafscan/pkg/config"
	"github.com/pdxmph/leafscan/pkg/gui"
	"github.com/pdxmph/leafscan/pkg/preview"
)

func createGUIServerCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "gui-server",
		Short:  "Speak the JSON-lines protocol on stdin/stdout for a front end",
		Hidden: true,
		Args:   cobra.NoArgs,
		Run:    guiServerCommand,
	}
}

func guiServerCommand(cmd *cobra.Command, args []string) {
	// stdout carries the protocol; the log goes to stderr
	log := newLogger(slog.LevelWarn)

	// Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	alloc, err := preview.NewThumbnailAllocator(cfg.Preview.Dir, cfg.Preview.MaxSize, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing previews: %v\n", err)
		os.Exit(1)
	}

	client := classify.NewClient(cfg.Endpoint,
		classify.WithTimeout(time.Duration(cfg.Timeout)),
		classify.WithClientLogger(log),
	)
	server := gui.NewServer(os.Stdin, os.Stdout, alloc, classify.NewPipeline(client, classify.WithLogger(log)), log,
		gui.WithMaxFiles(cfg.Selection.MaxFiles),
	)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	runErr := server.Run(ctx)
	stop()
	if err := alloc.Close(); err != nil {
		log.Warn("removing previews", "err", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", runErr)
		os.Exit(1)
	}
}
