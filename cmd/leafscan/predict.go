package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdxmph/leafscan/pkg/blob"
	"github.com/pdxmph/leafscan/pkg/classify"
	"github.com/pdxmph/leafscan/pkg/config"
	"github.com/pdxmph/leafscan/pkg/kitty"
	"github.com/pdxmph/leafscan/pkg/preview"
	"github.com/pdxmph/leafscan/pkg/render"
	"github.com/pdxmph/leafscan/pkg/selection"
	"github.com/pdxmph/leafscan/pkg/session"
	"github.com/pdxmph/leafscan/pkg/templates"
	"github.com/pdxmph/leafscan/pkg/types"
)

// Flags for the predict command
var (
	predictFormat       string
	predictJSON         bool
	predictShowPreviews bool
	predictEndpoint     string
)

func createPredictCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict [images...]",
		Short: "Classify one or more leaf images",
		Long: `Upload each image to the inference endpoint, in order, and show the
predicted class with its confidence, severity and remedy.

The batch stops at the first failed upload and no results are shown.`,
		Args: cobra.MinimumNArgs(1),
		Run:  predictCommand,
	}

	cmd.Flags().StringVarP(&predictFormat, "format", "f", "", "Output format: cards or a template name (default from config)")
	cmd.Flags().BoolVar(&predictJSON, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&predictShowPreviews, "show-previews", false, "Show previews inline (kitty terminal)")
	cmd.Flags().StringVar(&predictEndpoint, "endpoint", "", "Inference endpoint URL (overrides config)")

	return cmd
}

func predictCommand(cmd *cobra.Command, args []string) {
	if skipped, err := runPredict(cmd, args); err != nil {
		if predictJSON {
			printJSON(cmd, types.Failure(err, skipped))
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// runPredict returns the files left out of the selection alongside any error
func runPredict(cmd *cobra.Command, args []string) ([]string, error) {
	// Problems reach the user as Warning/Error lines, so the log stays quiet
	log := newLogger(slog.LevelError + 4)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if predictEndpoint != "" {
		cfg.Endpoint = predictEndpoint
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	format := predictFormat
	if format == "" {
		format = cfg.Default.Format
	}
	if !predictJSON && format != "cards" {
		if _, ok := cfg.Templates[format]; !ok {
			return nil, fmt.Errorf("unknown format %q (available: %s)", format, availableFormats(cfg))
		}
	}

	// Check files exist
	for _, path := range args {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("file not found: %s", path)
		}
	}

	alloc, err := preview.NewThumbnailAllocator(cfg.Preview.Dir, cfg.Preview.MaxSize, log)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare previews: %w", err)
	}
	defer alloc.Close()

	client := classify.NewClient(cfg.Endpoint,
		classify.WithTimeout(time.Duration(cfg.Timeout)),
		classify.WithClientLogger(log),
	)
	pipeline := classify.NewPipeline(client, classify.WithLogger(log))

	sess := session.New(uuid.New().String(), alloc, pipeline, log, selection.WithLimit(cfg.Selection.MaxFiles))
	defer sess.Close()

	stderr := cmd.ErrOrStderr()
	var skipped []string
	if err := sess.Select(blob.Files(args)); err != nil {
		if errors.Is(err, selection.ErrTooManyFiles) {
			return nil, err
		}
		if pe, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range pe.Unwrap() {
				fmt.Fprintf(stderr, "Warning: %v\n", e)
			}
		} else {
			fmt.Fprintf(stderr, "Warning: %v\n", err)
		}
	}
	items := sess.Items()
	selected := make(map[string]bool, len(items))
	for _, item := range items {
		selected[blob.PathOf(item.Blob)] = true
	}
	for _, path := range args {
		if !selected[path] {
			skipped = append(skipped, path)
		}
	}
	if len(items) == 0 {
		return skipped, errors.New("no images could be read")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = sess.Submit(ctx, func(p classify.Progress) {
		if !predictJSON {
			fmt.Fprintln(stderr, render.ProgressLine(p))
		}
	})
	if err != nil {
		return skipped, err
	}

	entries := sess.Snapshot()

	if predictJSON {
		resp := types.BatchResponse{
			Success: true,
			Results: make([]types.ResultOutput, 0, len(entries)),
			Skipped: skipped,
		}
		for i, e := range entries {
			resp.Results = append(resp.Results, types.NewResultOutput(blob.PathOf(items[i].Blob), e))
		}
		printJSON(cmd, resp)
		return skipped, nil
	}

	out := cmd.OutOrStdout()
	var display *kitty.ImageDisplay
	if predictShowPreviews {
		if kitty.IsKittyTerminal() {
			display = kitty.NewImageDisplay(out)
		} else {
			fmt.Fprintln(stderr, "Warning: --show-previews needs a kitty terminal")
		}
	}

	if format == "cards" && display == nil {
		fmt.Fprintln(out, render.Results(entries))
		return skipped, nil
	}

	for _, e := range entries {
		if display != nil {
			if err := display.Show(e.Preview); err != nil {
				log.Warn("preview display failed", "file", e.Name, "err", err)
			}
		}
		if format == "cards" {
			fmt.Fprintln(out, render.Card(e))
		} else {
			fmt.Fprintln(out, templates.Process(cfg.Templates[format], templates.BuildVariables(e)))
		}
	}
	return skipped, nil
}

func availableFormats(cfg *config.Config) string {
	names := []string{"cards"}
	for name := range cfg.Templates {
		names = append(names, name)
	}
	sort.Strings(names[1:])
	return strings.Join(names, ", ")
}

func printJSON(cmd *cobra.Command, v interface{}) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
}
