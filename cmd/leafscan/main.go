package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdxmph/leafscan/pkg/config"
	"github.com/pdxmph/leafscan/pkg/disease"
	"github.com/pdxmph/leafscan/pkg/render"
)

var (
	// Version information (set by ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "leafscan",
		Short: "Classify leaf images for disease",
		Long: `leafscan - send potato leaf photos to a classification endpoint and
show the predicted disease, confidence, severity and remedy.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(cmd)
				return nil
			}
			// Show help if no subcommand is provided
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "version for leafscan")

	// Lookup command
	lookupCmd := &cobra.Command{
		Use:   "lookup [label]",
		Short: "Show severity and remedy for a label",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			lookupCommand(cmd, strings.Join(args, " "))
		},
	}

	labelsCmd := &cobra.Command{
		Use:   "labels",
		Short: "List the labels with known severity and remedy",
		Args:  cobra.NoArgs,
		Run:   labelsCommand,
	}

	// Config command
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show configuration",
		Run:   configShowCommand,
	}

	configSetCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		Run:   configSetCommand,
	}

	configCmd.AddCommand(configShowCmd, configSetCmd)

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd)
		},
	}

	rootCmd.AddCommand(createPredictCommand(), createGUIServerCommand(), lookupCmd, labelsCmd, configCmd, versionCmd)
	return rootCmd
}

func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "leafscan version %s\n", version)
	if version != "dev" {
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	}
}

// newLogger logs to stderr at level; LEAFSCAN_DEBUG turns on debug output
func newLogger(level slog.Level) *slog.Logger {
	if os.Getenv("LEAFSCAN_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func lookupCommand(cmd *cobra.Command, label string) {
	out := cmd.OutOrStdout()
	info, known := disease.Lookup(label)
	if !known {
		fmt.Fprintf(out, "%s  %s\n", label, render.Badge(info.Severity))
		fmt.Fprintf(out, "No information for this label. Known labels: %s\n", strings.Join(disease.Labels(), ", "))
		return
	}
	fmt.Fprintf(out, "%s  %s\n\n", label, render.Badge(info.Severity))
	fmt.Fprintf(out, "Description: %s\n", info.Description)
	fmt.Fprintf(out, "Remedy:      %s\n", info.Remedy)
}

func labelsCommand(cmd *cobra.Command, args []string) {
	for _, label := range disease.Labels() {
		info, _ := disease.Lookup(label)
		fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", label, render.Badge(info.Severity))
	}
}

func configShowCommand(cmd *cobra.Command, args []string) {
	if err := configShow(cmd); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configSetCommand(cmd *cobra.Command, args []string) {
	if err := configSet(cmd, args[0], args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configShow(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "(not set)"
	}
	timeout := "(transport default)"
	if cfg.Timeout > 0 {
		timeout = fmt.Sprint(cfg.Timeout)
	}
	maxFiles := "(no limit)"
	if cfg.Selection.MaxFiles > 0 {
		maxFiles = fmt.Sprint(cfg.Selection.MaxFiles)
	}
	previewDir := cfg.Preview.Dir
	if previewDir == "" {
		previewDir = "(temporary)"
	}

	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  File: %s\n", config.Path())
	fmt.Fprintf(out, "  Endpoint: %s\n", endpoint)
	fmt.Fprintf(out, "  Timeout: %s\n", timeout)
	fmt.Fprintf(out, "  Default format: %s\n", cfg.Default.Format)
	fmt.Fprintf(out, "  Preview max size: %d\n", cfg.Preview.MaxSize)
	fmt.Fprintf(out, "  Preview dir: %s\n", previewDir)
	fmt.Fprintf(out, "  Max files per selection: %s\n", maxFiles)

	fmt.Fprintf(out, "\n  Templates:\n")
	names := make([]string, 0, len(cfg.Templates))
	for name := range cfg.Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		// Truncate long templates for display
		display := strings.ReplaceAll(cfg.Templates[name], "\n", `\n`)
		if len(display) > 60 {
			display = display[:57] + "..."
		}
		fmt.Fprintf(out, "    %s: %s\n", name, display)
	}

	return nil
}

func configSet(cmd *cobra.Command, key, value string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Set(key, value); err != nil {
		return err
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", key)
	return nil
}
