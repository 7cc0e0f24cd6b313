package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/roadmap-agent/internal/config"
	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/observability"
	"github.com/jonathan/roadmap-agent/internal/pipeline"
)

var roadmapCommand = &cobra.Command{
	Use:   "roadmap [goal]",
	Short: "Generate a learning roadmap for a goal",
	Long: `Runs the full pipeline: profile -> queries -> corpus -> roadmap -> enrichment -> projection.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values,
which override environment variables.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRoadmapCmd,
}

var (
	roadmapConfigPath    string
	roadmapGoal          string
	roadmapOutput        string
	roadmapAPIKey        string
	roadmapDatabaseURL   string
	roadmapSearchBackend string
	roadmapModel         string
	roadmapMaxRetries    int
	roadmapVerbose       bool
)

func init() {
	// Config file flag (processed first)
	roadmapCommand.Flags().StringVar(&roadmapConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	roadmapCommand.Flags().StringVarP(&roadmapGoal, "goal", "g", "", "Free-text learning goal (or pass it as the only argument)")
	roadmapCommand.Flags().StringVarP(&roadmapOutput, "output", "o", "", "Write the roadmap JSON to this file instead of stdout")
	roadmapCommand.Flags().StringVar(&roadmapAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	roadmapCommand.Flags().StringVar(&roadmapDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	roadmapCommand.Flags().StringVar(&roadmapSearchBackend, "search-backend", "", "Web search backend: tavily or google")
	roadmapCommand.Flags().StringVar(&roadmapModel, "model", "", "Use one model for every tier")
	roadmapCommand.Flags().IntVar(&roadmapMaxRetries, "max-retries", 0, "Rate-limit retries per generation call (0 disables retries)")
	roadmapCommand.Flags().BoolVarP(&roadmapVerbose, "verbose", "v", false, "Print each stage's output")

	rootCmd.AddCommand(roadmapCommand)
}

// applyRoadmapFlags overrides cfg with flags that were explicitly set.
func applyRoadmapFlags(cmd *cobra.Command, args []string, cfg *config.Config) {
	if cmd.Flags().Changed("goal") {
		cfg.Goal = roadmapGoal
	}
	if len(args) == 1 {
		cfg.Goal = args[0]
	}
	if cmd.Flags().Changed("output") {
		cfg.Output = roadmapOutput
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = roadmapAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = roadmapDatabaseURL
	}
	if cmd.Flags().Changed("search-backend") {
		cfg.SearchBackend = roadmapSearchBackend
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = roadmapModel
	}
	if cmd.Flags().Changed("max-retries") {
		retries := roadmapMaxRetries
		cfg.MaxRetries = &retries
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = roadmapVerbose
	}
}

func runRoadmapCmd(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Resolve(roadmapConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyRoadmapFlags(cmd, args, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Goal) == "" {
		return fmt.Errorf("a goal must be provided (argument, --goal or config)")
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	p, err := pipeline.New(rt.services)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	opts := pipeline.RunOptions{OnProgress: progressPrinter(errOut, cfg.Verbose)}

	result, err := p.RunWithOptions(ctx, cfg.Goal, opts)
	if err != nil {
		return err
	}

	if cfg.Verbose {
		observability.NewPrinter(errOut).PrintDiagnostics(result.Diagnostics)
	} else if n := len(result.Diagnostics); n > 0 {
		_, _ = fmt.Fprintf(errOut, "Completed with %d diagnostics (use --verbose for details)\n", n)
	}

	return writeRoadmap(cmd.OutOrStdout(), cfg.Output, result)
}

// progressPrinter prints "Step i/N" lines as stages start. In verbose mode
// stage results are rendered as boxes.
func progressPrinter(out io.Writer, verbose bool) pipeline.ProgressCallback {
	printer := observability.NewPrinter(out)
	return func(e pipeline.ProgressEvent) {
		if e.Content == nil {
			_, _ = fmt.Fprintf(out, "Step %d/%d: %s...\n", e.Index, e.Total, e.Message)
			return
		}
		if verbose {
			printer.PrintStageOutput(e.Content)
			return
		}
		_, _ = fmt.Fprintf(out, "  %s\n", e.Message)
	}
}

// writeRoadmap writes the run result as indented JSON to path, or to stdout when path is empty.
func writeRoadmap(stdout io.Writer, path string, result *pipeline.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal roadmap: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write roadmap to %s: %w", path, err)
	}
	_, _ = fmt.Fprintf(stdout, "Roadmap written to %s\n", path)
	return nil
}

