package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/roadmap-agent/internal/config"
	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/pipeline"
	"github.com/jonathan/roadmap-agent/internal/postsearch"
	"github.com/jonathan/roadmap-agent/internal/server"
	"github.com/jonathan/roadmap-agent/internal/server/ratelimit"
)

var (
	serveConfigPath string
	serveAddr       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes POST /roadmap, POST /search_posts and run history endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to config.json file")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (default localhost:8080, or ADDR env var)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Resolve(serveConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = serveAddr
		if err := cfg.Validate(); err != nil {
			return err
		}
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

	srvCfg := server.Config{
		Addr:      cfg.Addr,
		Roadmaps:  p,
		RateLimit: ratelimit.LoadConfig(),
		Logger:    log,
	}
	if rt.database != nil {
		srvCfg.Posts = postsearch.NewService(rt.database, rt.client, rt.database, log)
		srvCfg.Runs = rt.database
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}
