package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkedz/outreach/internal/campaign"
	"github.com/mkedz/outreach/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tracking server and dispatcher",
	Long:  `Start the HTTP server (tracking endpoints, dashboard, metrics) and the background send dispatcher.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	reg, err := campaign.NewRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize campaigns: %w", err)
	}

	srv, err := server.New(cfg, reg, logger)
	if err != nil {
		reg.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Run(context.Background())
}
