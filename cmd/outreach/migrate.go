package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkedz/outreach/internal/campaign"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade all campaign databases",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	// The registry migrates every campaign database on open.
	reg, err := campaign.NewRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer reg.Close()

	for _, c := range reg.All() {
		fmt.Printf("campaign %s: database ready\n", c.Name)
	}
	return nil
}
