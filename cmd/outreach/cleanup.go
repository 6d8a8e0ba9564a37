package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkedz/outreach/internal/campaign"
)

var cleanupCampaign string

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune orphaned lead detail rows",
	RunE:  runCleanup,
}

func init() {
	cleanupCmd.Flags().StringVar(&cleanupCampaign, "campaign", "", "campaign name (required)")
	cleanupCmd.MarkFlagRequired("campaign")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	reg, err := campaign.NewRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize campaigns: %w", err)
	}
	defer reg.Close()

	c, err := reg.Get(cleanupCampaign)
	if err != nil {
		return err
	}

	pruned, err := c.Leads.Prune()
	if err != nil {
		return err
	}

	fmt.Printf("campaign %s: pruned %d orphaned detail rows\n", c.Name, pruned)
	return nil
}
