package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkedz/outreach/internal/campaign"
)

var loadCampaign string

var loadCmd = &cobra.Command{
	Use:   "load <leads.csv>",
	Short: "Import leads from a CSV file",
	Long:  `Import leads from a CSV file with an email column and an optional first name column. Existing leads are left untouched, so re-loading the same file is safe.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

func init() {
	loadCmd.Flags().StringVar(&loadCampaign, "campaign", "", "campaign name (required)")
	loadCmd.MarkFlagRequired("campaign")
}

func runLoad(cmd *cobra.Command, args []string) error {
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

	c, err := reg.Get(loadCampaign)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	result, err := c.Leads.ImportCSV(f)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("campaign %s: %d rows, %d imported, %d duplicates, %d invalid\n",
		c.Name, result.Total, result.Imported, result.Skipped, result.Invalid)
	for _, e := range result.Errors {
		fmt.Printf("  %s\n", e)
	}
	return nil
}
