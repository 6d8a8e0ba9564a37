package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkedz/outreach/internal/campaign"
	"github.com/mkedz/outreach/internal/lead"
)

var (
	exportCampaign string
	exportStatus   string
	exportOutput   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads of one status as CSV",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportCampaign, "campaign", "", "campaign name (required)")
	exportCmd.Flags().StringVar(&exportStatus, "status", "green", "status to export")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
	exportCmd.MarkFlagRequired("campaign")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	status := lead.Status(exportStatus)
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", exportStatus)
	}

	reg, err := campaign.NewRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize campaigns: %w", err)
	}
	defer reg.Close()

	c, err := reg.Get(exportCampaign)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return c.Leads.ExportCSV(w, status)
}
