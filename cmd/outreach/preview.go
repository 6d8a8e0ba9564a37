package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkedz/outreach/internal/campaign"
	"github.com/mkedz/outreach/internal/metrics"
	"github.com/mkedz/outreach/internal/sender"
)

var (
	previewCampaign string
	previewTemplate string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render the campaign template with sample data",
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewCampaign, "campaign", "", "campaign name (required)")
	previewCmd.Flags().StringVar(&previewTemplate, "template", "", "template file overriding the campaign default")
	previewCmd.MarkFlagRequired("campaign")
}

func runPreview(cmd *cobra.Command, args []string) error {
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

	c, err := reg.Get(previewCampaign)
	if err != nil {
		return err
	}

	tmplFile := c.Template
	if previewTemplate != "" {
		tmplFile = previewTemplate
	}

	html, err := sender.New(cfg.Templates.Dir, logger, metrics.New()).Preview(c, tmplFile)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	fmt.Println(html)
	return nil
}
