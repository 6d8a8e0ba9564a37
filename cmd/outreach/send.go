package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mkedz/outreach/internal/campaign"
	"github.com/mkedz/outreach/internal/dispatch"
	"github.com/mkedz/outreach/internal/metrics"
	"github.com/mkedz/outreach/internal/sender"
)

var (
	sendCampaign   string
	sendTemplate   string
	sendAttachment string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send the campaign email to every eligible lead",
	Long:  `Run one dispatch pass: every lead that was never contacted and is still undecided gets one send attempt, paced by the campaign delay.`,
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendCampaign, "campaign", "", "campaign name (required)")
	sendCmd.Flags().StringVar(&sendTemplate, "template", "", "template file overriding the campaign default")
	sendCmd.Flags().StringVar(&sendAttachment, "attachment", "", "file to attach to every email")
	sendCmd.MarkFlagRequired("campaign")
}

func runSend(cmd *cobra.Command, args []string) error {
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

	c, err := reg.Get(sendCampaign)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	snd := sender.New(cfg.Templates.Dir, logger, metrics.New())
	stats, err := dispatch.Run(ctx, c, snd, sender.Options{
		Template:       sendTemplate,
		AttachmentPath: sendAttachment,
	}, logger)
	if err != nil {
		return err
	}

	fmt.Printf("campaign %s: sent %d, skipped %d, failed %d\n",
		c.Name, stats.Sent, stats.Skipped, stats.Failed)
	return nil
}
