// Package dispatch drives batch sending: it walks every campaign's eligible
// leads (never contacted, still gray) and hands them to the sender, pacing
// consecutive sends with the campaign's configured delay.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mkedz/outreach/internal/campaign"
	"github.com/mkedz/outreach/internal/sender"
)

// Config holds dispatcher configuration.
type Config struct {
	PollInterval time.Duration
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{PollInterval: time.Minute}
}

// Stats summarizes one drain pass over a campaign.
type Stats struct {
	Sent    int
	Skipped int
	Failed  int
}

// Dispatcher processes eligible leads in the background, one goroutine per
// campaign so a slow SMTP server only stalls its own campaign.
type Dispatcher struct {
	registry     *campaign.Registry
	sender       *sender.Sender
	pollInterval time.Duration
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new dispatcher.
func New(reg *campaign.Registry, s *sender.Sender, cfg Config, logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		registry:     reg,
		sender:       s,
		pollInterval: cfg.PollInterval,
		logger:       logger.With("component", "dispatch"),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches one drain loop per campaign.
func (d *Dispatcher) Start() {
	for _, c := range d.registry.All() {
		d.wg.Add(1)
		go d.run(c)
	}
	d.logger.Info("dispatcher started", "poll_interval", d.pollInterval)
}

// Stop stops the dispatcher gracefully, waiting for in-flight sends.
func (d *Dispatcher) Stop() {
	d.logger.Info("stopping dispatcher...")
	d.cancel()
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

func (d *Dispatcher) run(c *campaign.Campaign) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	d.drain(c)
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.drain(c)
		}
	}
}

func (d *Dispatcher) drain(c *campaign.Campaign) {
	stats, err := Run(d.ctx, c, d.sender, sender.Options{}, d.logger)
	if err != nil {
		d.logger.Error("drain pass failed", "campaign", c.Name, "error", err)
		return
	}
	if stats.Sent+stats.Skipped+stats.Failed > 0 {
		d.logger.Info("drain pass finished", "campaign", c.Name,
			"sent", stats.Sent, "skipped", stats.Skipped, "failed", stats.Failed)
	}
}

// Run performs one drain pass over a campaign: every lead eligible at the
// start of the pass gets one send attempt, with the campaign delay between
// consecutive attempts. Transport failures are counted and the pass
// continues; a store failure aborts it. Cancellation stops the pass between
// sends, never mid-send.
func Run(ctx context.Context, c *campaign.Campaign, s *sender.Sender, opts sender.Options, logger *slog.Logger) (Stats, error) {
	var stats Stats

	leads, err := c.Leads.ListEligible()
	if err != nil {
		return stats, err
	}

	for i, l := range leads {
		if i > 0 && c.Delay > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(c.Delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		outcome, err := s.Send(ctx, c, l.Email, opts)
		if err != nil {
			return stats, err
		}
		switch outcome {
		case sender.OutcomeSent:
			stats.Sent++
		case sender.OutcomeSkipped:
			stats.Skipped++
		case sender.OutcomeFailed:
			stats.Failed++
		}
	}

	return stats, nil
}
