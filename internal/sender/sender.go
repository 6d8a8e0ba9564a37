package sender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mkedz/outreach/internal/campaign"
	"github.com/mkedz/outreach/internal/lead"
	"github.com/mkedz/outreach/internal/mailer"
	"github.com/mkedz/outreach/internal/metrics"
)

// Outcome classifies one send attempt.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped" // lead already decided (green/red/blue)
	OutcomeFailed  Outcome = "failed"
)

// Options tweak a single send run.
type Options struct {
	Template       string // overrides the campaign template when set
	AttachmentPath string
}

// TemplateData is the input contract for campaign templates.
type TemplateData struct {
	FirstName      string
	Token          string
	Campaign       string
	Links          map[string]string // tracked redirects, one per configured destination
	InterestedURL  string
	UnsubscribeURL string
	PixelURL       string
	LandingPage    string
	CacheBuster    int64
}

// Sender renders a campaign template for one lead, transmits it and records
// the outcome on the lead.
type Sender struct {
	templatesDir string
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// New creates a Sender loading templates from dir.
func New(templatesDir string, logger *slog.Logger, m *metrics.Metrics) *Sender {
	return &Sender{
		templatesDir: templatesDir,
		logger:       logger.With("component", "sender"),
		metrics:      m,
	}
}

// Send delivers the campaign email to one lead. Transport failures are
// recorded on the lead and swallowed so a batch run continues with the next
// lead; only a store failure is returned as an error.
func (s *Sender) Send(ctx context.Context, c *campaign.Campaign, email string, opts Options) (Outcome, error) {
	l, err := c.Leads.GetByEmail(email)
	if err != nil {
		return OutcomeFailed, err
	}

	// Re-checked here, not just at selection time: a tracking event may
	// have decided the lead after the eligibility query.
	if l.Status.Decided() {
		s.logger.Info("skipping decided lead", "campaign", c.Name, "email", l.Email, "status", l.Status)
		s.count(c.Name, OutcomeSkipped)
		return OutcomeSkipped, nil
	}

	tmplFile := c.Template
	if opts.Template != "" {
		tmplFile = opts.Template
	}

	html, err := s.Render(c, l, tmplFile)
	if err != nil {
		// A broken template fails the whole run; it would fail for
		// every lead the same way.
		return OutcomeFailed, fmt.Errorf("failed to render template %s: %w", tmplFile, err)
	}

	sendErr := c.Mailer.Send(ctx, &mailer.Message{
		From:           c.From,
		To:             l.Email,
		Subject:        c.Subject,
		HTML:           html,
		AttachmentPath: opts.AttachmentPath,
	})
	if sendErr != nil {
		s.logger.Error("send failed", "campaign", c.Name, "email", l.Email,
			"permanent", errors.Is(sendErr, mailer.ErrAttachmentTooLarge), "error", sendErr)
		if err := c.Leads.UpdateSendOutcome(l.Email, false, ""); err != nil {
			return OutcomeFailed, err
		}
		s.count(c.Name, OutcomeFailed)
		return OutcomeFailed, nil
	}

	if err := c.Leads.UpdateSendOutcome(l.Email, true, tmplFile); err != nil {
		return OutcomeFailed, err
	}

	s.logger.Info("email sent", "campaign", c.Name, "email", l.Email, "template", tmplFile)
	s.count(c.Name, OutcomeSent)
	return OutcomeSent, nil
}

// Render produces the HTML body for one lead. Every configured link is
// wrapped in the campaign's click redirect; the template additionally
// receives the marker URLs, the open pixel and a cache buster.
func (s *Sender) Render(c *campaign.Campaign, l *lead.Lead, tmplFile string) (string, error) {
	t, err := template.ParseFiles(filepath.Join(s.templatesDir, tmplFile))
	if err != nil {
		return "", err
	}

	links := make(map[string]string, len(c.Links))
	for name, dest := range c.Links {
		links[name] = c.TrackClickURL(l.Token, dest)
	}

	data := TemplateData{
		FirstName:      l.FirstName,
		Token:          l.Token,
		Campaign:       c.Name,
		Links:          links,
		InterestedURL:  c.TrackClickURL(l.Token, c.InterestedURL(l.Token)),
		UnsubscribeURL: c.TrackClickURL(l.Token, c.UnsubscribeURL(l.Token)),
		PixelURL:       c.PixelURL(l.Token),
		LandingPage:    c.LandingPage,
		CacheBuster:    time.Now().Unix(),
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Preview renders the campaign template with sample data, for operator
// inspection before a run.
func (s *Sender) Preview(c *campaign.Campaign, tmplFile string) (string, error) {
	sample := &lead.Lead{
		Email:     "preview@example.com",
		FirstName: "Alex",
		Status:    lead.StatusGray,
		Token:     lead.Token("preview@example.com"),
	}
	return s.Render(c, sample, tmplFile)
}

func (s *Sender) count(campaignName string, o Outcome) {
	if s.metrics != nil {
		s.metrics.SendsTotal.WithLabelValues(campaignName, string(o)).Inc()
	}
}
