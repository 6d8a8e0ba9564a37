package campaign

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mkedz/outreach/internal/config"
	"github.com/mkedz/outreach/internal/lead"
	"github.com/mkedz/outreach/internal/mailer"
	"github.com/mkedz/outreach/internal/store"
)

// ErrUnknownCampaign is returned by Registry.Get for names not in the config.
var ErrUnknownCampaign = errors.New("unknown campaign")

// Campaign is one isolated outreach effort: its own lead store, mail
// identity, link set and notification target. Campaigns never share state.
type Campaign struct {
	Name        string
	Subject     string
	Template    string
	Delay       time.Duration
	Links       map[string]string
	LandingPage string
	From        string

	DB       *store.DB
	Leads    *store.Leads
	Mailer   mailer.Mailer
	Notifier *mailer.Notifier

	baseURL string
}

// TrackClickURL wraps a destination in the campaign's click redirect for a
// given lead token.
func (c *Campaign) TrackClickURL(token, dest string) string {
	return fmt.Sprintf("%s/track/click?token=%s&url=%s&campaign=%s",
		c.baseURL, token, url.QueryEscape(dest), url.QueryEscape(c.Name))
}

// PixelURL is the open-tracking pixel for a given lead token.
func (c *Campaign) PixelURL(token string) string {
	return fmt.Sprintf("%s/track/open?token=%s&campaign=%s", c.baseURL, token, url.QueryEscape(c.Name))
}

// InterestedURL is the marker destination signalling explicit interest.
func (c *Campaign) InterestedURL(token string) string {
	return fmt.Sprintf("%s/interested?token=%s&campaign=%s", c.baseURL, token, url.QueryEscape(c.Name))
}

// UnsubscribeURL is the marker destination signalling an unsubscribe.
func (c *Campaign) UnsubscribeURL(token string) string {
	return fmt.Sprintf("%s/unsubscribed?token=%s&campaign=%s", c.baseURL, token, url.QueryEscape(c.Name))
}

// MarkerFor classifies a click destination: StatusGreen for the interested
// marker, StatusRed for the unsubscribe marker, empty for ordinary links.
// Markers are matched by path prefix so the token and campaign query values
// embedded in the destination do not matter.
func (c *Campaign) MarkerFor(dest string) lead.Status {
	switch {
	case strings.HasPrefix(dest, c.baseURL+"/interested"):
		return lead.StatusGreen
	case strings.HasPrefix(dest, c.baseURL+"/unsubscribed"):
		return lead.StatusRed
	}
	return ""
}

// Registry holds one runtime Campaign per configured definition.
type Registry struct {
	campaigns map[string]*Campaign
	order     []string
}

// NewRegistry builds and initializes every configured campaign: the store
// is opened and migrated, the mail transport and notifier are wired up.
// Initialization is all-or-nothing; a failing campaign aborts startup.
func NewRegistry(cfg *config.Config, logger *slog.Logger) (*Registry, error) {
	reg := &Registry{campaigns: map[string]*Campaign{}}

	for _, cc := range cfg.Campaigns {
		c, err := build(cfg, cc, logger)
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("campaign %s: %w", cc.Name, err)
		}
		reg.campaigns[cc.Name] = c
		reg.order = append(reg.order, cc.Name)
	}

	return reg, nil
}

func build(cfg *config.Config, cc config.CampaignConfig, logger *slog.Logger) (*Campaign, error) {
	db, err := store.Open(cc.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	m := mailer.NewSMTP(cc.SMTP.Host, cc.SMTP.Port, cc.SMTP.Username, cfg.Secrets.SMTPPassword, logger)

	return &Campaign{
		Name:        cc.Name,
		Subject:     cc.Email.Subject,
		Template:    cc.Email.Template,
		Delay:       cc.Email.Delay,
		Links:       cc.Links,
		LandingPage: cc.LandingPage,
		From:        cc.SMTP.From,
		DB:          db,
		Leads:       store.NewLeads(db.DB),
		Mailer:      m,
		Notifier:    mailer.NewNotifier(m, cc.SMTP.From, cc.SMTP.NotifyTo, logger),
		baseURL:     strings.TrimRight(cfg.Server.BaseURL, "/"),
	}, nil
}

// Get returns the campaign for name, or ErrUnknownCampaign.
func (r *Registry) Get(name string) (*Campaign, error) {
	c, ok := r.campaigns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCampaign, name)
	}
	return c, nil
}

// All returns every campaign in configuration order.
func (r *Registry) All() []*Campaign {
	out := make([]*Campaign, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.campaigns[name])
	}
	return out
}

// Close closes every campaign store.
func (r *Registry) Close() {
	for _, c := range r.campaigns {
		if c.DB != nil {
			c.DB.Close()
		}
	}
}
