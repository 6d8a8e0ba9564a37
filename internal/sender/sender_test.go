package sender

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkedz/outreach/internal/campaign"
	"github.com/mkedz/outreach/internal/config"
	"github.com/mkedz/outreach/internal/lead"
	"github.com/mkedz/outreach/internal/mailer"
	"github.com/mkedz/outreach/internal/metrics"
)

// fakeMailer records sent messages and fails on demand.
type fakeMailer struct {
	mu       sync.Mutex
	sent     []*mailer.Message
	failFor  map[string]bool
	failNext error
}

func (f *fakeMailer) Send(ctx context.Context, msg *mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	if f.failFor[msg.To] {
		return errors.New("transport error")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []string{}
	for _, m := range f.sent {
		out = append(out, m.To)
	}
	return out
}

const testTemplate = `<html><body>
<p>Hi {{.FirstName}},</p>
<a href="{{index .Links "company"}}">Our company</a>
<a href="{{.InterestedURL}}">I'm interested</a>
<a href="{{.UnsubscribeURL}}">Unsubscribe</a>
<img src="{{.PixelURL}}?v={{.CacheBuster}}" width="1" height="1">
</body></html>`

func setup(t *testing.T) (*Sender, *campaign.Campaign, *fakeMailer) {
	t.Helper()

	dir := t.TempDir()
	tmplDir := filepath.Join(dir, "templates")
	require.NoError(t, os.MkdirAll(tmplDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmplDir, "email.html"), []byte(testTemplate), 0644))

	cfg := &config.Config{
		Server: config.ServerConfig{BaseURL: "https://go.example.com"},
		Campaigns: []config.CampaignConfig{{
			Name:     "poland",
			Database: filepath.Join(dir, "poland.db"),
			SMTP:     config.SMTPConfig{Host: "smtp.example.com", Port: 465, Username: "u", From: "out@example.com"},
			Email:    config.EmailConfig{Subject: "Hello", Template: "email.html", Delay: time.Millisecond},
			Links:    map[string]string{"company": "https://www.example.com"},
		}},
		Secrets: config.Secrets{SMTPPassword: "x"},
	}

	reg, err := campaign.NewRegistry(cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	c, err := reg.Get("poland")
	require.NoError(t, err)

	fake := &fakeMailer{failFor: map[string]bool{}}
	c.Mailer = fake

	return New(tmplDir, slog.Default(), metrics.New()), c, fake
}

func TestSendSuccess(t *testing.T) {
	s, c, fake := setup(t)
	_, err := c.Leads.CreateIfAbsent("a@x.com", "Ann")
	require.NoError(t, err)

	out, err := s.Send(context.Background(), c, "a@x.com", Options{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)

	require.Len(t, fake.sent, 1)
	msg := fake.sent[0]
	assert.Equal(t, "out@example.com", msg.From)
	assert.Equal(t, "Hello", msg.Subject)
	assert.Contains(t, msg.HTML, "Hi Ann,")
	token := lead.Token("a@x.com")
	assert.Contains(t, msg.HTML, "/track/click?token="+token)
	assert.Contains(t, msg.HTML, "/track/open?token="+token)

	l, err := c.Leads.GetByEmail("a@x.com")
	require.NoError(t, err)
	assert.True(t, l.EmailSent)
	assert.Equal(t, "email.html", l.SentTemplate)
	assert.Zero(t, l.InteractCount, "a send never counts as an interaction")
}

func TestSendFailureRecorded(t *testing.T) {
	s, c, fake := setup(t)
	_, err := c.Leads.CreateIfAbsent("a@x.com", "")
	require.NoError(t, err)
	fake.failFor["a@x.com"] = true

	out, err := s.Send(context.Background(), c, "a@x.com", Options{})
	require.NoError(t, err, "transport failures are recorded, not raised")
	assert.Equal(t, OutcomeFailed, out)

	l, err := c.Leads.GetByEmail("a@x.com")
	require.NoError(t, err)
	assert.False(t, l.EmailSent)
}

func TestSendSkipsDecidedLeads(t *testing.T) {
	s, c, fake := setup(t)

	for email, status := range map[string]lead.Status{
		"green@x.com": lead.StatusGreen,
		"red@x.com":   lead.StatusRed,
		"blue@x.com":  lead.StatusBlue,
	} {
		_, err := c.Leads.CreateIfAbsent(email, "")
		require.NoError(t, err)
		require.NoError(t, c.Leads.SetStatus(email, status))

		out, err := s.Send(context.Background(), c, email, Options{})
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, out, email)
	}

	assert.Empty(t, fake.sentTo())
}

func TestPreview(t *testing.T) {
	s, c, _ := setup(t)

	html, err := s.Preview(c, c.Template)
	require.NoError(t, err)
	assert.Contains(t, html, "Hi Alex,")
	assert.Contains(t, html, "/track/click?token=")
}
