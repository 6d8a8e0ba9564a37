// Package track serves the public tracking surface: the open pixel, the
// click redirect and the marker landing endpoints. Everything here is
// reachable without authentication, so responses never reveal whether a
// token resolved; an unknown token gets the same pixel or redirect as a
// known one.
package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkedz/outreach/internal/campaign"
	"github.com/mkedz/outreach/internal/lead"
	"github.com/mkedz/outreach/internal/metrics"
	"github.com/mkedz/outreach/internal/store"
)

// pixelGIF is a 1x1 transparent GIF, served for every open request.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, // GIF89a
	0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0xff, 0xff,
	0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00,
	0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
	0x02, 0x02, 0x44, 0x01, 0x00,
	0x3b,
}

const notifyTimeout = 30 * time.Second

// Handler serves the tracking endpoints for all campaigns.
type Handler struct {
	registry *campaign.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewHandler creates the tracking handler.
func NewHandler(reg *campaign.Registry, m *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		registry: reg,
		metrics:  m,
		logger:   logger.With("component", "track"),
	}
}

// RegisterRoutes registers the public tracking routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/track/open", h.handleOpen)
	r.Get("/track/click", h.handleClick)
	r.Get("/interested", h.handleInterested)
	r.Get("/unsubscribed", h.handleUnsubscribed)
}

// handleOpen records a pixel open. The pixel is returned unconditionally:
// mail clients expect an image and the response must not disclose whether
// the token was recognized.
func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	campaignName := r.URL.Query().Get("campaign")
	defer h.writePixel(w)

	c, err := h.registry.Get(campaignName)
	if err != nil {
		// Fixed label: the query value is attacker-controlled and must
		// not become metric cardinality.
		h.countUnknown("unknown", "open")
		return
	}
	if token == "" {
		h.countUnknown(c.Name, "open")
		return
	}

	l, out, err := c.Leads.ApplyTrackingEvent(r.Context(), token, lead.Event{Kind: lead.EventOpen})
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.countUnknown(c.Name, "open")
		return
	case err != nil:
		h.logger.Error("failed to record open", "campaign", c.Name, "error", err)
		return
	}

	h.metrics.OpensTotal.WithLabelValues(c.Name).Inc()
	h.logger.Info("open recorded", "campaign", c.Name, "email", l.Email,
		"status", out.Next, "first_open", out.FirstOpen)
}

// handleClick records a link click and redirects to the wrapped destination.
// A missing token or destination is a malformed link, not a tracking miss,
// and is rejected before any store access. Past that point the redirect
// always happens; a recording failure must not strand the visitor.
func (h *Handler) handleClick(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	dest := r.URL.Query().Get("url")
	campaignName := r.URL.Query().Get("campaign")

	if token == "" || dest == "" {
		http.Error(w, "missing token or url", http.StatusBadRequest)
		return
	}
	defer http.Redirect(w, r, dest, http.StatusFound)

	c, err := h.registry.Get(campaignName)
	if err != nil {
		h.countUnknown("unknown", "click")
		return
	}

	marker := c.MarkerFor(dest)
	l, out, err := c.Leads.ApplyTrackingEvent(r.Context(), token, lead.Event{
		Kind:   lead.EventClick,
		Marker: marker,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.countUnknown(c.Name, "click")
		return
	case err != nil:
		h.logger.Error("failed to record click", "campaign", c.Name, "error", err)
		return
	}

	h.metrics.ClicksTotal.WithLabelValues(c.Name, markerLabel(marker)).Inc()
	h.logger.Info("click recorded", "campaign", c.Name, "email", l.Email,
		"status", out.Next, "marker", markerLabel(marker))

	if out.Changed && marker != "" {
		h.notify(c, l, marker)
	}
}

// handleInterested is the landing target of the interested marker. It is
// stateless; the status change already happened in the click redirect.
func (h *Handler) handleInterested(w http.ResponseWriter, r *http.Request) {
	campaignName := r.URL.Query().Get("campaign")
	if c, err := h.registry.Get(campaignName); err == nil && c.LandingPage != "" {
		http.Redirect(w, r, c.LandingPage, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, interestedPage)
}

// handleUnsubscribed is the landing target of the unsubscribe marker,
// also stateless.
func (h *Handler) handleUnsubscribed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, unsubscribedPage)
}

// notify fires the operator notification for a marker transition. It only
// runs when the transition actually changed the status, so a repeated click
// never produces a second notification. Delivery is detached from the
// request so the visitor's redirect is not delayed by SMTP.
func (h *Handler) notify(c *campaign.Campaign, l *lead.Lead, marker lead.Status) {
	var subject, kind string
	switch marker {
	case lead.StatusGreen:
		subject = fmt.Sprintf("New Interested Lead: %s", l.Email)
		kind = "interested"
	case lead.StatusRed:
		subject = fmt.Sprintf("Lead Unsubscribed: %s", l.Email)
		kind = "unsubscribed"
	default:
		return
	}

	body := fmt.Sprintf("Campaign: %s\nLead: %s %s\nStatus: %s\nInteractions: %d\n",
		c.Name, l.Email, l.FirstName, l.Status, l.InteractCount)

	h.metrics.NotificationsTotal.WithLabelValues(c.Name, kind).Inc()
	notifier := c.Notifier
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		notifier.Notify(ctx, subject, body)
	}()
}

func (h *Handler) writePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func (h *Handler) countUnknown(campaignName, event string) {
	h.metrics.UnknownTokenTotal.WithLabelValues(campaignName, event).Inc()
	h.logger.Warn("tracking request with unknown token or campaign",
		"campaign", campaignName, "event", event)
}

func markerLabel(marker lead.Status) string {
	if marker == "" {
		return "none"
	}
	return string(marker)
}

const interestedPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Thank you</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h1>Thank you for your interest!</h1>
<p>We will be in touch shortly.</p>
</body>
</html>`

const unsubscribedPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Unsubscribed</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h1>You have been unsubscribed.</h1>
<p>You will not receive any further emails from this campaign.</p>
</body>
</html>`
