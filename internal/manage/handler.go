// Package manage serves the operator dashboard: per-status lead tables,
// manual status moves, notes and deletion. Everything here sits behind
// basic auth; the tracking surface lives in the track package.
package manage

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/mkedz/outreach/internal/campaign"
	"github.com/mkedz/outreach/internal/config"
	"github.com/mkedz/outreach/internal/lead"
	"github.com/mkedz/outreach/internal/store"
)

// Handler serves the management dashboard and lead operations.
type Handler struct {
	registry *campaign.Registry
	secrets  config.Secrets
	views    *viewEngine
	logger   *slog.Logger
}

// NewHandler creates the management handler.
func NewHandler(reg *campaign.Registry, secrets config.Secrets, logger *slog.Logger) (*Handler, error) {
	views, err := newViewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard templates: %w", err)
	}
	return &Handler{
		registry: reg,
		secrets:  secrets,
		views:    views,
		logger:   logger.With("component", "manage"),
	}, nil
}

// RegisterRoutes registers the dashboard routes behind basic auth.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(BasicAuth(h.secrets, h.logger))
		r.Get("/dashboard", h.handleDashboard)
		r.Post("/leads/move", h.handleMove)
		r.Post("/leads/delete", h.handleDelete)
		r.Post("/leads/notes", h.handleNotes)
	})
}

type campaignSummary struct {
	Name  string
	Total int
}

type leadRow struct {
	lead.Lead
	Details []lead.Detail
}

type statusSection struct {
	Status lead.Status
	Leads  []leadRow
}

type dashboardData struct {
	Campaign  string
	Statuses  []lead.Status
	Counts    map[lead.Status]int
	Total     int
	Sections  []statusSection
	Search    string
	SortBy    string
	SortOrder string
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("campaign")
	if name == "" {
		h.renderSelect(w)
		return
	}

	c, err := h.registry.Get(name)
	if err != nil {
		http.Error(w, "unknown campaign", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	filter := store.ListFilter{
		Search:    q.Get("search"),
		SortBy:    q.Get("sort"),
		SortOrder: q.Get("order"),
	}
	if filter.SortBy == "" {
		filter.SortBy = "created"
	}
	if filter.SortOrder == "" {
		filter.SortOrder = "desc"
	}

	counts, err := c.Leads.CountByStatus()
	if err != nil {
		h.fail(w, "failed to count leads", err)
		return
	}

	data := dashboardData{
		Campaign:  c.Name,
		Statuses:  lead.Statuses,
		Counts:    counts,
		Search:    filter.Search,
		SortBy:    filter.SortBy,
		SortOrder: filter.SortOrder,
	}
	for _, n := range counts {
		data.Total += n
	}

	for _, status := range lead.Statuses {
		leads, err := c.Leads.ListByStatus(status, filter)
		if err != nil {
			h.fail(w, "failed to list leads", err)
			return
		}

		section := statusSection{Status: status}
		for _, l := range leads {
			row := leadRow{Lead: l}
			// Submitted contact details are only interesting once a
			// lead has shown interest.
			if status == lead.StatusGreen {
				row.Details, err = c.Leads.DetailsFor(l.Email)
				if err != nil {
					h.fail(w, "failed to load lead details", err)
					return
				}
			}
			section.Leads = append(section.Leads, row)
		}
		data.Sections = append(data.Sections, section)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.views.render(w, "dashboard", data); err != nil {
		h.logger.Error("failed to render dashboard", "error", err)
	}
}

func (h *Handler) renderSelect(w http.ResponseWriter) {
	var summaries []campaignSummary
	for _, c := range h.registry.All() {
		counts, err := c.Leads.CountByStatus()
		if err != nil {
			h.fail(w, "failed to count leads", err)
			return
		}
		s := campaignSummary{Name: c.Name}
		for _, n := range counts {
			s.Total += n
		}
		summaries = append(summaries, s)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.views.render(w, "select", map[string]any{"Campaigns": summaries}); err != nil {
		h.logger.Error("failed to render campaign list", "error", err)
	}
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	c, email, ok := h.leadTarget(w, r)
	if !ok {
		return
	}

	status := lead.Status(r.PostFormValue("status"))
	if !status.Valid() {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	if err := c.Leads.SetStatus(email, status); err != nil {
		h.leadError(w, err)
		return
	}

	h.logger.Info("lead moved", "campaign", c.Name, "email", email, "status", status)
	h.backToDashboard(w, r, c.Name)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	c, email, ok := h.leadTarget(w, r)
	if !ok {
		return
	}

	if err := c.Leads.Delete(email); err != nil {
		h.leadError(w, err)
		return
	}

	h.logger.Info("lead deleted", "campaign", c.Name, "email", email)
	h.backToDashboard(w, r, c.Name)
}

func (h *Handler) handleNotes(w http.ResponseWriter, r *http.Request) {
	c, email, ok := h.leadTarget(w, r)
	if !ok {
		return
	}

	if err := c.Leads.SetNotes(email, r.PostFormValue("notes")); err != nil {
		h.leadError(w, err)
		return
	}

	h.backToDashboard(w, r, c.Name)
}

// leadTarget resolves the campaign and lead email a mutation form points at.
func (h *Handler) leadTarget(w http.ResponseWriter, r *http.Request) (*campaign.Campaign, string, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return nil, "", false
	}

	email := r.PostFormValue("email")
	if email == "" {
		http.Error(w, "missing email", http.StatusBadRequest)
		return nil, "", false
	}

	c, err := h.registry.Get(r.PostFormValue("campaign"))
	if err != nil {
		http.Error(w, "unknown campaign", http.StatusNotFound)
		return nil, "", false
	}

	return c, email, true
}

func (h *Handler) leadError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}
	h.fail(w, "lead operation failed", err)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, "error", err)
	http.Error(w, msg, http.StatusInternalServerError)
}

func (h *Handler) backToDashboard(w http.ResponseWriter, r *http.Request, campaignName string) {
	http.Redirect(w, r, "/dashboard?campaign="+url.QueryEscape(campaignName), http.StatusSeeOther)
}
