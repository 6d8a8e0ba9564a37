package manage

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkedz/outreach/internal/campaign"
	"github.com/mkedz/outreach/internal/config"
	"github.com/mkedz/outreach/internal/lead"
)

func setup(t *testing.T, secrets config.Secrets) (*chi.Mux, *campaign.Campaign) {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{BaseURL: "https://go.example.com"},
		Campaigns: []config.CampaignConfig{{
			Name:     "poland",
			Database: filepath.Join(t.TempDir(), "poland.db"),
			SMTP:     config.SMTPConfig{Host: "smtp.example.com", Port: 465, Username: "u", From: "out@example.com"},
			Email:    config.EmailConfig{Subject: "Hello", Template: "email.html"},
		}},
		Secrets: secrets,
	}

	reg, err := campaign.NewRegistry(cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	c, err := reg.Get("poland")
	require.NoError(t, err)

	h, err := NewHandler(reg, secrets, slog.Default())
	require.NoError(t, err)

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, c
}

func plainSecrets() config.Secrets {
	return config.Secrets{
		SMTPPassword:      "x",
		DashboardUser:     "admin",
		DashboardPassword: "hunter2",
	}
}

func get(r http.Handler, target, user, pass string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postForm(r http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("admin", "hunter2")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r, _ := setup(t, plainSecrets())

	w := get(r, "/dashboard", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")

	w = get(r, "/dashboard", "admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "/dashboard", "nobody", "hunter2")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "/dashboard", "admin", "hunter2")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthBcryptHashWinsOverPlaintext(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	r, _ := setup(t, config.Secrets{
		SMTPPassword:          "x",
		DashboardUser:         "admin",
		DashboardPassword:     "ignored",
		DashboardPasswordHash: string(hash),
	})

	w := get(r, "/dashboard", "admin", "ignored")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "/dashboard", "admin", "s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDashboardListsLeadsByStatus(t *testing.T) {
	r, c := setup(t, plainSecrets())

	for _, email := range []string{"gray@x.com", "green@x.com"} {
		_, err := c.Leads.CreateIfAbsent(email, "")
		require.NoError(t, err)
	}
	require.NoError(t, c.Leads.SetStatus("green@x.com", lead.StatusGreen))

	w := get(r, "/dashboard?campaign=poland", "admin", "hunter2")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "gray@x.com")
	assert.Contains(t, body, "green@x.com")
	assert.Contains(t, body, "total: 2")
}

func TestDashboardCampaignSelection(t *testing.T) {
	r, _ := setup(t, plainSecrets())

	w := get(r, "/dashboard", "admin", "hunter2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/dashboard?campaign=poland")

	w = get(r, "/dashboard?campaign=nosuch", "admin", "hunter2")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMoveLead(t *testing.T) {
	r, c := setup(t, plainSecrets())
	_, err := c.Leads.CreateIfAbsent("a@x.com", "")
	require.NoError(t, err)

	w := postForm(r, "/leads/move", url.Values{
		"campaign": {"poland"}, "email": {"a@x.com"}, "status": {"blue"},
	})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard?campaign=poland", w.Header().Get("Location"))

	l, err := c.Leads.GetByEmail("a@x.com")
	require.NoError(t, err)
	assert.Equal(t, lead.StatusBlue, l.Status)

	w = postForm(r, "/leads/move", url.Values{
		"campaign": {"poland"}, "email": {"a@x.com"}, "status": {"purple"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postForm(r, "/leads/move", url.Values{
		"campaign": {"poland"}, "email": {"ghost@x.com"}, "status": {"blue"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteLead(t *testing.T) {
	r, c := setup(t, plainSecrets())
	_, err := c.Leads.CreateIfAbsent("a@x.com", "")
	require.NoError(t, err)

	w := postForm(r, "/leads/delete", url.Values{
		"campaign": {"poland"}, "email": {"a@x.com"},
	})
	assert.Equal(t, http.StatusSeeOther, w.Code)

	_, err = c.Leads.GetByEmail("a@x.com")
	assert.Error(t, err)
}

func TestSetNotes(t *testing.T) {
	r, c := setup(t, plainSecrets())
	_, err := c.Leads.CreateIfAbsent("a@x.com", "")
	require.NoError(t, err)

	w := postForm(r, "/leads/notes", url.Values{
		"campaign": {"poland"}, "email": {"a@x.com"}, "notes": {"call next week"},
	})
	assert.Equal(t, http.StatusSeeOther, w.Code)

	l, err := c.Leads.GetByEmail("a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "call next week", l.Notes)
}
