package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkedz/outreach/internal/lead"
)

// Leads is the repository for one campaign's lead table.
type Leads struct {
	db *sql.DB
}

// NewLeads creates a lead repository over db.
func NewLeads(db *sql.DB) *Leads {
	return &Leads{db: db}
}

// ListFilter narrows and orders ListByStatus results.
type ListFilter struct {
	Search    string // matches email, first_name or notes
	SortBy    string // "created", "interact_count" or "last_interact"
	SortOrder string // "asc" or "desc"
}

// CreateIfAbsent inserts a new gray lead. An existing row for the same email
// is left untouched; the return value reports whether a row was inserted.
func (r *Leads) CreateIfAbsent(email, firstName string) (bool, error) {
	now := time.Now().UTC()
	res, err := r.db.Exec(`
		INSERT OR IGNORE INTO leads (email, first_name, status, token, created_at, last_status_change_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		email, firstName, lead.StatusGray, lead.Token(email), now, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByEmail returns the lead for email, or ErrNotFound.
func (r *Leads) GetByEmail(email string) (*lead.Lead, error) {
	return r.get("email = ?", email)
}

// GetByToken resolves a tracking token through the token index, or ErrNotFound.
func (r *Leads) GetByToken(token string) (*lead.Lead, error) {
	return r.get("token = ?", token)
}

func (r *Leads) get(where string, arg any) (*lead.Lead, error) {
	row := r.db.QueryRow(`
		SELECT email, first_name, status, token, created_at, last_status_change_at,
		       email_sent, sent_template, interact_count, opened_at, last_interact_at, notes
		FROM leads WHERE `+where, arg)
	return scanLead(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*lead.Lead, error) {
	l := &lead.Lead{}
	var opened, lastInteract sql.NullTime
	err := row.Scan(&l.Email, &l.FirstName, &l.Status, &l.Token, &l.CreatedAt, &l.LastStatusChangeAt,
		&l.EmailSent, &l.SentTemplate, &l.InteractCount, &opened, &lastInteract, &l.Notes)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if opened.Valid {
		t := opened.Time
		l.OpenedAt = &t
	}
	if lastInteract.Valid {
		t := lastInteract.Time
		l.LastInteractAt = &t
	}
	return l, nil
}

// UpdateSendOutcome records the result of an outbound send attempt.
// A successful send stamps the template and send time; sending never counts
// as an interaction.
func (r *Leads) UpdateSendOutcome(email string, succeeded bool, templateID string) error {
	var err error
	if succeeded {
		_, err = r.db.Exec(`
			UPDATE leads SET email_sent = 1, sent_template = ?, last_status_change_at = ?
			WHERE email = ?`,
			templateID, time.Now().UTC(), email,
		)
	} else {
		_, err = r.db.Exec(`UPDATE leads SET email_sent = 0 WHERE email = ?`, email)
	}
	if err != nil {
		return fmt.Errorf("failed to record send outcome: %w", err)
	}
	return nil
}

// ApplyTrackingEvent resolves token, runs the status state machine and writes
// the counter, status and timestamp effects in one transaction. The read that
// decides the transition and the write are atomic, so concurrent events on
// the same lead cannot lose an increment or overwrite each other's status.
//
// It returns the lead as it looks after the event, together with the
// transition outcome. Unknown tokens return ErrNotFound without touching
// any row.
func (r *Leads) ApplyTrackingEvent(ctx context.Context, token string, ev lead.Event) (*lead.Lead, lead.Outcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, lead.Outcome{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := scanLead(tx.QueryRow(`
		SELECT email, first_name, status, token, created_at, last_status_change_at,
		       email_sent, sent_template, interact_count, opened_at, last_interact_at, notes
		FROM leads WHERE token = ?`, token))
	if err != nil {
		return nil, lead.Outcome{}, err
	}

	out := lead.Transition(l.Status, l.OpenedAt != nil, ev)
	now := time.Now().UTC()

	l.InteractCount++
	l.LastInteractAt = &now
	if out.FirstOpen {
		l.OpenedAt = &now
	}
	if out.Changed {
		l.Status = out.Next
		l.LastStatusChangeAt = now
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE leads SET status = ?, interact_count = ?, opened_at = ?, last_interact_at = ?, last_status_change_at = ?
		WHERE email = ?`,
		l.Status, l.InteractCount, nullTime(l.OpenedAt), now, l.LastStatusChangeAt, l.Email,
	)
	if err != nil {
		return nil, lead.Outcome{}, fmt.Errorf("failed to apply tracking event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, lead.Outcome{}, fmt.Errorf("failed to commit tracking event: %w", err)
	}
	return l, out, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// SetStatus is the manual dashboard override: it moves the lead
// unconditionally and re-stamps the status-change timestamp.
func (r *Leads) SetStatus(email string, status lead.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	res, err := r.db.Exec(`
		UPDATE leads SET status = ?, last_status_change_at = ? WHERE email = ?`,
		status, time.Now().UTC(), email,
	)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	return affectedOrNotFound(res)
}

// SetNotes replaces the operator annotation on a lead.
func (r *Leads) SetNotes(email, notes string) error {
	res, err := r.db.Exec(`UPDATE leads SET notes = ? WHERE email = ?`, notes, email)
	if err != nil {
		return fmt.Errorf("failed to set notes: %w", err)
	}
	return affectedOrNotFound(res)
}

// Delete removes a lead and its details permanently, in one transaction.
func (r *Leads) Delete(email string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM lead_details WHERE email = ?`, email); err != nil {
		return fmt.Errorf("failed to delete lead details: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM leads WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return err
	}
	return tx.Commit()
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByStatus returns all leads in status, filtered and ordered per f.
func (r *Leads) ListByStatus(status lead.Status, f ListFilter) ([]lead.Lead, error) {
	query := `
		SELECT email, first_name, status, token, created_at, last_status_change_at,
		       email_sent, sent_template, interact_count, opened_at, last_interact_at, notes
		FROM leads WHERE status = ?`
	args := []any{status}

	if f.Search != "" {
		query += " AND (email LIKE ? OR first_name LIKE ? OR notes LIKE ?)"
		pat := "%" + f.Search + "%"
		args = append(args, pat, pat, pat)
	}

	order := "DESC"
	if f.SortOrder == "asc" {
		order = "ASC"
	}
	switch f.SortBy {
	case "interact_count":
		query += " ORDER BY interact_count " + order + ", email " + order
	case "last_interact":
		query += " ORDER BY COALESCE(last_interact_at, '1970-01-01') " + order + ", email " + order
	default:
		query += " ORDER BY created_at " + order + ", email " + order
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []lead.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

// ListEligible returns the leads a batch run should contact: still gray and
// without a recorded successful send.
func (r *Leads) ListEligible() ([]lead.Lead, error) {
	rows, err := r.db.Query(`
		SELECT email, first_name, status, token, created_at, last_status_change_at,
		       email_sent, sent_template, interact_count, opened_at, last_interact_at, notes
		FROM leads WHERE status = ? AND email_sent = 0
		ORDER BY created_at ASC`, lead.StatusGray)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []lead.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

// CountByStatus returns the number of leads per status.
func (r *Leads) CountByStatus() (map[lead.Status]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[lead.Status]int{}
	for rows.Next() {
		var s lead.Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

// AddDetail attaches form-submission metadata to a lead.
func (r *Leads) AddDetail(d *lead.Detail) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.SubmittedAt.IsZero() {
		d.SubmittedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(`
		INSERT INTO lead_details (id, email, name, position, phone, message, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Email, d.Name, d.Position, d.Phone, d.Message, d.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add lead detail: %w", err)
	}
	return nil
}

// DetailsFor returns all details recorded for a lead, newest first.
func (r *Leads) DetailsFor(email string) ([]lead.Detail, error) {
	rows, err := r.db.Query(`
		SELECT id, email, name, position, phone, message, submitted_at
		FROM lead_details WHERE email = ?
		ORDER BY submitted_at DESC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := []lead.Detail{}
	for rows.Next() {
		var d lead.Detail
		if err := rows.Scan(&d.ID, &d.Email, &d.Name, &d.Position, &d.Phone, &d.Message, &d.SubmittedAt); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// Prune removes detail rows whose lead no longer exists. The schema has no
// foreign key and deletion cascades manually, so imports from older databases
// can leave orphans behind.
func (r *Leads) Prune() (int, error) {
	res, err := r.db.Exec(`DELETE FROM lead_details WHERE email NOT IN (SELECT email FROM leads)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune lead details: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
