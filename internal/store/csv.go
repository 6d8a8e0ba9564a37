package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/mail"
	"strconv"
	"strings"

	"github.com/mkedz/outreach/internal/lead"
)

// ImportResult holds the outcome of a CSV import.
type ImportResult struct {
	Total    int      `json:"total"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"` // duplicates
	Invalid  int      `json:"invalid"` // unparseable addresses
	Errors   []string `json:"errors,omitempty"`
}

// ImportCSV loads leads from CSV data. The header must contain an email
// column; a first name column is optional. Invalid addresses are rejected
// before any store access, duplicates are skipped without touching the
// existing row, so re-importing the same file is a no-op.
func (r *Leads) ImportCSV(reader io.Reader) (*ImportResult, error) {
	result := &ImportResult{}

	cr := csv.NewReader(reader)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	emailIdx, nameIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "email", "e-mail", "email_address":
			emailIdx = i
		case "first_name", "firstname", "name":
			nameIdx = i
		}
	}
	if emailIdx == -1 {
		return nil, fmt.Errorf("email column not found in CSV")
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", result.Total+1, err))
			result.Total++
			continue
		}

		result.Total++

		if emailIdx >= len(record) {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: missing email column", result.Total))
			result.Invalid++
			continue
		}

		email := strings.TrimSpace(record[emailIdx])
		if _, err := mail.ParseAddress(email); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: invalid email %q", result.Total, email))
			result.Invalid++
			continue
		}

		firstName := ""
		if nameIdx >= 0 && nameIdx < len(record) {
			firstName = strings.TrimSpace(record[nameIdx])
		}

		inserted, err := r.CreateIfAbsent(email, firstName)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", result.Total, email, err)
		}
		if inserted {
			result.Imported++
		} else {
			result.Skipped++
		}
	}

	return result, nil
}

// ExportCSV writes all leads in status as CSV: email, first_name, interact_count.
func (r *Leads) ExportCSV(w io.Writer, status lead.Status) error {
	leads, err := r.ListByStatus(status, ListFilter{SortOrder: "asc"})
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"email", "first_name", "interact_count"}); err != nil {
		return err
	}
	for _, l := range leads {
		if err := cw.Write([]string{l.Email, l.FirstName, strconv.Itoa(l.InteractCount)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
