package lead

import "time"

// Status is the funnel position of a lead.
type Status string

const (
	StatusGray   Status = "gray"   // never contacted
	StatusYellow Status = "yellow" // opened or clicked, undecided
	StatusGreen  Status = "green"  // explicitly interested
	StatusBlue   Status = "blue"   // contacted out-of-band
	StatusRed    Status = "red"    // unsubscribed
)

// Statuses lists all valid statuses in dashboard display order.
var Statuses = []Status{StatusGreen, StatusBlue, StatusYellow, StatusGray, StatusRed}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusGray, StatusYellow, StatusGreen, StatusBlue, StatusRed:
		return true
	}
	return false
}

// Decided reports whether the lead has reached a state that automated
// sending and generic click promotion must not touch.
func (s Status) Decided() bool {
	return s == StatusGreen || s == StatusRed || s == StatusBlue
}

// Lead is a single prospect, unique by email within a campaign.
type Lead struct {
	Email              string     `json:"email"`
	FirstName          string     `json:"first_name"`
	Status             Status     `json:"status"`
	Token              string     `json:"token"`
	CreatedAt          time.Time  `json:"created_at"`
	LastStatusChangeAt time.Time  `json:"last_status_change_at"`
	EmailSent          bool       `json:"email_sent"`
	SentTemplate       string     `json:"sent_template"`
	InteractCount      int        `json:"interact_count"`
	OpenedAt           *time.Time `json:"opened_at,omitempty"`
	LastInteractAt     *time.Time `json:"last_interact_at,omitempty"`
	Notes              string     `json:"notes"`
}

// Detail is optional form-submission metadata attached to a lead.
type Detail struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Position    string    `json:"position"`
	Phone       string    `json:"phone"`
	Message     string    `json:"message"`
	SubmittedAt time.Time `json:"submitted_at"`
}
