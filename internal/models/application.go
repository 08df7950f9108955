// internal/models/application.go
package models

import (
	"encoding/json"
	"time"
)

// TimestampLayout renders instants in UTC with exactly three fractional digits.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp formats t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Status is the mutable lifecycle tag of an application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusFunded   Status = "funded"
)

// Statuses returns the recognized statuses in canonical order.
func Statuses() []Status {
	return []Status{StatusPending, StatusApproved, StatusRejected, StatusFunded}
}

// StatusStrings is Statuses as plain strings, the form used in error bodies.
func StatusStrings() []string {
	statuses := Statuses()
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// ParseStatus reports whether raw is one of the recognized statuses.
func ParseStatus(raw string) (Status, bool) {
	for _, s := range Statuses() {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// Decision is computed once at submission time and never recomputed.
type Decision struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// Application is a single loan request record.
type Application struct {
	ID        string     `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Income    float64    `json:"income"`
	Amount    float64    `json:"amount"`
	Status    Status     `json:"status"`
	Decision  *Decision  `json:"decision"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// MarshalJSON writes the timestamps with a fixed millisecond precision;
// time.Time alone drops trailing zeros.
func (a Application) MarshalJSON() ([]byte, error) {
	type record Application
	out := struct {
		record
		CreatedAt string  `json:"createdAt"`
		UpdatedAt *string `json:"updatedAt,omitempty"`
	}{
		record:    record(a),
		CreatedAt: FormatTimestamp(a.CreatedAt),
	}
	if a.UpdatedAt != nil {
		updated := FormatTimestamp(*a.UpdatedAt)
		out.UpdatedAt = &updated
	}
	return json.Marshal(out)
}

// Clone returns a deep copy so callers never alias stored records.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	out := *a
	if a.Decision != nil {
		d := *a.Decision
		out.Decision = &d
	}
	if a.UpdatedAt != nil {
		t := *a.UpdatedAt
		out.UpdatedAt = &t
	}
	return &out
}

// SubmitInput holds the five user-supplied fields after validation.
type SubmitInput struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Income    float64 `json:"income"`
	Amount    float64 `json:"amount"`
}
