// internal/models/notification.go
package models

// Notification describes one outbound message about an application.
type Notification struct {
	ID            string `json:"id"`
	ApplicationID string `json:"applicationId"`
	Channel       string `json:"channel"` // "email", "sns"
	Type          string `json:"type"`    // "decision", "funded"
	Status        string `json:"status"`  // "sent", "failed", "disabled"
	Subject       string `json:"subject,omitempty"`
	Body          string `json:"body"`
	SentAt        string `json:"sentAt"`
}

const (
	NotificationChannelEmail = "email"
	NotificationChannelSNS   = "sns"

	NotificationTypeDecision = "decision"
	NotificationTypeFunded   = "funded"

	NotificationStatusSent     = "sent"
	NotificationStatusFailed   = "failed"
	NotificationStatusDisabled = "disabled"
)
