// internal/workers/loan/update-application-status/models.go
package updateapplicationstatus

type Input struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	UpdatedAt         string `json:"updatedAt"` // ISO 8601
}
