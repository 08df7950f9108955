// internal/workers/loan/submit-application/models.go
package submitapplication

type Input struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Income    float64 `json:"income"`
	Amount    float64 `json:"amount"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	Approved          bool   `json:"approved"`
	Reason            string `json:"reason"`
	CreatedAt         string `json:"createdAt"` // ISO 8601
}
