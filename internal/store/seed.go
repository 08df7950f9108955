package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"loan-api/internal/common/errors"
	"loan-api/internal/common/validation"
	"loan-api/internal/models"
)

// seedSchema describes a seed file: a JSON array of application records.
const seedSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "firstName", "lastName", "email", "income", "amount", "status", "createdAt"],
    "properties": {
      "id":        {"type": "string", "pattern": "^APP-[0-9]{3,}$"},
      "firstName": {"type": "string", "minLength": 2},
      "lastName":  {"type": "string", "minLength": 2},
      "email":     {"type": "string", "pattern": "@"},
      "income":    {"type": "number", "minimum": 0},
      "amount":    {"type": "number", "minimum": 0},
      "status":    {"type": "string", "enum": ["pending", "approved", "rejected", "funded"]},
      "decision": {
        "oneOf": [
          {"type": "null"},
          {
            "type": "object",
            "required": ["approved", "reason"],
            "properties": {
              "approved": {"type": "boolean"},
              "reason":   {"type": "string"}
            }
          }
        ]
      },
      "createdAt": {"type": "string", "format": "date-time"},
      "updatedAt": {"type": "string", "format": "date-time"}
    }
  }
}`

// DefaultSeed returns the five demonstration records loaded at startup.
// Creation times are spread over the days before now.
func DefaultSeed(now time.Time) []models.Application {
	now = now.UTC().Truncate(time.Millisecond)
	day := 24 * time.Hour
	fundedAt := now.Add(-1 * day)

	return []models.Application{
		{
			ID: FormatID(1), FirstName: "Alice", LastName: "Johnson", Email: "alice.johnson@example.com",
			Income: 85000, Amount: 25000, Status: models.StatusApproved,
			Decision:  &models.Decision{Approved: true, Reason: "Income meets minimum requirements"},
			CreatedAt: now.Add(-5 * day),
		},
		{
			ID: FormatID(2), FirstName: "Bob", LastName: "Smith", Email: "bob.smith@example.com",
			Income: 22000, Amount: 15000, Status: models.StatusRejected,
			Decision:  &models.Decision{Approved: false, Reason: "Income below minimum threshold"},
			CreatedAt: now.Add(-4 * day),
		},
		{
			ID: FormatID(3), FirstName: "Carol", LastName: "Martinez", Email: "carol.martinez@example.com",
			Income: 120000, Amount: 75000, Status: models.StatusFunded,
			Decision:  &models.Decision{Approved: true, Reason: "Large loan auto-approved"},
			CreatedAt: now.Add(-3 * day),
			UpdatedAt: &fundedAt,
		},
		{
			ID: FormatID(4), FirstName: "David", LastName: "Lee", Email: "david.lee@example.com",
			Income: 45000, Amount: 10000, Status: models.StatusPending,
			CreatedAt: now.Add(-2 * day),
		},
		{
			ID: FormatID(5), FirstName: "Emma", LastName: "Wilson", Email: "emma.wilson@example.com",
			Income: 28000, Amount: 50000, Status: models.StatusApproved,
			Decision:  &models.Decision{Approved: true, Reason: "Large loan auto-approved"},
			CreatedAt: now.Add(-1 * day),
		},
	}
}

// LoadSeedFile reads a JSON array of applications and checks it against the
// seed schema before decoding.
func LoadSeedFile(path string) ([]models.Application, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	return ParseSeed(raw)
}

// ParseSeed validates and decodes seed data.
func ParseSeed(raw []byte) ([]models.Application, error) {
	result, err := validation.ValidateJSON(seedSchema, raw)
	if err != nil {
		return nil, errors.NewSeedDataInvalidError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewSeedDataInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var apps []models.Application
	if err := json.Unmarshal(raw, &apps); err != nil {
		return nil, errors.NewSeedDataInvalidError(err.Error())
	}

	seen := make(map[string]bool, len(apps))
	for _, app := range apps {
		if seen[app.ID] {
			return nil, errors.NewSeedDataInvalidError(fmt.Sprintf("duplicate id %s", app.ID))
		}
		seen[app.ID] = true
		if app.Income <= 0 || app.Amount <= 0 {
			return nil, errors.NewSeedDataInvalidError(fmt.Sprintf("%s: income and amount must be positive", app.ID))
		}
	}
	return apps, nil
}
