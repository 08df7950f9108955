// Package underwriting validates loan submissions and computes the approval
// decision. Validate and Decide are pure; Engine adds logging and metrics.
package underwriting

import (
	"encoding/json"
	"reflect"
	"strings"
	"unicode/utf16"

	"loan-api/internal/common/logger"
	"loan-api/internal/common/metrics"
	"loan-api/internal/models"
)

const (
	// IncomeThreshold is the income above which an applicant qualifies on income alone.
	IncomeThreshold = 30000.0
	// LargeLoanThreshold is the amount above which a loan is auto-approved.
	LargeLoanThreshold = 40000.0

	ReasonIncomeMeetsMinimum = "Income meets minimum requirements"
	ReasonIncomeBelowMinimum = "Income below minimum threshold"
	ReasonLargeLoan          = "Large loan auto-approved"

	minNameLength = 2
)

// Violation messages, in evaluation order.
const (
	ViolationFirstName = "firstName is required (min 2 characters)"
	ViolationLastName  = "lastName is required (min 2 characters)"
	ViolationEmail     = "valid email is required"
	ViolationIncome    = "income must be a positive number"
	ViolationAmount    = "amount must be a positive number"
)

// Validate checks the five submission fields and returns every violation.
// An empty result means the input may be decided. Zero and empty values count
// as missing; numbers must be JSON numbers, not numeric strings.
func Validate(fields map[string]interface{}) []string {
	violations := []string{}

	if !isName(fields["firstName"]) {
		violations = append(violations, ViolationFirstName)
	}
	if !isName(fields["lastName"]) {
		violations = append(violations, ViolationLastName)
	}
	if s, ok := fields["email"].(string); !ok || !strings.Contains(s, "@") {
		violations = append(violations, ViolationEmail)
	}
	if n, ok := number(fields["income"]); !ok || n <= 0 {
		violations = append(violations, ViolationIncome)
	}
	if n, ok := number(fields["amount"]); !ok || n <= 0 {
		violations = append(violations, ViolationAmount)
	}

	return violations
}

// Decide applies the income rule and then the large-loan override. The
// override runs second so its reason replaces the income reason.
func Decide(income, amount float64) models.Decision {
	var d models.Decision
	if income > IncomeThreshold {
		d.Approved = true
		d.Reason = ReasonIncomeMeetsMinimum
	} else {
		d.Approved = false
		d.Reason = ReasonIncomeBelowMinimum
	}

	if amount > LargeLoanThreshold {
		d.Approved = true
		d.Reason = ReasonLargeLoan
	}

	return d
}

// FromFields converts a field map that passed Validate into a SubmitInput.
func FromFields(fields map[string]interface{}) models.SubmitInput {
	in := models.SubmitInput{}
	in.FirstName, _ = fields["firstName"].(string)
	in.LastName, _ = fields["lastName"].(string)
	in.Email, _ = fields["email"].(string)
	in.Income, _ = number(fields["income"])
	in.Amount, _ = number(fields["amount"])
	return in
}

// Fields is the inverse of FromFields, used when typed input has to be re-validated.
func Fields(in models.SubmitInput) map[string]interface{} {
	return map[string]interface{}{
		"firstName": in.FirstName,
		"lastName":  in.LastName,
		"email":     in.Email,
		"income":    in.Income,
		"amount":    in.Amount,
	}
}

// isName measures length in UTF-16 code units, so a character outside the
// Basic Multilingual Plane counts twice.
func isName(v interface{}) bool {
	s, ok := v.(string)
	return ok && len(utf16.Encode([]rune(s))) >= minNameLength
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool, string:
		return 0, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// Engine wraps Validate and Decide with logging and validation metrics.
type Engine struct {
	logger logger.Logger
}

func NewEngine(log logger.Logger) *Engine {
	return &Engine{logger: log.WithFields(map[string]interface{}{"component": "underwriting"})}
}

func (e *Engine) Validate(fields map[string]interface{}) []string {
	violations := Validate(fields)
	if len(violations) > 0 {
		metrics.ValidationFailures.Inc()
		e.logger.Info("application rejected by validation", map[string]interface{}{
			"violations": violations,
		})
	}
	return violations
}

func (e *Engine) Decide(income, amount float64) models.Decision {
	d := Decide(income, amount)
	e.logger.Debug("decision computed", map[string]interface{}{
		"income":   income,
		"amount":   amount,
		"approved": d.Approved,
		"reason":   d.Reason,
	})
	return d
}
