package migration

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ValidationError is one attribute that differs between the two stores.
type ValidationError struct {
	Attribute      string `json:"attribute"`
	PrimaryValue   any    `json:"primary_value"`
	SecondaryValue any    `json:"secondary_value"`
	Message        string `json:"message"`
}

// ValidationReport is the outcome of comparing one dual read.
type ValidationReport struct {
	EntityType       string            `json:"entity_type"`
	EntityID         string            `json:"entity_id,omitempty"`
	OperationType    string            `json:"operation_type"`
	CorrelationID    string            `json:"correlation_id"`
	ValidationPassed bool              `json:"validation_passed"`
	Errors           []ValidationError `json:"errors"`
	PrimaryData      any               `json:"primary_data"`
	SecondaryData    any               `json:"secondary_data"`
	Timestamp        time.Time         `json:"timestamp"`
}

// NewValidationError builds a divergence record. An empty message gets the
// default "<attribute> mismatch: Primary=<json>, Secondary=<json>".
func NewValidationError(attribute string, primary, secondary any, message string) ValidationError {
	if message == "" {
		message = fmt.Sprintf("%s mismatch: Primary=%s, Secondary=%s", attribute, jsonString(primary), jsonString(secondary))
	}
	return ValidationError{
		Attribute:      attribute,
		PrimaryValue:   primary,
		SecondaryValue: secondary,
		Message:        message,
	}
}

// NewValidationReport assembles a report; it passes when errs is empty.
func NewValidationReport(entityType, operationType, correlationID string, primary, secondary any, errs []ValidationError, entityID string) *ValidationReport {
	return &ValidationReport{
		EntityType:       entityType,
		EntityID:         entityID,
		OperationType:    operationType,
		CorrelationID:    correlationID,
		ValidationPassed: len(errs) == 0,
		Errors:           errs,
		PrimaryData:      primary,
		SecondaryData:    secondary,
		Timestamp:        time.Now().UTC(),
	}
}

// ActionableErrorMessage summarizes errs and appends remediation hints keyed
// on the attributes involved.
func ActionableErrorMessage(entityType, operationType, entityID string, errs []ValidationError) string {
	entityInfo := fmt.Sprintf("%s %s", entityType, operationType)
	if entityID != "" {
		entityInfo = fmt.Sprintf("%s ID %s", entityType, entityID)
	}

	messages := make([]string, len(errs))
	for i, e := range errs {
		messages[i] = e.Message
	}
	msg := fmt.Sprintf("Data validation failed for %s: %s", entityInfo, strings.Join(messages, ", "))

	var suggestions []string
	if anyAttribute(errs, func(a string) bool { return a == "id" }) {
		suggestions = append(suggestions, "Check ID mapping between primary and secondary stores")
	}
	if anyAttribute(errs, func(a string) bool { return strings.Contains(a, "_at") }) {
		suggestions = append(suggestions, "Verify timestamp synchronization between databases")
	}
	if anyAttribute(errs, func(a string) bool { return a == "password_hash" }) {
		suggestions = append(suggestions, "Check password hashing consistency")
	}
	if len(errs) > 3 {
		suggestions = append(suggestions, "Consider full data resynchronization for this entity")
	}
	if len(suggestions) > 0 {
		msg += ". Suggested actions: " + strings.Join(suggestions, "; ")
	}
	return msg
}

// anyAttribute matches on the last path segment of each attribute, so
// "items[x].id" is tested as "id".
func anyAttribute(errs []ValidationError, match func(string) bool) bool {
	for _, e := range errs {
		field := e.Attribute[strings.LastIndex(e.Attribute, ".")+1:]
		if match(field) {
			return true
		}
	}
	return false
}

// FormatErrorsForThrow renders errs for an error message: a single error
// verbatim, several as a numbered list joined by "; ".
func FormatErrorsForThrow(errs []ValidationError) string {
	if len(errs) == 1 {
		return errs[0].Message
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = fmt.Sprintf("%d. %s", i+1, e.Message)
	}
	return strings.Join(parts, "; ")
}

// LogValidationReport writes one line for a passing report. A failing report
// gets a summary line, one line per divergence and the full payloads of both
// sides, all tagged with the correlation ID.
func LogValidationReport(logger zerolog.Logger, report *ValidationReport) {
	l := logger.With().
		Str("correlation_id", report.CorrelationID).
		Str("entity", report.EntityType).
		Str("operation", report.OperationType).
		Logger()

	if report.ValidationPassed {
		l.Info().Msg("validation passed")
		return
	}

	entityID := report.EntityID
	if entityID == "" {
		entityID = "N/A"
	}
	l.Error().
		Str("entity_id", entityID).
		Time("report_timestamp", report.Timestamp).
		Int("total_errors", len(report.Errors)).
		Msg("VALIDATION FAILED")

	for i, e := range report.Errors {
		l.Error().
			Int("index", i+1).
			Str("attribute", e.Attribute).
			RawJSON("primary_value", rawJSON(e.PrimaryValue)).
			RawJSON("secondary_value", rawJSON(e.SecondaryValue)).
			Msg(e.Message)
	}

	l.Error().
		RawJSON("primary_data", rawJSON(report.PrimaryData)).
		RawJSON("secondary_data", rawJSON(report.SecondaryData)).
		Msg("complete payloads")
}

func jsonString(v any) string {
	return string(rawJSON(v))
}

func rawJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprintf("%v", v))
	}
	return data
}
