package services

import (
	"errors"

	"github.com/sirupsen/logrus"

	"lab-management-platform/internal/logger"
	"lab-management-platform/internal/models"
)

// ErrorSeverity represents how loudly a failure is reported
type ErrorSeverity string

const (
	// SeverityLow covers outcomes the caller caused and can correct.
	SeverityLow ErrorSeverity = "low"
	// SeverityHigh covers store failures.
	SeverityHigh ErrorSeverity = "high"
	// SeverityCritical covers stored data that breaks an invariant.
	SeverityCritical ErrorSeverity = "critical"
)

// ClassifiedError pairs a failure with its metric label and severity
type ClassifiedError struct {
	OriginalError error
	Outcome       string
	Severity      ErrorSeverity
}

func (e *ClassifiedError) Error() string {
	return e.Outcome + ": " + e.OriginalError.Error()
}

func (e *ClassifiedError) Unwrap() error { return e.OriginalError }

var outcomes = []struct {
	target   error
	outcome  string
	severity ErrorSeverity
}{
	{models.ErrValidation, "validation", SeverityLow},
	{models.ErrAlreadyExists, "already_exists", SeverityLow},
	{models.ErrNameTaken, "name_taken", SeverityLow},
	{models.ErrEmailTaken, "email_taken", SeverityLow},
	{models.ErrNotFound, "not_found", SeverityLow},
	{models.ErrOrganizationAccessRequired, "organization_access_required", SeverityLow},
	{models.ErrHasDependents, "has_dependents", SeverityLow},
	{models.ErrInvalidState, "invalid_state", SeverityLow},
	{models.ErrTokenExpired, "token_expired", SeverityLow},
	{models.ErrTokenInvalid, "token_invalid", SeverityLow},
	{models.ErrTransactionTooLarge, "transaction_too_large", SeverityHigh},
	{models.ErrDataIntegrity, "data_integrity", SeverityCritical},
}

// ClassifyError maps an operation failure onto the taxonomy. Anything
// unrecognised is treated as a storage failure.
func ClassifyError(err error) *ClassifiedError {
	for _, o := range outcomes {
		if errors.Is(err, o.target) {
			return &ClassifiedError{OriginalError: err, Outcome: o.outcome, Severity: o.severity}
		}
	}
	return &ClassifiedError{OriginalError: err, Outcome: "storage", Severity: SeverityHigh}
}

// Outcome maps an operation result onto a bounded metric label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return ClassifyError(err).Outcome
}

// ErrorHandler reports classified failures through the structured logger
type ErrorHandler struct {
	logger *logger.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *logger.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError logs err at a level matching its severity and returns it unchanged.
func (eh *ErrorHandler) HandleError(operation string, err error, fields logrus.Fields) error {
	if err == nil {
		return nil
	}
	classified := ClassifyError(err)

	logEntry := eh.logger.WithOperation(operation).
		WithError(err).
		WithField("outcome", classified.Outcome).
		WithField("severity", string(classified.Severity))
	if len(fields) > 0 {
		logEntry = logEntry.WithFields(fields)
	}

	switch classified.Severity {
	case SeverityLow:
		logEntry.Warn("Access operation rejected")
	case SeverityCritical:
		logEntry.Error("Stored data violates an access invariant")
	default:
		logEntry.Error("Access operation failed")
	}
	return err
}
