// Package errors provides standardized error handling for the assessment
// pipeline and its BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInputParsingFailed       ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeVitalsValidationFailed   ErrorCode = "VITALS_VALIDATION_FAILED"
	ErrCodeThresholdConfigInvalid   ErrorCode = "THRESHOLD_CONFIG_INVALID"
	ErrCodeModelUnavailable         ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeModelTimeout             ErrorCode = "MODEL_TIMEOUT"
	ErrCodeModelLoadFailed          ErrorCode = "MODEL_LOAD_FAILED"
	ErrCodeAssessmentRecordFailed   ErrorCode = "ASSESSMENT_RECORD_FAILED"
	ErrCodeAlertSendFailed          ErrorCode = "ALERT_SEND_FAILED"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeExternalService          ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                  ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound         ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeBusinessRule             ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// AsStandardError extracts a StandardError from anywhere in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInputParsingFailedError wraps a decoding failure of raw input.
func NewInputParsingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputParsingFailed,
		Message:   "Failed to parse input",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewValidationError names the offending vital and the bound it violated.
// bound is empty when the field is missing or not numeric.
func NewValidationError(field, bound string, value interface{}, details string) *StandardError {
	msg := fmt.Sprintf("Invalid vital sign %q", field)
	if bound != "" {
		msg = fmt.Sprintf("Vital sign %q violates bound %s", field, bound)
	}
	return &StandardError{
		Code:      ErrCodeVitalsValidationFailed,
		Message:   msg,
		Details:   details,
		Retryable: false,
		Metadata: map[string]interface{}{
			"field": field,
			"bound": bound,
			"value": value,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigurationError reports a malformed threshold table. Fatal at startup.
func NewConfigurationError(table, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeThresholdConfigInvalid,
		Message:   fmt.Sprintf("Threshold table %q is malformed", table),
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"table": table},
		Timestamp: time.Now().UTC(),
	}
}

// NewModelUnavailableError marks a classifier failure the pipeline recovers from.
func NewModelUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelUnavailable,
		Message:   "Risk model unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewModelTimeoutError marks a classifier call that exceeded its deadline.
func NewModelTimeoutError(timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelTimeout,
		Message:   "Risk model inference timeout",
		Details:   fmt.Sprintf("inference exceeded %s", timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewModelLoadFailedError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelLoadFailed,
		Message:   "Failed to load risk model",
		Details:   fmt.Sprintf("source: %s, error: %s", source, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewAssessmentRecordFailedError(sink string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssessmentRecordFailed,
		Message:   "Failed to record assessment",
		Details:   fmt.Sprintf("sink: %s, error: %s", sink, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewAlertSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlertSendFailed,
		Message:   "Care team alert delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBusinessRule,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResourceNotFound,
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Retry policy and BPMN mapping
// ==========================

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeAssessmentRecordFailed,
		ErrCodeAlertSendFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeTimeout:
		return 2

	default:
		// validation, configuration and model errors are never retried by
		// the engine: the model path already has its own fallback.
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if field, ok := stdErr.Metadata["field"]; ok {
		vars["invalidField"] = field
		vars["violatedBound"] = stdErr.Metadata["bound"]
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PARSING"):
		return "VALIDATION"
	case strings.Contains(codeStr, "THRESHOLD"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "MODEL"):
		return "MODEL"
	case strings.Contains(codeStr, "RECORD") || strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "ALERT"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
