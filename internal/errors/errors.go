// Package errors defines the engine's error taxonomy
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType groups errors by how they propagate
type ErrorType string

const (
	// ErrorTypeValidation aborts the whole computation or validation request
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeModel only removes a single model from the result
	ErrorTypeModel ErrorType = "model"
	// ErrorTypeMeasurement concerns a forensic validation request
	ErrorTypeMeasurement ErrorType = "measurement"
)

// Error codes
const (
	CodeMissingInput      = "MISSING_INPUT"
	CodeNoModelSelected   = "NO_MODEL_SELECTED"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeUnknownModel      = "UNKNOWN_MODEL"
	CodeInvalidParameters = "INVALID_PARAMETERS"
	CodeInvalidMeasure    = "INVALID_MEASUREMENT"
	CodeNoResults         = "NO_RESULTS"
)

// AppError represents an engine error with additional context
type AppError struct {
	Type     ErrorType
	Message  string
	Code     string
	Internal error
	Context  map[string]interface{}
	Source   string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the internal error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is matches another AppError by type and code
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return errors.Is(e.Internal, target)
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// LogFields returns structured logging fields
func (e *AppError) LogFields() []interface{} {
	fields := []interface{}{
		"error_type", e.Type,
		"error_code", e.Code,
		"error_message", e.Message,
		"source", e.Source,
	}

	if e.Internal != nil {
		fields = append(fields, "internal_error", e.Internal.Error())
	}

	for k, v := range e.Context {
		fields = append(fields, k, v)
	}

	return fields
}

// New creates a new AppError
func New(errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Source:  caller(),
		Context: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error into AppError
func Wrap(err error, errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:     errorType,
		Code:     code,
		Message:  message,
		Internal: err,
		Source:   caller(),
		Context:  make(map[string]interface{}),
	}
}

func caller() string {
	_, file, line, _ := runtime.Caller(2)
	return fmt.Sprintf("%s:%d", file, line)
}

// Predefined errors, compared with errors.Is
var (
	ErrMissingInput       = New(ErrorTypeValidation, CodeMissingInput, "subject, drinks and settings are required")
	ErrNoModelSelected    = New(ErrorTypeValidation, CodeNoModelSelected, "no calculation model selected")
	ErrInvalidInput       = New(ErrorTypeValidation, CodeInvalidInput, "invalid input")
	ErrUnknownModel       = New(ErrorTypeModel, CodeUnknownModel, "unknown calculation model")
	ErrInvalidParameters  = New(ErrorTypeModel, CodeInvalidParameters, "model parameters out of range")
	ErrInvalidMeasurement = New(ErrorTypeMeasurement, CodeInvalidMeasure, "invalid measurement")
	ErrNoResults          = New(ErrorTypeMeasurement, CodeNoResults, "no calculation results available")
)

// NewMissingInputError reports which of the required inputs is absent
func NewMissingInputError(input string) *AppError {
	return New(ErrorTypeValidation, CodeMissingInput, fmt.Sprintf("%s is required", input)).
		WithContext("input", input)
}

// NewInvalidInputError wraps a field validation failure
func NewInvalidInputError(err error, input string) *AppError {
	return Wrap(err, ErrorTypeValidation, CodeInvalidInput, fmt.Sprintf("invalid %s", input)).
		WithContext("input", input)
}

// NewUnknownModelError reports an unrecognized model identifier
func NewUnknownModelError(model string) *AppError {
	return New(ErrorTypeModel, CodeUnknownModel, fmt.Sprintf("unknown calculation model %q", model)).
		WithContext("model", model)
}

// NewInvalidParametersError reports a resolved parameter that cannot be used
func NewInvalidParametersError(model string, message string) *AppError {
	return New(ErrorTypeModel, CodeInvalidParameters, message).
		WithContext("model", model)
}

// NewInvalidMeasurementError reports a rejected measured value or missing prediction
func NewInvalidMeasurementError(message string) *AppError {
	return New(ErrorTypeMeasurement, CodeInvalidMeasure, message)
}

// NewModelFailure wraps an unexpected failure while computing one model
func NewModelFailure(err error, model string) *AppError {
	return Wrap(err, ErrorTypeModel, "MODEL_FAILURE", "model computation failed").
		WithContext("model", model)
}
