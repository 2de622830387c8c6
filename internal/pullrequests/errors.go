package pullrequests

import (
	"errors"
	"fmt"
)

const (
	loggerNotConfiguredMessageConstant     = "pull request client logger not configured"
	headClientNotConfiguredMessageConstant = "pull request client head http client not configured"
	baseClientNotConfiguredMessageConstant = "pull request client base http client not configured"
	statusErrorTemplateConstant            = "%s failed with status %d: %s"
	transportErrorTemplateConstant         = "%s failed: %v"
	missingFieldErrorTemplateConstant      = "%s response is missing %s"
	mergeErrorTemplateConstant             = "auto-merge of pull request #%d failed with status %d: %s"
	mergeTransportErrorTemplateConstant    = "auto-merge of pull request #%d failed: %s"
	invalidAPIURLTemplateConstant          = "invalid github api url %q: %w"
)

var (
	// ErrLoggerNotConfigured indicates the client was constructed without a logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrHeadClientNotConfigured indicates the head credentials client is missing.
	ErrHeadClientNotConfigured = errors.New(headClientNotConfiguredMessageConstant)
	// ErrBaseClientNotConfigured indicates the base credentials client is missing.
	ErrBaseClientNotConfigured = errors.New(baseClientNotConfiguredMessageConstant)
)

// StatusError reports an unexpected HTTP status together with the response body.
type StatusError struct {
	Operation  Operation
	StatusCode int
	Body       string
}

// Error describes the failed request.
func (failure StatusError) Error() string {
	return fmt.Sprintf(statusErrorTemplateConstant, failure.Operation, failure.StatusCode, failure.Body)
}

// TransportError reports a request that never produced an HTTP response.
type TransportError struct {
	Operation Operation
	Cause     error
}

// Error describes the transport failure.
func (failure TransportError) Error() string {
	return fmt.Sprintf(transportErrorTemplateConstant, failure.Operation, failure.Cause)
}

// Unwrap exposes the underlying cause.
func (failure TransportError) Unwrap() error {
	return failure.Cause
}

// MissingFieldError reports a successful response lacking a field the workflow depends on.
type MissingFieldError struct {
	Operation Operation
	Field     string
}

// Error describes the missing field.
func (failure MissingFieldError) Error() string {
	return fmt.Sprintf(missingFieldErrorTemplateConstant, failure.Operation, failure.Field)
}

// MergeError reports a rejected auto-merge. A remediation comment has already been posted.
type MergeError struct {
	Number     int
	StatusCode int
	Body       string
	Cause      error
}

// Error describes the rejected merge.
func (failure MergeError) Error() string {
	if failure.StatusCode == 0 {
		return fmt.Sprintf(mergeTransportErrorTemplateConstant, failure.Number, failure.Body)
	}
	return fmt.Sprintf(mergeErrorTemplateConstant, failure.Number, failure.StatusCode, failure.Body)
}

// Unwrap exposes the underlying cause.
func (failure MergeError) Unwrap() error {
	return failure.Cause
}
