package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPlanInvalid     = errors.New("plan invalid")
	ErrPlanFetchFailed = errors.New("plan fetch failed")
	ErrBackendFailed   = errors.New("compression backend failed")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrExternalTool    = errors.New("external tool error")
)

// Kind names a failure class for logs and metrics labels.
type Kind string

const (
	KindPlanInvalid     Kind = "plan_invalid"
	KindPlanFetchFailed Kind = "plan_fetch_failed"
	KindBackendFailed   Kind = "backend_failed"
	KindValidation      Kind = "validation"
	KindConfiguration   Kind = "configuration"
	KindCanceled        Kind = "canceled"
	KindUnknown         Kind = "unknown"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf classifies an error by the marker it carries.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrPlanInvalid):
		return KindPlanInvalid
	case errors.Is(err, ErrPlanFetchFailed):
		return KindPlanFetchFailed
	case errors.Is(err, ErrBackendFailed):
		return KindBackendFailed
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}

// FailureMessage renders the user-facing message stored on a record that
// ended in the ERROR state.
func FailureMessage(err error) string {
	if err == nil {
		return "processing failed without error detail"
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "processing failed"
	}
	return msg
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
