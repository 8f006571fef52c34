package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func forbidden(action string) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", map[string]any{"action": action})
}

func sessionNotFound(id string) *DomainError {
	return domainError(http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found or expired", map[string]any{"sessionId": id})
}

func stepNotFound(id string) *DomainError {
	return domainError(http.StatusNotFound, "STEP_NOT_FOUND", "Step not found", map[string]any{"stepId": id})
}

func validationError(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}
