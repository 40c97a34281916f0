package mcp

import (
	"errors"
	"fmt"

	"github.com/jlicht/krikri/internal/agent"
	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/harvest"
	"github.com/jlicht/krikri/internal/harvest/oai"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. Unrecognized errors map
// to nil.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	var verr *harvest.ValidationError
	var perr *oai.ProtocolError
	switch {
	case errors.As(err, &verr):
		return &APIError{Code: "INVALID_OPTIONS", Message: "options failed validation", Details: verr.Problems, RecoveryHint: "Check list_agents for accepted options"}
	case errors.Is(err, activity.ErrActivityNotFound):
		return &APIError{Code: "ACTIVITY_NOT_FOUND", Message: "activity not found", RecoveryHint: "Check ID spelling or call list_activities"}
	case errors.Is(err, record.ErrEntityNotFound):
		return &APIError{Code: "ENTITY_NOT_FOUND", Message: "entity not found"}
	case errors.Is(err, agent.ErrUnknownAgent):
		return &APIError{Code: "UNKNOWN_AGENT", Message: err.Error(), RecoveryHint: "Call list_agents"}
	case errors.Is(err, agent.ErrOptionsNotMapping), errors.Is(err, agent.ErrUnexpectedArguments):
		return &APIError{Code: "INVALID_ARGUMENTS", Message: err.Error()}
	case errors.Is(err, harvest.ErrNotSupported):
		return &APIError{Code: "NOT_SUPPORTED", Message: err.Error()}
	case errors.As(err, &perr):
		return &APIError{Code: "OAI_ERROR", Message: perr.Error(), Details: perr.Code}
	default:
		return nil
	}
}

// toolError returns the mapped APIError for err, or err itself.
func toolError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
