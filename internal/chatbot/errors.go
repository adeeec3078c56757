package chatbot

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication = errors.New("authentication failed")
	ErrValidation     = errors.New("validation failed")
	ErrPersistence    = errors.New("persistence failed")
	ErrNotFound       = errors.New("chatbot not found")
	ErrUploadFailed   = errors.New("upload failed")
)

// AuthError wraps the reason a credential could not be resolved to a caller.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Authentication error: %s: %v", e.Reason, e.Err)
	}
	return "Authentication error: " + e.Reason
}

func (e *AuthError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAuthentication, e.Err}
	}
	return []error{ErrAuthentication}
}

// ValidationError names the constraint a provisioning request violated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Phase identifies which write of the two-phase persist failed.
type Phase string

const (
	PhaseInsert Phase = "insert"
	PhasePatch  Phase = "patch"
)

// PersistenceError is returned when the datastore rejects a write. For
// PhasePatch, ChatbotID names the record that was inserted but left without
// an embed snippet.
type PersistenceError struct {
	Phase     Phase
	ChatbotID string
	Err       error
}

func (e *PersistenceError) Error() string {
	switch e.Phase {
	case PhasePatch:
		return fmt.Sprintf("Failed to update chatbot with embed code: %v", e.Err)
	default:
		return fmt.Sprintf("Failed to create chatbot: %v", e.Err)
	}
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// OrphanID returns the id of the record left without a snippet, if err
// reports a failed patch phase.
func OrphanID(err error) (string, bool) {
	var pe *PersistenceError
	if errors.As(err, &pe) && pe.Phase == PhasePatch && pe.ChatbotID != "" {
		return pe.ChatbotID, true
	}
	return "", false
}
