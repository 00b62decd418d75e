// Package bots provides the orchestration layer for extraction bots: the
// run executor, the scheduler, the startup reconciler and the service facade
// consumed by the API layer.
package bots

import (
	"errors"
	"fmt"
)

// Error codes for bot orchestration operations
const (
	// ErrCodeNotFound indicates an unknown bot or run id
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeInvalidState indicates a trigger on a running or disabled bot
	ErrCodeInvalidState = "INVALID_STATE"
	// ErrCodeUnsupportedBotType indicates dispatch to an unregistered extraction strategy
	ErrCodeUnsupportedBotType = "UNSUPPORTED_BOT_TYPE"
	// ErrCodeSourceFetch indicates the source site could not be reached or read
	ErrCodeSourceFetch = "SOURCE_FETCH_FAILED"
	// ErrCodeParse indicates the fetched page could not be parsed at all
	ErrCodeParse = "PARSE_FAILED"
)

// BotError represents a bot-orchestration error with a machine-readable code
// alongside the human message and any underlying cause.
type BotError struct {
	Code    string // Error code identifying the type of error
	Message string // Human readable error message
	Err     error  // Underlying error if any
	BotName string // Bot the error relates to, if known
}

// Error implements the error interface for BotError
func (e *BotError) Error() string {
	if e.BotName != "" {
		if e.Err != nil {
			return fmt.Sprintf("[%s] %s (bot %s): %v", e.Code, e.Message, e.BotName, e.Err)
		}
		return fmt.Sprintf("[%s] %s (bot %s)", e.Code, e.Message, e.BotName)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *BotError) Unwrap() error {
	return e.Err
}

// NewBotError creates a new BotError with the given parameters
func NewBotError(code, message string, err error) *BotError {
	return &BotError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsBotError checks if an error is a BotError and matches the given code
func IsBotError(err error, code string) bool {
	if err == nil {
		return false
	}
	var e *BotError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ErrBotNotFound builds the NOT_FOUND error for an unknown bot id
func ErrBotNotFound(id uint) *BotError {
	return NewBotError(ErrCodeNotFound, fmt.Sprintf("bot %d does not exist", id), nil)
}

// ErrAlreadyRunning builds the INVALID_STATE error for a concurrent trigger
func ErrAlreadyRunning(name string) *BotError {
	return &BotError{
		Code:    ErrCodeInvalidState,
		Message: "a run is already in progress",
		BotName: name,
	}
}

// ErrDisabled builds the INVALID_STATE error for a trigger on a disabled bot
func ErrDisabled(name string) *BotError {
	return &BotError{
		Code:    ErrCodeInvalidState,
		Message: "bot is disabled",
		BotName: name,
	}
}
