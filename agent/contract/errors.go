package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")
	ErrToolInvoke      = errors.New("tool invoke failed")
	ErrTurnFailed      = errors.New("turn failed")
)

// FailureReply is what drivers show the user when a turn fails.
const FailureReply = "Sorry, something went wrong while handling your message. Please try again."
