package repositories

import (
	"time"

	"chat-sync/internal/errs"
)

var (
	ErrMessageNotFound = errs.NotFound("message not found")
	ErrChatNotFound    = errs.NotFound("chat not found")
	ErrUserNotFound    = errs.NotFound("user not found")
	ErrRequestNotFound = errs.NotFound("connection request not found")

	ErrEmptyMessage  = errs.Validation("message must have content or media")
	ErrUnknownChat   = errs.Validation("chat does not exist")
	ErrUnknownSender = errs.Validation("sender does not exist")
	ErrUnknownUser   = errs.Validation("user does not exist")
	ErrInvalidStatus = errs.Validation("invalid status")

	ErrDuplicateRequest = errs.Duplicate("connection request already exists")
	ErrRequestAnswered  = errs.Duplicate("connection request already answered")
	ErrUsernameTaken    = errs.Duplicate("username already taken")
)

// utcNow is the default clock. Postgres keeps microseconds, so the value is
// truncated to round-trip unchanged on both drivers.
func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
