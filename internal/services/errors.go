package services

import "errors"

// Conversation errors. Handlers map them to HTTP status codes with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrChatNotFoundOrForbidden does not distinguish a missing chat from one owned by someone else.
	ErrChatNotFoundOrForbidden = errors.New("chat not found or forbidden")
	ErrChatNotFound            = errors.New("chat not found")
	ErrQuotaExceeded           = errors.New("daily message limit reached")
)

// Auth errors.
var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrHashingPassword    = errors.New("failed to hash password")
	ErrCreatingToken      = errors.New("failed to create access token")
)
