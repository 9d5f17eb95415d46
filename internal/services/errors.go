// Package services holds the business logic: the reminder registry, user
// preferences, conversation memory and the assistant that routes inbound
// messages between them. This file centralizes the service-level error values
// so handlers can map them to HTTP results consistently.
package services

import "errors"

var (
	// ErrEmptyIdentity is returned when an operation needs an owning identity
	// and none was supplied.
	ErrEmptyIdentity = errors.New("identity is empty")

	// ErrEmptyText is returned when a reminder or message has no text.
	ErrEmptyText = errors.New("text is empty")

	// ErrTooLong is returned when an inbound text exceeds the configured limit.
	ErrTooLong = errors.New("text too long")

	// ErrInvalidWhen is returned when a reminder time is neither epoch
	// milliseconds nor a recognised ISO-8601 string.
	ErrInvalidWhen = errors.New("when must be epoch milliseconds or an ISO-8601 string")

	// ErrReminderNotFound indicates the reminder does not exist or belongs to
	// another identity.
	ErrReminderNotFound = errors.New("reminder not found")

	// ErrConversationNotFound indicates the identity has no stored conversation.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrInvalidPrefs is returned when a preference patch is empty or has blank keys.
	ErrInvalidPrefs = errors.New("prefs patch must be a non-empty object with non-blank keys")
)
