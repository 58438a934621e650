package model

import "errors"

// ErrorKind classifies failures for transport translation.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindNotFound       ErrorKind = "not_found"
	KindConflict       ErrorKind = "conflict"
)

// Error is a domain failure with a message safe to show to clients.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a domain error.
func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidPayload   = NewError(KindValidation, "invalid_payload", "Invalid payload")
	ErrEmptyMessage     = NewError(KindValidation, "empty_message", "Message content is required")
	ErrInvalidGroupSize = NewError(KindValidation, "invalid_group_size", "A group must have at least 3 members (including you)")
	ErrInvalidGroupName = NewError(KindValidation, "invalid_group_name", "Group name is required")
	ErrSelfConversation = NewError(KindValidation, "self_conversation", "You cannot start a conversation with yourself")

	ErrRecipientNotFound    = NewError(KindNotFound, "recipient_not_found", "Receiver not found")
	ErrUserNotFound         = NewError(KindNotFound, "user_not_found", "User not found")
	ErrConversationNotFound = NewError(KindNotFound, "conversation_not_found", "Conversation not found or access denied")

	ErrNotFriends    = NewError(KindAuthorization, "not_friends", "You can only chat with your friends")
	ErrBlocked       = NewError(KindAuthorization, "blocked", "You cannot message this user")
	ErrNotAMember    = NewError(KindAuthorization, "not_a_member", "You are not a member of this conversation")
	ErrAlreadyMember = NewError(KindAuthorization, "already_member", "User already in group")
	ErrNotMember     = NewError(KindAuthorization, "not_member", "User not in group")

	ErrDirectConversationExists = NewError(KindConflict, "direct_conversation_exists", "Conversation already exists")
)

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// PublicMessage returns the client-safe message for err, or fallback when err
// is not a domain error.
func PublicMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return fallback
}
