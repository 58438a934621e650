package middleware

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/linkup-social/chat-platform/internal/model"
)

const (
	maxUserIDLength    = 64
	maxGroupNameLength = 128
)

var (
	ErrInvalidConversationID = model.NewError(model.KindValidation, "invalid_conversation_id", "invalid conversation ID format")
	ErrInvalidUserID         = model.NewError(model.KindValidation, "invalid_user_id", "invalid user ID")
	ErrGroupNameTooLong      = model.NewError(model.KindValidation, "group_name_too_long", "group name exceeds maximum length")
)

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidConversationID
	}
	return nil
}

// ValidateUserID validates a user ID.
func ValidateUserID(id string) error {
	if strings.TrimSpace(id) == "" || len(id) > maxUserIDLength || !utf8.ValidString(id) {
		return ErrInvalidUserID
	}
	return nil
}

// ValidateGroupName validates a group name.
func ValidateGroupName(name string) error {
	if strings.TrimSpace(name) == "" {
		return model.ErrInvalidGroupName
	}
	if utf8.RuneCountInString(name) > maxGroupNameLength {
		return ErrGroupNameTooLong
	}
	if !utf8.ValidString(name) {
		return model.ErrInvalidGroupName
	}
	return nil
}
