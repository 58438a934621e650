package model

import (
	"sort"
	"strings"
	"time"
)

// Conversation is a direct (two participants) or group chat thread.
type Conversation struct {
	ID            string    `json:"id"`
	IsGroup       bool      `json:"isGroup"`
	GroupName     string    `json:"groupName,omitempty"`
	Participants  []string  `json:"participants"`
	LastMessageID string    `json:"lastMessageId,omitempty"`
	LastMessage   *Message  `json:"lastMessage,omitempty"`
	MessageCount  int64     `json:"messageCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasParticipant reports whether userID is currently in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Others returns the participants except userID, in participant order.
func (c *Conversation) Others(userID string) []string {
	others := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

// DirectKey identifies the unordered pair {a, b}.
func DirectKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

// MinGroupSize is the smallest number of distinct users a group may be created with.
const MinGroupSize = 3

// GroupMembers returns creatorID followed by memberIDs, without blanks or
// duplicates, preserving first occurrence order.
func GroupMembers(creatorID string, memberIDs []string) []string {
	seen := make(map[string]struct{}, len(memberIDs)+1)
	out := make([]string, 0, len(memberIDs)+1)
	for _, id := range append([]string{creatorID}, memberIDs...) {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// CreateGroupRequest is the request to create a group conversation.
type CreateGroupRequest struct {
	GroupName    string   `json:"groupName"`
	Participants []string `json:"participants"`
}

// RenameGroupRequest is the request to rename a group conversation.
type RenameGroupRequest struct {
	NewName string `json:"newName"`
}

// AddMemberRequest is the request to add a member to a group conversation.
type AddMemberRequest struct {
	UserID string `json:"userId"`
}

// ConversationResponse wraps a conversation in HTTP responses.
type ConversationResponse struct {
	Chat    *Conversation `json:"chat"`
	Created bool          `json:"created,omitempty"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Chats []Conversation `json:"chats"`
}
