package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linkup-social/chat-platform/internal/model"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "chat.c1.msg", MessageSubject("c1"))
	assert.Equal(t, "chat.c1.event.member_added", EventSubject("c1", model.ConversationEventMemberAdded))
	assert.Equal(t, "chat.c1.>", ConversationFilter("c1"))
}
