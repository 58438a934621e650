package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/linkup-social/chat-platform/internal/model"
	"github.com/linkup-social/chat-platform/internal/store"
	"github.com/linkup-social/chat-platform/pkg/logger"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []*model.Message
	events   []*model.ConversationEvent
	fail     bool
}

func (p *recordingPublisher) PublishMessage(_ context.Context, msg *model.Message) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return 0, errors.New("stream unavailable")
	}
	p.messages = append(p.messages, msg)
	return uint64(len(p.messages)), nil
}

func (p *recordingPublisher) PublishEvent(_ context.Context, event *model.ConversationEvent) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return 0, errors.New("stream unavailable")
	}
	p.events = append(p.events, event)
	return uint64(len(p.events)), nil
}

func (p *recordingPublisher) eventTypes() []model.ConversationEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.ConversationEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	convs     *store.ConversationStore
	users     *store.UserDirectory
	publisher *recordingPublisher
	chat      *ChatService
	groups    *GroupService
}

// newFixture seeds u1..u5 (verified) with friendships u1-u2, u1-u3.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := store.Open(context.Background(), store.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	f := &fixture{
		convs:     store.NewConversationStore(db),
		users:     store.NewUserDirectory(db),
		publisher: &recordingPublisher{},
	}
	ctx := context.Background()
	for _, u := range []model.User{
		{ID: "u1", FirstName: "Una", IsVerified: true},
		{ID: "u2", FirstName: "Dos", IsVerified: true},
		{ID: "u3", FirstName: "Tres", IsVerified: true},
		{ID: "u4", FirstName: "Cuatro", IsVerified: true},
		{ID: "u5", FirstName: "Cinco", IsVerified: true},
	} {
		u := u
		require.NoError(t, f.users.CreateUser(ctx, &u))
	}
	require.NoError(t, f.users.Befriend(ctx, "u1", "u2"))
	require.NoError(t, f.users.Befriend(ctx, "u3", "u1"))

	f.chat = NewChatService(f.convs, f.users, f.publisher, logger.NewNop())
	f.groups = NewGroupService(f.convs, f.users, f.publisher, logger.NewNop())
	return f
}
