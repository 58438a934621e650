package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkup-social/chat-platform/internal/model"
)

func TestGroupService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.groups.Create(ctx, "u1", &model.CreateGroupRequest{
		GroupName:    "Trip",
		Participants: []string{"u2", "u3", "u2", "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3"}, g.Participants)
	assert.Equal(t, []model.ConversationEventType{model.ConversationEventCreated}, f.publisher.eventTypes())
}

func TestGroupService_Create_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  model.CreateGroupRequest
		want error
	}{
		{"too small after dedupe", model.CreateGroupRequest{GroupName: "Pair", Participants: []string{"u2", "u2", "u1"}}, model.ErrInvalidGroupSize},
		{"no members", model.CreateGroupRequest{GroupName: "Solo"}, model.ErrInvalidGroupSize},
		{"blank name", model.CreateGroupRequest{GroupName: " ", Participants: []string{"u2", "u3"}}, model.ErrInvalidGroupName},
		{"unknown member", model.CreateGroupRequest{GroupName: "Trip", Participants: []string{"u2", "ghost"}}, model.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.groups.Create(ctx, "u1", &req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	groups, err := f.groups.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestGroupService_Membership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.groups.Create(ctx, "u1", &model.CreateGroupRequest{GroupName: "Trip", Participants: []string{"u2", "u3"}})
	require.NoError(t, err)

	g, err = f.groups.AddMember(ctx, "u2", g.ID, "u4")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, g.Participants)

	_, err = f.groups.AddMember(ctx, "u2", g.ID, "ghost")
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	_, err = f.groups.AddMember(ctx, "u5", g.ID, "u5")
	assert.ErrorIs(t, err, model.ErrNotAMember)

	_, err = f.groups.AddMember(ctx, "u1", g.ID, "u4")
	assert.ErrorIs(t, err, model.ErrAlreadyMember)

	// Any member may remove any other member.
	g, err = f.groups.RemoveMember(ctx, "u4", g.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3", "u4"}, g.Participants)

	_, err = f.groups.RemoveMember(ctx, "u4", g.ID, "u1")
	assert.ErrorIs(t, err, model.ErrNotMember)

	_, err = f.groups.RemoveMember(ctx, "u1", g.ID, "u2")
	assert.ErrorIs(t, err, model.ErrNotAMember)

	g, err = f.groups.Rename(ctx, "u3", g.ID, "Road Trip")
	require.NoError(t, err)
	assert.Equal(t, "Road Trip", g.GroupName)

	_, err = f.groups.Rename(ctx, "u3", g.ID, "  ")
	assert.ErrorIs(t, err, model.ErrInvalidGroupName)

	assert.Equal(t, []model.ConversationEventType{
		model.ConversationEventCreated,
		model.ConversationEventMemberAdded,
		model.ConversationEventMemberRemoved,
		model.ConversationEventRenamed,
	}, f.publisher.eventTypes())
}

func TestGroupService_Get(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.groups.Create(ctx, "u1", &model.CreateGroupRequest{GroupName: "Trip", Participants: []string{"u2", "u3"}})
	require.NoError(t, err)

	got, err := f.groups.Get(ctx, "u3", g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip", got.GroupName)

	_, err = f.groups.Get(ctx, "u4", g.ID)
	assert.ErrorIs(t, err, model.ErrConversationNotFound)

	direct, _, err := f.chat.OpenDirect(ctx, "u1", "u2")
	require.NoError(t, err)
	_, err = f.groups.Get(ctx, "u1", direct.ID)
	assert.ErrorIs(t, err, model.ErrConversationNotFound)
}

func TestGroupService_RemovedMemberCannotSend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.groups.Create(ctx, "u1", &model.CreateGroupRequest{GroupName: "Trip", Participants: []string{"u2", "u3"}})
	require.NoError(t, err)

	_, err = f.groups.RemoveMember(ctx, "u1", g.ID, "u3")
	require.NoError(t, err)

	_, err = f.chat.SendGroup(ctx, "u3", g.ID, "hello?")
	assert.ErrorIs(t, err, model.ErrNotAMember)

	d, err := f.chat.SendGroup(ctx, "u1", g.ID, "bye u3")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, d.Recipients)
}
