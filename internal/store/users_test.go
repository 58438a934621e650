package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkup-social/chat-platform/internal/model"
)

func TestUserDirectory_FindUser(t *testing.T) {
	ctx := context.Background()
	d := NewUserDirectory(setupTestDB(t))

	require.NoError(t, d.CreateUser(ctx, &model.User{ID: "alice", FirstName: "Alice", LastName: "Liddell", IsVerified: true}))

	u, err := d.FindUserByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", u.FullName())
	assert.True(t, u.IsVerified)

	_, err = d.FindUserByID(ctx, "nobody")
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	// CreateUser overwrites an existing account.
	require.NoError(t, d.CreateUser(ctx, &model.User{ID: "alice", FirstName: "Al"}))
	u, err = d.FindUserByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Al", u.FirstName)
	assert.False(t, u.IsVerified)
}

func TestUserDirectory_FindUsersByIDs(t *testing.T) {
	ctx := context.Background()
	d := NewUserDirectory(setupTestDB(t))

	require.NoError(t, d.CreateUser(ctx, &model.User{ID: "alice", FirstName: "Alice"}))
	require.NoError(t, d.CreateUser(ctx, &model.User{ID: "bob", FirstName: "Bob"}))

	users, err := d.FindUsersByIDs(ctx, []string{"alice", "bob", "ghost"})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = d.FindUsersByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUserDirectory_Friendship(t *testing.T) {
	ctx := context.Background()
	d := NewUserDirectory(setupTestDB(t))

	ok, err := d.AreFriends(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.SetFriendship(ctx, "alice", "bob", FriendshipPending))
	ok, err = d.AreFriends(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Befriend(ctx, "alice", "bob"))
	ok, err = d.AreFriends(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, d.SetFriendship(ctx, "alice", "bob", FriendshipRejected))
	ok, err = d.AreFriends(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserDirectory_Block(t *testing.T) {
	ctx := context.Background()
	d := NewUserDirectory(setupTestDB(t))

	blocked, err := d.IsBlocked(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, d.Block(ctx, "bob", "alice"))
	require.NoError(t, d.Block(ctx, "bob", "alice"))

	blocked, err = d.IsBlocked(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, blocked)
}
