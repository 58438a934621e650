package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkup-social/chat-platform/internal/auth"
	"github.com/linkup-social/chat-platform/internal/model"
	"github.com/linkup-social/chat-platform/internal/presence"
	"github.com/linkup-social/chat-platform/internal/service"
	"github.com/linkup-social/chat-platform/internal/store"
	"github.com/linkup-social/chat-platform/pkg/logger"
)

const readTimeout = 2 * time.Second

type testEnv struct {
	server   *httptest.Server
	auth     *auth.Authenticator
	registry *presence.Registry
	users    *store.UserDirectory
	convs    *store.ConversationStore
	groups   *service.GroupService
	gateway  *Gateway
}

// newTestEnv seeds verified users u1..u4 and unverified u9, with friendships
// u1-u2 and u1-u3.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(ctx, store.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)

	users := store.NewUserDirectory(db)
	for _, u := range []model.User{
		{ID: "u1", FirstName: "Una", IsVerified: true},
		{ID: "u2", FirstName: "Dos", IsVerified: true},
		{ID: "u3", FirstName: "Tres", IsVerified: true},
		{ID: "u4", FirstName: "Cuatro", IsVerified: true},
		{ID: "u9", FirstName: "Nueve", IsVerified: false},
	} {
		u := u
		require.NoError(t, users.CreateUser(ctx, &u))
	}
	require.NoError(t, users.Befriend(ctx, "u1", "u2"))
	require.NoError(t, users.Befriend(ctx, "u1", "u3"))

	convs := store.NewConversationStore(db)
	log := logger.NewNop()
	chat := service.NewChatService(convs, users, service.NopPublisher{}, log)

	env := &testEnv{
		auth:     auth.NewAuthenticator("test-secret", "Bearer", users),
		registry: presence.NewRegistry(),
		users:    users,
		convs:    convs,
		groups:   service.NewGroupService(convs, users, service.NopPublisher{}, log),
	}

	cfg := DefaultConfig()
	cfg.AuthTimeout = time.Second
	env.gateway = New(env.auth, chat, env.registry, cfg, log)
	env.server = httptest.NewServer(env.gateway)

	t.Cleanup(func() {
		env.server.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return env
}

func (e *testEnv) url() string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http")
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.auth.Issue(userID, time.Hour)
	require.NoError(t, err)
	return token
}

// dial connects as userID and consumes the connected acknowledgement.
func (e *testEnv) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+e.token(t, userID))
	conn, _, err := websocket.DefaultDialer.Dial(e.url(), header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	f := readFrame(t, conn)
	require.Equal(t, model.EventConnected, f.Event)
	return conn
}

func (e *testEnv) messageIDs(t *testing.T, conversationID string) []string {
	t.Helper()
	msgs, err := e.convs.ListMessages(context.Background(), conversationID, 0, 100)
	require.NoError(t, err)
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

func readFrame(t *testing.T, conn *websocket.Conn) model.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	var f model.Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func readMessageEvent(t *testing.T, conn *websocket.Conn, event string) model.ChatMessageEvent {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, event, f.Event, "unexpected frame: %s", string(f.Data))
	var e model.ChatMessageEvent
	require.NoError(t, json.Unmarshal(f.Data, &e))
	return e
}

func readError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, model.EventCustomError, f.Event)
	var n model.NoticeEvent
	require.NoError(t, json.Unmarshal(f.Data, &n))
	return n.Message
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(model.Frame{Event: event, Data: raw}))
}

func TestGateway_RejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Token " + env.token(t, "u1")},
		{"garbage token", "Bearer nope"},
		{"unverified", "Bearer " + env.token(t, "u9")},
		{"unknown user", "Bearer " + env.token(t, "ghost")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.header != "" {
				header.Set("Authorization", tt.header)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(env.url(), header)
			if conn != nil {
				conn.Close()
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
	assert.Equal(t, 0, env.registry.UserCount())
}

func TestGateway_QueryCredential(t *testing.T) {
	env := newTestEnv(t)

	q := "?authorization=" + strings.ReplaceAll("Bearer "+env.token(t, "u1"), " ", "%20")
	conn, _, err := websocket.DefaultDialer.Dial(env.url()+q, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, model.EventConnected, readFrame(t, conn).Event)
	assert.True(t, env.registry.Online("u1"))
}

func TestGateway_DirectMessageToTwoDevices(t *testing.T) {
	env := newTestEnv(t)

	sender := env.dial(t, "u1")
	phone := env.dial(t, "u2")
	laptop := env.dial(t, "u2")
	assert.Len(t, env.registry.Lookup("u2"), 2)

	send(t, sender, model.EventSendMessage, model.SendMessagePayload{RecipientID: "u2", Content: "hi"})

	echo := readMessageEvent(t, sender, model.EventMessageSent)
	assert.Equal(t, "hi", echo.Message.Content)
	assert.Equal(t, []string{"u1"}, echo.Message.SeenBy)
	require.NotNil(t, echo.Message.Sender)
	assert.Equal(t, "Una", echo.Message.Sender.FirstName)

	for _, c := range []*websocket.Conn{phone, laptop} {
		got := readMessageEvent(t, c, model.EventNewMessage)
		assert.Equal(t, echo.Message.ID, got.Message.ID)
		assert.Equal(t, echo.ChatID, got.ChatID)
	}

	conv, err := env.convs.GetConversation(context.Background(), echo.ChatID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, conv.Participants)
	assert.Equal(t, echo.Message.ID, conv.LastMessageID)
}

func TestGateway_OfflineRecipient(t *testing.T) {
	env := newTestEnv(t)
	sender := env.dial(t, "u1")

	send(t, sender, model.EventSendMessage, model.SendMessagePayload{RecipientID: "u3", Content: "are you there"})

	echo := readMessageEvent(t, sender, model.EventMessageSent)
	assert.Equal(t, []string{echo.Message.ID}, env.messageIDs(t, echo.ChatID))
}

func TestGateway_ErrorsStayOnOriginatingConnection(t *testing.T) {
	env := newTestEnv(t)
	sender := env.dial(t, "u1")

	send(t, sender, model.EventSendMessage, model.SendMessagePayload{RecipientID: "u4", Content: "hi"})
	assert.Equal(t, model.ErrNotFriends.Message, readError(t, sender))

	send(t, sender, model.EventSendMessage, model.SendMessagePayload{RecipientID: "u2", Content: "   "})
	assert.Equal(t, model.ErrEmptyMessage.Message, readError(t, sender))

	send(t, sender, model.EventSendMessage, model.SendMessagePayload{RecipientID: "ghost", Content: "hi"})
	assert.Equal(t, model.ErrRecipientNotFound.Message, readError(t, sender))

	send(t, sender, "dance", map[string]string{})
	assert.Equal(t, ErrUnknownEvent.Message, readError(t, sender))

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, model.ErrInvalidPayload.Message, readError(t, sender))

	send(t, sender, model.EventSendMessage, "just a string")
	assert.Equal(t, model.ErrInvalidPayload.Message, readError(t, sender))

	// The connection survives every failure.
	send(t, sender, model.EventSendMessage, model.SendMessagePayload{RecipientID: "u2", Content: "ok"})
	echo := readMessageEvent(t, sender, model.EventMessageSent)
	assert.Equal(t, "ok", echo.Message.Content)
}

func TestGateway_GroupFanOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	g, err := env.groups.Create(ctx, "u1", &model.CreateGroupRequest{GroupName: "Trip", Participants: []string{"u2", "u3"}})
	require.NoError(t, err)

	u1a := env.dial(t, "u1")
	u1b := env.dial(t, "u1")
	u2 := env.dial(t, "u2")
	u3a := env.dial(t, "u3")
	u3b := env.dial(t, "u3")
	u4 := env.dial(t, "u4")

	send(t, u1a, model.EventJoinGroup, model.JoinGroupPayload{ConversationID: g.ID})
	send(t, u1a, model.EventSendGroupMessage, model.SendGroupMessagePayload{ConversationID: g.ID, Content: "hello all"})

	echo := readMessageEvent(t, u1a, model.EventMessageSent)
	assert.Equal(t, g.ID, echo.ChatID)
	for _, c := range []*websocket.Conn{u2, u3a, u3b} {
		got := readMessageEvent(t, c, model.EventNewMessage)
		assert.Equal(t, echo.Message.ID, got.Message.ID)
	}

	// A non-member is rejected and nothing is appended.
	send(t, u4, model.EventSendGroupMessage, model.SendGroupMessagePayload{ConversationID: g.ID, Content: "let me in"})
	assert.Equal(t, model.ErrNotAMember.Message, readError(t, u4))

	send(t, u4, model.EventJoinGroup, model.JoinGroupPayload{ConversationID: g.ID})
	assert.Equal(t, model.ErrNotAMember.Message, readError(t, u4))

	assert.Equal(t, []string{echo.Message.ID}, env.messageIDs(t, g.ID))

	// The sender's other device only sees traffic addressed to u1.
	send(t, u2, model.EventSendGroupMessage, model.SendGroupMessagePayload{ConversationID: g.ID, Content: "hi u1"})
	readMessageEvent(t, u2, model.EventMessageSent)
	got := readMessageEvent(t, u1b, model.EventNewMessage)
	assert.Equal(t, "hi u1", got.Message.Content)
}

func TestGateway_Typing(t *testing.T) {
	env := newTestEnv(t)
	u1 := env.dial(t, "u1")
	u2 := env.dial(t, "u2")

	send(t, u1, model.EventTyping, "u2")

	f := readFrame(t, u2)
	require.Equal(t, model.EventTyping, f.Event)
	var typing model.TypingEvent
	require.NoError(t, json.Unmarshal(f.Data, &typing))
	assert.Equal(t, "u1", typing.From)

	send(t, u1, model.EventTyping, "")
	assert.Equal(t, model.ErrInvalidPayload.Message, readError(t, u1))
}

func TestGateway_DisconnectDeregisters(t *testing.T) {
	env := newTestEnv(t)

	first := env.dial(t, "u1")
	second := env.dial(t, "u1")
	assert.Len(t, env.registry.Lookup("u1"), 2)

	first.Close()
	assert.Eventually(t, func() bool { return len(env.registry.Lookup("u1")) == 1 }, readTimeout, 10*time.Millisecond)

	second.Close()
	assert.Eventually(t, func() bool { return !env.registry.Online("u1") }, readTimeout, 10*time.Millisecond)
}

func TestGateway_ShutdownClosesConnections(t *testing.T) {
	env := newTestEnv(t)

	conn := env.dial(t, "u1")
	env.gateway.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))

	assert.Eventually(t, func() bool { return !env.registry.Online("u1") }, readTimeout, 10*time.Millisecond)
}

func TestGateway_RevokedAccountCannotReconnect(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "u2")

	env.dial(t, "u2")

	require.NoError(t, env.users.CreateUser(context.Background(), &model.User{ID: "u2", FirstName: "Dos", IsVerified: false}))

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.Dial(env.url(), header)
	if conn != nil {
		conn.Close()
	}
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_ConnectedIsFirstFrame(t *testing.T) {
	env := newTestEnv(t)
	typist := env.dial(t, "u1")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		raw, _ := json.Marshal("u2")
		for {
			select {
			case <-stop:
				return
			default:
			}
			if err := typist.WriteJSON(model.Frame{Event: model.EventTyping, Data: raw}); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+env.token(t, "u2"))
	for i := 0; i < 20; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(env.url(), header)
		require.NoError(t, err)
		f := readFrame(t, conn)
		conn.Close()
		require.Equal(t, model.EventConnected, f.Event, "attempt %d", i)
	}
}
