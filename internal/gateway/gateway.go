// Package gateway serves authenticated WebSocket sessions and routes chat
// events between them.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linkup-social/chat-platform/internal/auth"
	"github.com/linkup-social/chat-platform/internal/model"
	"github.com/linkup-social/chat-platform/internal/presence"
	"github.com/linkup-social/chat-platform/pkg/logger"
	"github.com/linkup-social/chat-platform/pkg/metrics"
)

// ErrUnknownEvent is returned for frames whose event name has no handler.
var ErrUnknownEvent = model.NewError(model.KindValidation, "unknown_event", "Unknown event")

const fallbackErrorMessage = "Something went wrong"

// Authenticator resolves handshake credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*model.User, *auth.Claims, error)
}

// Dispatcher persists chat events and resolves their recipients.
type Dispatcher interface {
	SendDirect(ctx context.Context, senderID, recipientID, content string) (*model.Delivery, error)
	SendGroup(ctx context.Context, senderID, conversationID, content string) (*model.Delivery, error)
	JoinGroup(ctx context.Context, userID, conversationID string) (*model.Conversation, error)
}

// Config holds gateway timing and sizing.
type Config struct {
	AuthTimeout  time.Duration
	EventTimeout time.Duration
	ReadLimit    int64
	PongWait     time.Duration
	PingPeriod   time.Duration
	WriteWait    time.Duration
	SendBuffer   int
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		AuthTimeout:  5 * time.Second,
		EventTimeout: 10 * time.Second,
		ReadLimit:    64 * 1024,
		PongWait:     60 * time.Second,
		PingPeriod:   25 * time.Second,
		WriteWait:    10 * time.Second,
		SendBuffer:   64,
	}
}

// Gateway is the http.Handler for the WebSocket endpoint.
type Gateway struct {
	auth     Authenticator
	chat     Dispatcher
	registry *presence.Registry
	cfg      Config
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

// New creates a gateway.
func New(authenticator Authenticator, chat Dispatcher, registry *presence.Registry, cfg Config, log *logger.Logger) *Gateway {
	return &Gateway{
		auth:     authenticator,
		chat:     chat,
		registry: registry,
		cfg:      cfg,
		logger:   log.Named("gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP authenticates the handshake, upgrades the connection and runs the
// session until the client disconnects. A failed authentication is answered
// with 401 before any upgrade.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	credential := r.Header.Get("Authorization")
	if credential == "" {
		credential = r.URL.Query().Get("authorization")
	}

	authCtx, cancel := context.WithTimeout(r.Context(), g.cfg.AuthTimeout)
	user, _, err := g.auth.Authenticate(authCtx, credential)
	cancel()
	if err != nil {
		metrics.WSConnectionAttempts.WithLabelValues("rejected").Inc()
		if model.KindOf(err) == "" {
			g.logger.Error("handshake authentication failed", zap.Error(err))
		}
		reason := "Unauthorized: Invalid token"
		if errors.Is(err, auth.ErrMissingCredential) {
			reason = "Unauthorized: Missing token"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": reason})
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		metrics.WSConnectionAttempts.WithLabelValues("upgrade_failed").Inc()
		return
	}
	metrics.WSConnectionAttempts.WithLabelValues("accepted").Inc()

	conn := newConnection(user.ID, ws, g.cfg)
	log := g.logger.WithConnection(user.ID, conn.ID())
	conn.start()

	// The ack is queued before registration so it is always the first frame.
	g.emit(conn, model.EventConnected, model.NoticeEvent{Message: "Socket connection established"})

	g.registry.Register(user.ID, conn)
	metrics.IncrementWSConnections()
	log.Info("connected",
		zap.String("name", user.FullName()),
		zap.Int("online_users", g.registry.UserCount()),
		zap.Int("connections", g.registry.ConnectionCount()),
	)

	defer func() {
		g.registry.Deregister(user.ID, conn.ID())
		metrics.DecrementWSConnections()
		conn.Close(websocket.CloseNormalClosure, "session closed")
		log.Info("disconnected", zap.Bool("still_online", g.registry.Online(user.ID)))
	}()

	g.readLoop(r.Context(), conn, ws, log)
}

// Shutdown closes every live connection with a going-away status. Hijacked
// connections are not tracked by http.Server, so it is registered with
// RegisterOnShutdown.
func (g *Gateway) Shutdown() {
	n := 0
	for _, sink := range g.registry.All() {
		if conn, ok := sink.(*Connection); ok {
			conn.Close(websocket.CloseGoingAway, "server shutting down")
			n++
		}
	}
	g.logger.Info("closed live connections", zap.Int("connections", n))
}

func (g *Gateway) readLoop(ctx context.Context, conn *Connection, ws *websocket.Conn, log *logger.Logger) {
	ws.SetReadLimit(g.cfg.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	})

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Debug("read failed", zap.Error(err))
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))

		if messageType != websocket.TextMessage {
			g.replyError(conn, model.ErrInvalidPayload, log)
			continue
		}

		var frame model.Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			g.replyError(conn, model.ErrInvalidPayload, log)
			continue
		}

		g.handle(ctx, conn, frame, log)
	}
}

// handle processes one inbound frame. Failures go to the originating
// connection only.
func (g *Gateway) handle(parent context.Context, conn *Connection, frame model.Frame, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(parent, g.cfg.EventTimeout)
	defer cancel()

	start := time.Now()
	var err error
	switch frame.Event {
	case model.EventSendMessage:
		err = g.handleSendMessage(ctx, conn, frame.Data)
	case model.EventSendGroupMessage:
		err = g.handleSendGroupMessage(ctx, conn, frame.Data)
	case model.EventTyping:
		err = g.handleTyping(conn, frame.Data)
	case model.EventJoinGroup:
		err = g.handleJoinGroup(ctx, conn, frame.Data)
	default:
		err = ErrUnknownEvent
	}

	event := frame.Event
	if errors.Is(err, ErrUnknownEvent) {
		event = "unknown"
	}
	status := "ok"
	if err != nil {
		status = "error"
		g.replyError(conn, err, log.With(zap.String("event", frame.Event)))
	}
	metrics.RecordEvent(event, status, time.Since(start).Seconds())
}

func (g *Gateway) handleSendMessage(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var p model.SendMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.RecipientID) == "" {
		return model.ErrInvalidPayload
	}

	d, err := g.chat.SendDirect(ctx, conn.UserID(), p.RecipientID, p.Content)
	if err != nil {
		return err
	}
	g.deliver(conn, d)
	return nil
}

func (g *Gateway) handleSendGroupMessage(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var p model.SendGroupMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.ConversationID) == "" {
		return model.ErrInvalidPayload
	}

	d, err := g.chat.SendGroup(ctx, conn.UserID(), p.ConversationID, p.Content)
	if err != nil {
		return err
	}
	g.deliver(conn, d)
	return nil
}

// handleTyping accepts the recipient id as a bare JSON string or as
// {"recipientId": "..."}.
func (g *Gateway) handleTyping(conn *Connection, data json.RawMessage) error {
	var recipientID string
	if err := json.Unmarshal(data, &recipientID); err != nil {
		var p model.SendMessagePayload
		if err := decode(data, &p); err != nil {
			return err
		}
		recipientID = p.RecipientID
	}
	if strings.TrimSpace(recipientID) == "" {
		return model.ErrInvalidPayload
	}

	frame, err := encodeFrame(model.EventTyping, model.TypingEvent{From: conn.UserID()})
	if err != nil {
		return err
	}
	g.fanOut(recipientID, model.EventTyping, frame)
	return nil
}

func (g *Gateway) handleJoinGroup(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var p model.JoinGroupPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := g.chat.JoinGroup(ctx, conn.UserID(), p.ConversationID)
	return err
}

// deliver echoes the message to the sending connection and pushes it to every
// live connection of each recipient.
func (g *Gateway) deliver(conn *Connection, d *model.Delivery) {
	payload := model.ChatMessageEvent{Message: d.Message, ChatID: d.ConversationID}

	g.emit(conn, model.EventMessageSent, payload)

	frame, err := encodeFrame(model.EventNewMessage, payload)
	if err != nil {
		g.logger.Error("failed to encode frame", zap.String("event", model.EventNewMessage), zap.Error(err))
		return
	}
	for _, recipientID := range d.Recipients {
		g.fanOut(recipientID, model.EventNewMessage, frame)
	}
}

func (g *Gateway) fanOut(userID, event string, frame []byte) {
	for _, sink := range g.registry.Sinks(userID) {
		err := sink.Send(frame)
		metrics.RecordDelivery(event, err == nil)
		if err != nil {
			g.logger.Debug("dropped outbound frame",
				zap.String("event", event),
				zap.String("user_id", userID),
				zap.String("connection_id", sink.ID()),
				zap.Error(err),
			)
		}
	}
}

func (g *Gateway) emit(conn *Connection, event string, data any) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		g.logger.Error("failed to encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	err = conn.Send(frame)
	metrics.RecordDelivery(event, err == nil)
}

func (g *Gateway) replyError(conn *Connection, err error, log *logger.Logger) {
	if model.KindOf(err) == "" {
		log.Error("event failed", zap.Error(err))
	} else {
		log.Debug("event rejected", zap.Error(err))
	}
	g.emit(conn, model.EventCustomError, model.NoticeEvent{Message: model.PublicMessage(err, fallbackErrorMessage)})
}

func decode(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return model.ErrInvalidPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return model.ErrInvalidPayload
	}
	return nil
}

func encodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(model.Frame{Event: event, Data: raw})
}
