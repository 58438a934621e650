// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linkup-social/chat-platform/internal/middleware"
	"github.com/linkup-social/chat-platform/internal/model"
	"github.com/linkup-social/chat-platform/internal/service"
	"github.com/linkup-social/chat-platform/pkg/logger"
)

// GroupHandler handles group conversation endpoints.
type GroupHandler struct {
	service *service.GroupService
	logger  *logger.Logger
}

// NewGroupHandler creates a new group handler.
func NewGroupHandler(svc *service.GroupService, log *logger.Logger) *GroupHandler {
	return &GroupHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/groups
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateGroupName(req.GroupName); err != nil {
		writeAppError(w, r, h.logger, err, "create group")
		return
	}

	conv, err := h.service.Create(ctx, userID, &req)
	if err != nil {
		writeAppError(w, r, h.logger, err, "create group")
		return
	}

	writeJSON(w, http.StatusCreated, &model.ConversationResponse{Chat: conv, Created: true})
}

// List handles GET /api/v1/groups
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groups, err := h.service.List(ctx, middleware.GetUserID(ctx))
	if err != nil {
		writeAppError(w, r, h.logger, err, "list groups")
		return
	}
	if groups == nil {
		groups = []model.Conversation{}
	}

	writeJSON(w, http.StatusOK, &model.ListConversationsResponse{Chats: groups})
}

// Get handles GET /api/v1/groups/:id
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeAppError(w, r, h.logger, err, "get group")
		return
	}

	conv, err := h.service.Get(ctx, middleware.GetUserID(ctx), conversationID)
	if err != nil {
		writeAppError(w, r, h.logger, err, "get group")
		return
	}

	writeJSON(w, http.StatusOK, &model.ConversationResponse{Chat: conv})
}

// Rename handles PATCH /api/v1/groups/:id/name
func (h *GroupHandler) Rename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeAppError(w, r, h.logger, err, "rename group")
		return
	}

	var req model.RenameGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateGroupName(req.NewName); err != nil {
		writeAppError(w, r, h.logger, err, "rename group")
		return
	}

	conv, err := h.service.Rename(ctx, middleware.GetUserID(ctx), conversationID, req.NewName)
	if err != nil {
		writeAppError(w, r, h.logger, err, "rename group")
		return
	}

	writeJSON(w, http.StatusOK, &model.ConversationResponse{Chat: conv})
}

// AddMember handles POST /api/v1/groups/:id/members
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeAppError(w, r, h.logger, err, "add member")
		return
	}

	var req model.AddMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateUserID(req.UserID); err != nil {
		writeAppError(w, r, h.logger, err, "add member")
		return
	}

	conv, err := h.service.AddMember(ctx, middleware.GetUserID(ctx), conversationID, req.UserID)
	if err != nil {
		writeAppError(w, r, h.logger, err, "add member")
		return
	}

	writeJSON(w, http.StatusOK, &model.ConversationResponse{Chat: conv})
}

// RemoveMember handles DELETE /api/v1/groups/:id/members/:userId
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")
	targetID := chi.URLParam(r, "userId")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeAppError(w, r, h.logger, err, "remove member")
		return
	}
	if err := middleware.ValidateUserID(targetID); err != nil {
		writeAppError(w, r, h.logger, err, "remove member")
		return
	}

	conv, err := h.service.RemoveMember(ctx, middleware.GetUserID(ctx), conversationID, targetID)
	if err != nil {
		writeAppError(w, r, h.logger, err, "remove member")
		return
	}

	writeJSON(w, http.StatusOK, &model.ConversationResponse{Chat: conv})
}
