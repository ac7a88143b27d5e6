// Package chat exposes the messaging REST surface: sending a message,
// loading a conversation and the sidebar listing.
package chat

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatlink-backend/internal/domain"
	"chatlink-backend/internal/service/chat"
	apperrors "chatlink-backend/pkg/errors"
	"chatlink-backend/pkg/response"
)

// Handler handles chat HTTP requests
type Handler struct {
	chatService *chat.Service
}

// NewHandler creates a new chat handler
func NewHandler(chatService *chat.Service) *Handler {
	return &Handler{
		chatService: chatService,
	}
}

// SendMessage handles sending a new message to the user in the path
// POST /v1/messages/:id
func (h *Handler) SendMessage(c *gin.Context) {
	senderID, ok := currentUserID(c)
	if !ok {
		return
	}

	receiverID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid receiver ID")
		return
	}

	var req domain.MessageCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	message, err := h.chatService.SendMessage(c.Request.Context(), senderID, receiverID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, message)
}

// GetMessages retrieves the conversation with the user in the path
// GET /v1/messages/:id?limit=20
func (h *Handler) GetMessages(c *gin.Context) {
	viewerID, ok := currentUserID(c)
	if !ok {
		return
	}

	peerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid user ID")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			response.ValidationError(c, "Invalid limit")
			return
		}
	}

	messages, err := h.chatService.GetConversation(c.Request.Context(), viewerID, peerID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, messages)
}

// GetSidebar lists every other user with the viewer's unseen message count
// GET /v1/users/sidebar
func (h *Handler) GetSidebar(c *gin.Context) {
	viewerID, ok := currentUserID(c)
	if !ok {
		return
	}

	entries, err := h.chatService.Sidebar(c.Request.Context(), viewerID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, entries)
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return uuid.Nil, false
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		response.InternalError(c, "Invalid user ID")
		return uuid.Nil, false
	}
	return userID, true
}

func writeError(c *gin.Context, err error) {
	appErr := apperrors.GetAppError(err)
	response.Error(c, appErr.StatusCode, string(appErr.Code), appErr.Message)
}
