// Package ws owns the realtime WebSocket surface: one authenticated
// connection per user carrying presence, typing, message delivery and call
// signaling events as {"event", "data"} frames.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatlink-backend/internal/domain"
	"chatlink-backend/internal/service/call"
	"chatlink-backend/internal/service/chat"
	"chatlink-backend/internal/service/presence"
	"chatlink-backend/internal/service/signal"
	"chatlink-backend/internal/service/typing"
	"chatlink-backend/pkg/constants"
	apperrors "chatlink-backend/pkg/errors"
	"chatlink-backend/pkg/logger"
	"chatlink-backend/pkg/metrics"
)

// UserToucher records when a user was last connected
type UserToucher interface {
	TouchLastSeen(ctx context.Context, userID uuid.UUID, at time.Time) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev, restrict in production
	},
}

// Handler upgrades connections and routes inbound events to the coordination
// services. One Handler serves every connection.
type Handler struct {
	registry *presence.Registry
	typing   *typing.Coordinator
	chat     *chat.Service
	calls    *call.Manager
	relay    *signal.Relay
	users    UserToucher
	metrics  *metrics.Metrics
}

// NewHandler creates the WebSocket handler
func NewHandler(
	registry *presence.Registry,
	typingCoordinator *typing.Coordinator,
	chatService *chat.Service,
	callManager *call.Manager,
	relay *signal.Relay,
	users UserToucher,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		registry: registry,
		typing:   typingCoordinator,
		chat:     chatService,
		calls:    callManager,
		relay:    relay,
		users:    users,
		metrics:  m,
	}
}

// ServeWS upgrades the request and registers the user's connection. The auth
// middleware has already placed the caller's user ID in the gin context.
func (h *Handler) ServeWS(c *gin.Context) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid user_id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h, conn, userID)
	h.registry.Register(c.Request.Context(), userID, client)
	h.metrics.IncrementWebSocketConnections()

	logger.Info("websocket connected", zap.String("user_id", userID.String()))

	go client.writePump()
	go client.readPump()
}

// handleDisconnect tears down the user's realtime state after the read pump
// exits: pending typing timers, live call sessions, the presence entry. The
// presence entry only goes if this client is still the registered one; a
// reconnect that replaced it must not be evicted by the old socket's death.
func (h *Handler) handleDisconnect(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
	defer cancel()

	h.typing.Forget(c.userID)
	h.calls.TerminateFor(ctx, c.userID)

	if h.registry.Unregister(ctx, c.userID, c) {
		if err := h.users.TouchLastSeen(ctx, c.userID, time.Now()); err != nil {
			logger.Warn("last seen update failed",
				zap.String("user_id", c.userID.String()),
				zap.Error(err))
		}
	}

	c.close()
	h.metrics.DecrementWebSocketConnections()
	logger.Info("websocket disconnected", zap.String("user_id", c.userID.String()))
}

// dispatch routes one inbound frame. Handlers run on the read loop so events
// from one client keep their order; a panic is contained to the frame.
func (h *Handler) dispatch(c *Client, envelope Envelope) {
	defer func() {
		if r := recover(); r != nil {
			metrics.DispatchPanicTotal.Inc()
			logger.Error("panic in event handler",
				zap.String("event", envelope.Event),
				zap.String("user_id", c.userID.String()),
				zap.Any("panic", r))
		}
	}()

	h.metrics.RecordWebSocketMessage(envelope.Event, "in")

	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
	defer cancel()

	switch envelope.Event {
	case domain.EventTyping:
		var payload domain.TargetPayload
		if !h.parse(c, envelope, &payload) {
			return
		}
		h.typing.OnTyping(c.userID, payload.To)

	case domain.EventStopTyping:
		var payload domain.TargetPayload
		if !h.parse(c, envelope, &payload) {
			return
		}
		h.typing.OnStopTyping(c.userID, payload.To)

	case domain.EventMarkSeen:
		var payload domain.MarkSeenPayload
		if !h.parse(c, envelope, &payload) {
			return
		}
		c.setOpenConversation(payload.From)
		if _, err := h.chat.MarkSeen(ctx, c.userID, payload.From); err != nil {
			logger.Warn("mark seen failed",
				zap.String("user_id", c.userID.String()),
				zap.Error(err))
		}

	case domain.EventCallUser:
		var payload domain.CallUserPayload
		if !h.parse(c, envelope, &payload) {
			return
		}
		h.handleCallUser(ctx, c, payload)

	case domain.EventAnswerCall:
		var payload domain.AnswerCallPayload
		if !h.parse(c, envelope, &payload) {
			return
		}
		h.handleAnswerCall(ctx, c, payload)

	case domain.EventRejectCall:
		var payload domain.TargetPayload
		if !h.parse(c, envelope, &payload) {
			return
		}
		h.calls.Reject(ctx, c.userID, payload.To)

	case domain.EventIceCandidate:
		var payload domain.IceCandidatePayload
		if !h.parse(c, envelope, &payload) {
			return
		}
		h.relay.RelayCandidate(c.userID, payload.To, payload.Candidate)

	case domain.EventEndCall:
		var payload domain.TargetPayload
		if !h.parse(c, envelope, &payload) {
			return
		}
		h.calls.End(ctx, c.userID, payload.To)

	default:
		h.metrics.RecordWebSocketError("unknown_event")
		logger.Debug("unknown event",
			zap.String("event", envelope.Event),
			zap.String("user_id", c.userID.String()))
	}
}

// handleCallUser runs the dial sequence: create the session, then relay the
// offer. A relay failure means the receiver vanished after the session was
// created, so the session is torn down again and the caller told why.
func (h *Handler) handleCallUser(ctx context.Context, c *Client, payload domain.CallUserPayload) {
	callType := payload.CallType
	if callType == "" {
		callType = constants.CallTypeVideo
	}

	callID, err := h.calls.Initiate(ctx, c.userID, payload.To, callType)
	if err != nil {
		h.sendCallFailed(c, err)
		return
	}

	payload.CallType = callType
	if err := h.relay.RelayOffer(c.userID, callID, payload); err != nil {
		h.calls.End(ctx, c.userID, payload.To)
		h.sendCallFailed(c, err)
	}
}

// handleAnswerCall flips the session to accepted, then relays the SDP answer
func (h *Handler) handleAnswerCall(ctx context.Context, c *Client, payload domain.AnswerCallPayload) {
	accepted, err := h.calls.Answer(ctx, c.userID, payload.To)
	if err != nil {
		h.sendCallFailed(c, err)
		return
	}
	if !accepted {
		return
	}

	h.relay.RelayAnswer(c.userID, payload.To, payload.Answer)
}

func (h *Handler) sendCallFailed(c *Client, err error) {
	appErr := apperrors.GetAppError(err)
	if sendErr := c.Send(domain.EventCallFailed, domain.CallFailedPayload{Reason: appErr.Message}); sendErr != nil {
		logger.Debug("call failed push dropped", zap.String("user_id", c.userID.String()))
	}
}

// parse unmarshals the frame payload, counting and logging malformed ones
func (h *Handler) parse(c *Client, envelope Envelope, out interface{}) bool {
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		h.metrics.RecordWebSocketError("invalid_payload")
		logger.Debug("dropping malformed payload",
			zap.String("event", envelope.Event),
			zap.String("user_id", c.userID.String()))
		return false
	}
	return true
}
