package handlers

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/platform/apierr"
	"github.com/yungbote/trainhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/platform/validation"
	"github.com/yungbote/trainhub-backend/internal/realtime"
	"github.com/yungbote/trainhub-backend/internal/services"
)

type RealtimeHandler struct {
	log        *logger.Logger
	hub        *realtime.SSEHub
	authorizer services.Authorizer
	validator  *validation.Validator

	mu      sync.RWMutex
	clients map[string]*realtime.SSEClient // key: access token
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, authorizer services.Authorizer, validator *validation.Validator) *RealtimeHandler {
	return &RealtimeHandler{
		log:        log.With("handler", "RealtimeHandler"),
		hub:        hub,
		authorizer: authorizer,
		validator:  validator,
		clients:    make(map[string]*realtime.SSEClient),
	}
}

// GET /api/sse/stream?courseId=
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	ctx := c.Request.Context()
	actor := ctxutil.GetActor(ctx)
	if actor == nil {
		response.RespondError(c, fmt.Errorf("%w: no actor", apierr.ErrUnauthorized))
		return
	}
	courseID, ok := queryUUID(c, "courseId")
	if !ok {
		return
	}
	if courseID != nil {
		if _, err := h.authorizer.CanViewCourse(ctx, actor, *courseID); err != nil {
			response.RespondError(c, err)
			return
		}
	}

	h.mu.Lock()
	// A reconnect on the same session replaces the old stream.
	if existing, ok := h.clients[actor.Token]; ok {
		h.hub.CloseClient(existing)
	}
	client := h.hub.NewSSEClient(actor.UserID)
	h.clients[actor.Token] = client
	h.mu.Unlock()

	h.hub.AddChannel(client, realtime.UserChannel(actor.UserID))
	if courseID != nil {
		h.hub.AddChannel(client, realtime.CourseChannel(*courseID))
	}
	client.Logger.Debug("SSE stream open", "user_id", actor.UserID.String())

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.mu.Lock()
	if h.clients[actor.Token] == client {
		delete(h.clients, actor.Token)
	}
	h.mu.Unlock()
	h.hub.CloseClient(client)
}

type channelRequest struct {
	CourseID string `json:"courseId" validate:"required,uuid"`
}

// POST /api/sse/subscribe
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	client, courseChannel, ok := h.courseChannel(c, "Realtime.Subscribe")
	if !ok {
		return
	}
	h.hub.AddChannel(client, courseChannel)
	response.RespondMessage(c, "subscribed", gin.H{"channel": courseChannel})
}

// POST /api/sse/unsubscribe
func (h *RealtimeHandler) Unsubscribe(c *gin.Context) {
	client, courseChannel, ok := h.courseChannel(c, "Realtime.Unsubscribe")
	if !ok {
		return
	}
	h.hub.RemoveChannel(client, courseChannel)
	response.RespondMessage(c, "unsubscribed", gin.H{"channel": courseChannel})
}

func (h *RealtimeHandler) courseChannel(c *gin.Context, op string) (*realtime.SSEClient, string, bool) {
	ctx := c.Request.Context()
	actor := ctxutil.GetActor(ctx)
	if actor == nil {
		response.RespondError(c, fmt.Errorf("%w: no actor", apierr.ErrUnauthorized))
		return nil, "", false
	}
	var req channelRequest
	if !bindJSON(c, h.validator, op, &req) {
		return nil, "", false
	}
	ids, err := parseUUIDs("courseId", []string{req.CourseID})
	if err != nil {
		response.RespondError(c, err)
		return nil, "", false
	}
	if _, err := h.authorizer.CanViewCourse(ctx, actor, ids[0]); err != nil {
		response.RespondError(c, err)
		return nil, "", false
	}

	h.mu.RLock()
	client, exists := h.clients[actor.Token]
	h.mu.RUnlock()
	if !exists {
		response.RespondError(c, domainagg.NewError(domainagg.CodePreconditionFailed, op, "no active stream for this session", nil))
		return nil, "", false
	}
	return client, realtime.CourseChannel(ids[0]), true
}
