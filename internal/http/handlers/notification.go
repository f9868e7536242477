package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainhub-backend/internal/http/response"
	"github.com/yungbote/trainhub-backend/internal/services"
)

type NotificationHandler struct {
	notifications services.NotificationService
}

func NewNotificationHandler(notifications services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// GET /api/notifications?unread=true&page=&limit=
func (h *NotificationHandler) List(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.Query("unread"))
	res, err := h.notifications.List(c.Request.Context(), unread, pageFrom(c))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondPage(c, res.Items, res.Page.Page, res.Page.Limit, res.Total)
}

// GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context())
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"count": n})
}

// POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), id); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondMessage(c, "notification marked read", nil)
}
