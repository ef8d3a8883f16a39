package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/communitypulse/server/internal/model"
	"github.com/communitypulse/server/internal/repository"
)

// NotificationHandler serves a user's notification feed.
type NotificationHandler struct {
	Notifications *repository.NotificationRepo
}

func NewNotificationHandler(n *repository.NotificationRepo) *NotificationHandler {
	if n == nil {
		panic("nil repository passed to NewNotificationHandler")
	}
	return &NotificationHandler{Notifications: n}
}

type notificationResp struct {
	ID        uint64    `json:"id"`
	EventID   uint64    `json:"event_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

func notificationListOf(notes []model.Notification) []notificationResp {
	out := make([]notificationResp, 0, len(notes))
	for _, n := range notes {
		out = append(out, notificationResp{
			ID:        n.ID,
			EventID:   n.EventID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

// List returns the user's unread notifications, newest first.
func (h *NotificationHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	notes, err := h.Notifications.ListUnreadByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list notifications failed"})
	}
	return c.JSON(http.StatusOK, notificationListOf(notes))
}

// MarkRead acknowledges one notification. Users can only touch their own.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid notification id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Notifications.MarkRead(ctx, id, uid); err != nil {
		if err == repository.ErrNotificationNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "notification not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "mark read failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "notification read"})
}
