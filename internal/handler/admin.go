package handler

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/communitypulse/server/internal/config"
	"github.com/communitypulse/server/internal/model"
	"github.com/communitypulse/server/internal/repository"
)

// AdminHandler implements the moderation surface: event review and
// user management. Routes using it sit behind RequireRole("ADMIN").
type AdminHandler struct {
	Cfg           config.Config
	Users         *repository.UserRepo
	Events        *repository.EventRepo
	Notifications *repository.NotificationRepo
}

func NewAdminHandler(cfg config.Config, users *repository.UserRepo,
	events *repository.EventRepo, notes *repository.NotificationRepo) *AdminHandler {
	if users == nil || events == nil || notes == nil {
		panic("nil repository passed to NewAdminHandler")
	}
	return &AdminHandler{Cfg: cfg, Users: users, Events: events, Notifications: notes}
}

type userFlagsReq struct {
	IsAdmin             *bool `json:"is_admin"`
	IsVerifiedOrganizer *bool `json:"is_verified_organizer"`
	IsBanned            *bool `json:"is_banned"`
}

type adminUserResp struct {
	ID                  uint64    `json:"id"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	Phone               string    `json:"phone"`
	IsAdmin             bool      `json:"is_admin"`
	IsVerifiedOrganizer bool      `json:"is_verified_organizer"`
	IsBanned            bool      `json:"is_banned"`
	CreatedAt           time.Time `json:"created_at"`
}

func adminUserRespOf(u model.User) adminUserResp {
	return adminUserResp{
		ID:                  u.ID,
		Username:            u.Username,
		Email:               u.Email,
		Phone:               u.Phone,
		IsAdmin:             u.IsAdmin,
		IsVerifiedOrganizer: u.IsVerifiedOrganizer,
		IsBanned:            u.IsBanned,
		CreatedAt:           u.CreatedAt,
	}
}

// PendingEvents lists events awaiting review, oldest first.
func (h *AdminHandler) PendingEvents(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	evs, err := h.Events.ListPending(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list pending failed"})
	}
	return c.JSON(http.StatusOK, eventListOf(evs))
}

// ApproveEvent flips the approval flag and tells the organizer.
func (h *AdminHandler) ApproveEvent(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}
	if err := h.Events.SetApproved(ctx, id, true); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "approve failed"})
	}

	h.notifyOrganizer(ctx, ev, model.NotificationUpdate, "Event Approved",
		fmt.Sprintf("Your event %q has been approved and is now listed.", ev.Title))
	return c.JSON(http.StatusOK, echo.Map{"message": "event approved"})
}

// RejectEvent removes a pending event entirely and tells the
// organizer where to follow up.
func (h *AdminHandler) RejectEvent(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}

	msg := fmt.Sprintf("Your event %q was rejected and has been removed.", ev.Title)
	if h.Cfg.AdminEmail != "" {
		msg += " Contact " + h.Cfg.AdminEmail + " for details."
	}
	h.notifyOrganizer(ctx, ev, model.NotificationCancellation, "Event Rejected", msg)

	if err := h.Events.Delete(ctx, id); err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reject failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "event rejected"})
}

// ListUsers returns every user account.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	users, err := h.Users.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list users failed"})
	}
	out := make([]adminUserResp, 0, len(users))
	for _, u := range users {
		out = append(out, adminUserRespOf(u))
	}
	return c.JSON(http.StatusOK, out)
}

// UpdateUser patches moderation flags: admin, verified organizer, banned.
// Omitted fields stay untouched.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req userFlagsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.IsAdmin == nil && req.IsVerifiedOrganizer == nil && req.IsBanned == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no flags to update"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.UpdateFlags(ctx, id, req.IsAdmin, req.IsVerifiedOrganizer, req.IsBanned); err != nil {
		if err == repository.ErrUserNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update user failed"})
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	return c.JSON(http.StatusOK, adminUserRespOf(u))
}

// UserEvents lists all events created by one user, any approval state.
func (h *AdminHandler) UserEvents(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	evs, err := h.Events.ListByOrganizer(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list events failed"})
	}
	return c.JSON(http.StatusOK, eventListOf(evs))
}

func (h *AdminHandler) notifyOrganizer(ctx context.Context, ev model.Event, typ, title, message string) {
	n := &model.Notification{
		EventID: ev.ID,
		UserID:  ev.OrganizerID,
		Title:   title,
		Message: message,
		Type:    typ,
	}
	if err := h.Notifications.Create(ctx, n); err != nil {
		log.Printf("admin: notify organizer=%d event=%d failed: %v", ev.OrganizerID, ev.ID, err)
	}
}
