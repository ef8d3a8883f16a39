package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/communitypulse/server/internal/model"
	"github.com/communitypulse/server/internal/queue"
	"github.com/communitypulse/server/internal/registration"
	"github.com/communitypulse/server/internal/repository"
)

// ConfirmationPublisher pushes confirmed-registration events onto the
// message queue. Publishing is best effort, so a nil publisher is valid.
type ConfirmationPublisher interface {
	PublishConfirmed(evt queue.RegistrationConfirmed)
}

// UserDirectory is the slice of the user repository the registration
// handlers need to resolve the acting account.
type UserDirectory interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// RegistrationHandler exposes the registration lifecycle over HTTP.
// All state transitions go through the manager; the handler only
// parses, authorizes and translates errors.
type RegistrationHandler struct {
	Manager       *registration.Manager
	Users         UserDirectory
	Events        *repository.EventRepo
	Registrations *repository.RegistrationRepo
	Publisher     ConfirmationPublisher
}

func NewRegistrationHandler(m *registration.Manager, users UserDirectory,
	events *repository.EventRepo, regs *repository.RegistrationRepo, pub ConfirmationPublisher) *RegistrationHandler {
	if m == nil || users == nil || events == nil || regs == nil {
		panic("nil dependency passed to NewRegistrationHandler")
	}
	return &RegistrationHandler{Manager: m, Users: users, Events: events, Registrations: regs, Publisher: pub}
}

// ----- DTOs -----

type attendeesReq struct {
	Attendees         []string `json:"attendees"`
	NumberOfAttendees int      `json:"number_of_attendees"`
}

type registrationResp struct {
	ID                uint64    `json:"id"`
	EventID           uint64    `json:"event_id"`
	UserID            uint64    `json:"user_id"`
	Status            string    `json:"status"`
	NumberOfAttendees uint32    `json:"number_of_attendees"`
	Attendees         []string  `json:"attendees"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func registrationRespOf(r *model.Registration) registrationResp {
	att := r.Attendees
	if att == nil {
		att = []string{}
	}
	return registrationResp{
		ID:                r.ID,
		EventID:           r.EventID,
		UserID:            r.UserID,
		Status:            r.Status,
		NumberOfAttendees: r.NumberOfAttendees,
		Attendees:         att,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// userAndEvent resolves the acting user and the :id path parameter.
// On failure the response is already written and ok is false.
func (h *RegistrationHandler) userAndEvent(c echo.Context) (uid, eventID uint64, ok bool) {
	uid, err := getUserID(c)
	if err != nil {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		return 0, 0, false
	}
	eventID, err = pathID(c, "id")
	if err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
		return 0, 0, false
	}
	return uid, eventID, true
}

// activeUser loads the acting account and rejects banned users. Bans
// take effect immediately even while an access token is still valid.
// On failure the response is already written and ok is false.
func (h *RegistrationHandler) activeUser(ctx context.Context, c echo.Context, uid uint64) (model.User, bool) {
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
		return model.User{}, false
	}
	if u.IsBanned {
		_ = c.JSON(http.StatusForbidden, echo.Map{"error": "account is banned"})
		return model.User{}, false
	}
	return u, true
}

// Interest marks the user as interested in an event. The user's own
// name becomes the single attendee entry.
func (h *RegistrationHandler) Interest(c echo.Context) error {
	uid, eventID, ok := h.userAndEvent(c)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	u, ok := h.activeUser(ctx, c, uid)
	if !ok {
		return nil
	}

	reg, err := h.Manager.MarkInterest(ctx, eventID, uid, u.Username)
	if err != nil {
		return writeLifecycleErr(c, err)
	}
	return c.JSON(http.StatusCreated, registrationRespOf(reg))
}

// Confirm upgrades an interested registration to REGISTERED with the
// final attendee list.
func (h *RegistrationHandler) Confirm(c echo.Context) error {
	uid, eventID, ok := h.userAndEvent(c)
	if !ok {
		return nil
	}
	var req attendeesReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if _, ok := h.activeUser(ctx, c, uid); !ok {
		return nil
	}

	reg, err := h.Manager.Confirm(ctx, eventID, uid, req.Attendees, req.NumberOfAttendees)
	if err != nil {
		return writeLifecycleErr(c, err)
	}
	h.publishConfirmed(reg)
	return c.JSON(http.StatusOK, registrationRespOf(reg))
}

// Register creates a REGISTERED registration directly, skipping the
// interest step.
func (h *RegistrationHandler) Register(c echo.Context) error {
	uid, eventID, ok := h.userAndEvent(c)
	if !ok {
		return nil
	}
	var req attendeesReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if _, ok := h.activeUser(ctx, c, uid); !ok {
		return nil
	}

	reg, err := h.Manager.RegisterDirect(ctx, eventID, uid, req.Attendees, req.NumberOfAttendees)
	if err != nil {
		return writeLifecycleErr(c, err)
	}
	h.publishConfirmed(reg)
	return c.JSON(http.StatusCreated, registrationRespOf(reg))
}

// Cancel cancels the user's active registration for an event.
func (h *RegistrationHandler) Cancel(c echo.Context) error {
	uid, eventID, ok := h.userAndEvent(c)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if _, ok := h.activeUser(ctx, c, uid); !ok {
		return nil
	}

	reg, err := h.Manager.Cancel(ctx, eventID, uid)
	if err != nil {
		return writeLifecycleErr(c, err)
	}
	return c.JSON(http.StatusOK, registrationRespOf(reg))
}

// Mine lists all of the user's registrations, cancelled ones included.
func (h *RegistrationHandler) Mine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	regs, err := h.Registrations.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list registrations failed"})
	}
	return c.JSON(http.StatusOK, regs)
}

// ByEvent lists registrations for an event. Only the organizer and
// admins may see the attendee roster.
func (h *RegistrationHandler) ByEvent(c echo.Context) error {
	uid, eventID, ok := h.userAndEvent(c)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}
	if role, _ := c.Get("role").(string); ev.OrganizerID != uid && role != "ADMIN" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	regs, err := h.Registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list registrations failed"})
	}
	return c.JSON(http.StatusOK, regs)
}

func (h *RegistrationHandler) publishConfirmed(reg *model.Registration) {
	if h.Publisher == nil || reg == nil {
		return
	}
	h.Publisher.PublishConfirmed(queue.RegistrationConfirmed{
		RegistrationID:    reg.ID,
		EventID:           reg.EventID,
		UserID:            reg.UserID,
		Status:            reg.Status,
		NumberOfAttendees: reg.NumberOfAttendees,
		ConfirmedAt:       time.Now().UTC(),
	})
}
