package handler

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/communitypulse/server/internal/config"
	"github.com/communitypulse/server/internal/model"
	"github.com/communitypulse/server/internal/repository"
)

// EventHandler bundles dependencies for event CRUD and discovery.
type EventHandler struct {
	Cfg           config.Config
	Users         *repository.UserRepo
	Events        *repository.EventRepo
	Registrations *repository.RegistrationRepo
	Notifications *repository.NotificationRepo
}

func NewEventHandler(cfg config.Config, users *repository.UserRepo, events *repository.EventRepo,
	regs *repository.RegistrationRepo, notes *repository.NotificationRepo) *EventHandler {
	if users == nil || events == nil || regs == nil || notes == nil {
		panic("nil repository passed to NewEventHandler")
	}
	return &EventHandler{Cfg: cfg, Users: users, Events: events, Registrations: regs, Notifications: notes}
}

// ----- DTOs -----

type eventResp struct {
	ID                uint64    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Location          string    `json:"location"`
	Category          string    `json:"category"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	RegistrationStart time.Time `json:"registration_start"`
	RegistrationEnd   time.Time `json:"registration_end"`
	ImageURL          *string   `json:"image_url"`
	OrganizerID       uint64    `json:"organizer_id"`
	IsApproved        bool      `json:"is_approved"`
	AttendeesCount    uint32    `json:"attendees_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func eventRespOf(ev model.Event) eventResp {
	r := eventResp{
		ID:                ev.ID,
		Title:             ev.Title,
		Description:       ev.Description,
		Location:          ev.Location,
		Category:          ev.Category,
		StartDate:         ev.StartDate,
		EndDate:           ev.EndDate,
		RegistrationStart: ev.RegistrationStart,
		RegistrationEnd:   ev.RegistrationEnd,
		OrganizerID:       ev.OrganizerID,
		IsApproved:        ev.IsApproved,
		AttendeesCount:    ev.AttendeesCount,
		CreatedAt:         ev.CreatedAt,
		UpdatedAt:         ev.UpdatedAt,
	}
	if ev.ImagePath != nil {
		u := "/uploads/" + filepath.Base(*ev.ImagePath)
		r.ImageURL = &u
	}
	return r
}

func eventListOf(evs []model.Event) []eventResp {
	out := make([]eventResp, 0, len(evs))
	for _, ev := range evs {
		out = append(out, eventRespOf(ev))
	}
	return out
}

// formTime parses a required RFC 3339 form value.
func formTime(c echo.Context, key string) (time.Time, error) {
	v := strings.TrimSpace(c.FormValue(key))
	if v == "" {
		return time.Time{}, fmt.Errorf("%s required", key)
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC3339", key)
	}
	return t.UTC(), nil
}

// formOpt returns the value of a form field and whether it was present
// at all, so updates can tell "clear" apart from "leave unchanged".
func formOpt(c echo.Context, key string) (string, bool) {
	var vals url.Values
	if f, err := c.MultipartForm(); err == nil && f != nil {
		vals = url.Values(f.Value)
	} else if v, err := c.FormParams(); err == nil {
		vals = v
	}
	if vals == nil {
		return "", false
	}
	vs, ok := vals[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return strings.TrimSpace(vs[0]), true
}

// Create stores a new event from a multipart form. Verified organizers
// and admins are approved immediately; everyone else waits for review.
func (h *EventHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	if u.IsBanned {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account is banned"})
	}

	ev := model.Event{
		Title:       strings.TrimSpace(c.FormValue("title")),
		Description: strings.TrimSpace(c.FormValue("description")),
		Location:    strings.TrimSpace(c.FormValue("location")),
		Category:    strings.TrimSpace(c.FormValue("category")),
		OrganizerID: uid,
		IsApproved:  u.IsAdmin || u.IsVerifiedOrganizer,
	}
	if ev.Title == "" || ev.Location == "" || ev.Category == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title/location/category required"})
	}
	for _, f := range []struct {
		key string
		dst *time.Time
	}{
		{"start_date", &ev.StartDate},
		{"end_date", &ev.EndDate},
		{"registration_start", &ev.RegistrationStart},
		{"registration_end", &ev.RegistrationEnd},
	} {
		t, err := formTime(c, f.key)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		*f.dst = t
	}
	if !ev.EndDate.After(ev.StartDate) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date must be after start_date"})
	}
	if !ev.RegistrationEnd.After(ev.RegistrationStart) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "registration_end must be after registration_start"})
	}

	if file, err := c.FormFile("image"); err == nil && file != nil {
		path, err := h.saveImage(file)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store image failed"})
		}
		ev.ImagePath = &path
	}

	if err := h.Events.Create(ctx, &ev); err != nil {
		h.removeImage(ev.ImagePath)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create event failed"})
	}
	return c.JSON(http.StatusCreated, eventRespOf(ev))
}

// List returns approved events, optionally filtered by category and
// restricted to upcoming ones.
func (h *EventHandler) List(c echo.Context) error {
	f := repository.EventFilter{
		Category:     strings.TrimSpace(c.QueryParam("category")),
		UpcomingOnly: c.QueryParam("upcoming") == "true",
		ApprovedOnly: true,
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	evs, err := h.Events.List(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list events failed"})
	}
	return c.JSON(http.StatusOK, eventListOf(evs))
}

// Search matches approved events against title, description, location
// and category.
func (h *EventHandler) Search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "q required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	evs, err := h.Events.Search(ctx, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}
	return c.JSON(http.StatusOK, eventListOf(evs))
}

// Get returns a single approved event. Unapproved events stay
// invisible here; organizers see theirs through Mine.
func (h *EventHandler) Get(c echo.Context) error {
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
	if !ev.IsApproved {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	return c.JSON(http.StatusOK, eventRespOf(ev))
}

// Mine lists the authenticated organizer's own events, approved or not.
func (h *EventHandler) Mine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	evs, err := h.Events.ListByOrganizer(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list events failed"})
	}
	return c.JSON(http.StatusOK, eventListOf(evs))
}

// Update applies a partial multipart form update. Only the organizer
// or an admin may edit. Edits by an unverified organizer drop the
// approval flag so the event goes back through review; active
// registrants are notified about the change either way.
func (h *EventHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	if ev.OrganizerID != uid && !u.IsAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if u.IsBanned {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account is banned"})
	}

	for _, f := range []struct {
		key string
		dst *string
	}{
		{"title", &ev.Title},
		{"description", &ev.Description},
		{"location", &ev.Location},
		{"category", &ev.Category},
	} {
		if v, ok := formOpt(c, f.key); ok && v != "" {
			*f.dst = v
		}
	}
	for _, f := range []struct {
		key string
		dst *time.Time
	}{
		{"start_date", &ev.StartDate},
		{"end_date", &ev.EndDate},
		{"registration_start", &ev.RegistrationStart},
		{"registration_end", &ev.RegistrationEnd},
	} {
		if _, ok := formOpt(c, f.key); !ok {
			continue
		}
		t, err := formTime(c, f.key)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		*f.dst = t
	}
	if !ev.EndDate.After(ev.StartDate) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date must be after start_date"})
	}
	if !ev.RegistrationEnd.After(ev.RegistrationStart) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "registration_end must be after registration_start"})
	}

	oldImage := ev.ImagePath
	if file, err := c.FormFile("image"); err == nil && file != nil {
		path, err := h.saveImage(file)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store image failed"})
		}
		ev.ImagePath = &path
	}

	if !u.IsAdmin && !u.IsVerifiedOrganizer {
		ev.IsApproved = false
	}

	if err := h.Events.Update(ctx, &ev); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update event failed"})
	}
	if oldImage != nil && ev.ImagePath != oldImage {
		h.removeImage(oldImage)
	}

	h.notifyRegistrants(ctx, ev, model.NotificationUpdate, "Event Updated",
		fmt.Sprintf("The event %q has been updated.", ev.Title))

	return c.JSON(http.StatusOK, eventRespOf(ev))
}

// Delete removes an event. Active registrants get a cancellation
// notification before the rows cascade away.
func (h *EventHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	if ev.OrganizerID != uid && !u.IsAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	// Notify before delete: the cascade wipes the registration rows the
	// fan-out reads.
	h.notifyRegistrants(ctx, ev, model.NotificationCancellation, "Event Cancelled",
		fmt.Sprintf("The event %q has been cancelled.", ev.Title))

	if err := h.Events.Delete(ctx, id); err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete event failed"})
	}
	h.removeImage(ev.ImagePath)

	return c.JSON(http.StatusOK, echo.Map{"message": "event deleted"})
}

// notifyRegistrants fans a notification out to every user holding an
// active registration. Best effort: failures are logged, never returned.
func (h *EventHandler) notifyRegistrants(ctx context.Context, ev model.Event, typ, title, message string) {
	ids, err := h.Registrations.ActiveUserIDs(ctx, ev.ID)
	if err != nil {
		log.Printf("event: notification fan-out skipped for event=%d: %v", ev.ID, err)
		return
	}
	for _, id := range ids {
		n := &model.Notification{
			EventID: ev.ID,
			UserID:  id,
			Title:   title,
			Message: message,
			Type:    typ,
		}
		if err := h.Notifications.Create(ctx, n); err != nil {
			log.Printf("event: notify user=%d event=%d failed: %v", id, ev.ID, err)
		}
	}
}

// saveImage stores an uploaded file under UploadDir with a random name,
// keeping only the original extension.
func (h *EventHandler) saveImage(file *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.Cfg.UploadDir, 0o755); err != nil {
		return "", err
	}
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := uuid.New().String() + strings.ToLower(filepath.Ext(file.Filename))
	path := filepath.Join(h.Cfg.UploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (h *EventHandler) removeImage(path *string) {
	if path == nil || *path == "" {
		return
	}
	if err := os.Remove(*path); err != nil && !os.IsNotExist(err) {
		log.Printf("event: remove image %s failed: %v", *path, err)
	}
}
