// Reminder HTTP handlers.
//
// This file exposes REST endpoints for the caller's reminders:
//   - POST /reminders       (create; Idempotency-Key supported)
//   - GET  /reminders       (list, paginated, creation order)
//   - GET  /reminders/{id}  (fetch one)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// create exists for (identity, "reminders", key), the handler returns the
// recorded reminder and sets `Idempotency-Replayed: true`.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/http/middleware"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/repo"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/services"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/utils"
)

const reminderScope = "reminders"

//
// DTOs
//

// CreateReminderRequest is the JSON payload for creating a reminder.
type CreateReminderRequest struct {
	// Text is what the reminder says when it fires.
	Text string `json:"text" example:"llamar a mamá"`
	// When is epoch milliseconds (number or numeric string) or an ISO-8601 string.
	When json.RawMessage `json:"when" swaggertype:"string" example:"2025-10-20T18:30:00-03:00"`
}

// ListRemindersResponse wraps a page of reminders and pagination information.
type ListRemindersResponse struct {
	Reminders  []domain.Reminder `json:"reminders"`
	Pagination Pagination        `json:"pagination"`
}

//
// Handlers
//

// CreateReminder godoc
// @ID          createReminder
// @Summary     Create a reminder
// @Description Stores a reminder for the caller. A past `when` is accepted and fires on the next sweep.
// @Description Supports idempotency via the Idempotency-Key header (same key → same reminder).
// @Tags        Reminders
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  true  "Caller identity"  example(ana)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    handlers.CreateReminderRequest  true  "Reminder payload"
//
// @Success     201  {object}  domain.Reminder
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Router      /reminders [post]
func (h *Handlers) CreateReminder(c *gin.Context) {
	ctx := c.Request.Context()
	identity, okID := requireIdentity(c)
	if !okID {
		return
	}

	var req CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}
	dueAt, err := services.ParseWhen(req.When, h.d.Location)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidWhen, err.Error())
		return
	}

	// Idempotency (replay path).
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.d.DB != nil {
		if rec, err := repo.GetIdempotency(ctx, h.d.DB, identity, reminderScope, idemKey, h.d.Now().UTC()); err == nil && rec != nil {
			if prev, err := h.d.Reminders.Get(identity, rec.ResourceID); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, rec.Status, prev)
				return
			}
		}
	}

	r, err := h.d.Reminders.Create(ctx, identity, text, dueAt)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrPersist):
		// The reminder is live in memory and will be written on the next mutation.
		middleware.LoggerFrom(c).Warn().Err(err).Str("reminder_id", r.ID).Msg("reminder not persisted")
	case errors.Is(err, services.ErrEmptyText):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	default:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}

	// Idempotency (store path), best effort.
	if idemKey != "" && h.d.DB != nil {
		if _, err := repo.CreateIdempotency(ctx, h.d.DB, identity, reminderScope, idemKey, r.ID, http.StatusCreated, h.d.IdempotencyTTL); err != nil {
			middleware.LoggerFrom(c).Debug().Err(err).Msg("idempotency record not stored")
		}
	}

	ok(c, http.StatusCreated, r)
}

// ListReminders godoc
// @ID          listReminders
// @Summary     List reminders (paginated)
// @Description Returns a page of the caller's reminders, fired ones included, in creation order.
// @Description With `q`, only reminders whose text matches are returned, best match first.
// @Tags        Reminders
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Caller identity"  example(ana)
// @Param       page       query   int     false "Page number"      minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"   minimum(1) maximum(100) default(20)
// @Param       q          query   string  false "Free-text filter, accent and case insensitive"
//
// @Success     200  {object} handlers.ListRemindersResponse
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Router      /reminders [get]
func (h *Handlers) ListReminders(c *gin.Context) {
	identity, okID := requireIdentity(c)
	if !okID {
		return
	}
	page, pageSize := clampPagination(c)

	var (
		items []domain.Reminder
		total int64
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		hits := h.d.Reminders.Search(identity, q)
		total = int64(len(hits))
		start, end := utils.Bounds(len(hits), page, pageSize)
		items = hits[start:end]
	} else {
		items, total = h.d.Reminders.ListPage(identity, page, pageSize)
	}
	if items == nil {
		items = []domain.Reminder{}
	}
	ok(c, http.StatusOK, ListRemindersResponse{
		Reminders:  items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetReminder godoc
// @ID          getReminder
// @Summary     Get a reminder
// @Tags        Reminders
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Caller identity"  example(ana)
// @Param       id         path    string  true  "Reminder ID"
//
// @Success     200  {object} domain.Reminder
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     404  {object} handlers.ErrorResponse "Reminder not found"
// @Router      /reminders/{id} [get]
func (h *Handlers) GetReminder(c *gin.Context) {
	identity, okID := requireIdentity(c)
	if !okID {
		return
	}
	r, err := h.d.Reminders.Get(identity, c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "reminder not found")
		return
	}
	ok(c, http.StatusOK, r)
}
