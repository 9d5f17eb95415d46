package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/calendar"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/http/middleware"
)

var errSpeechDisabled = errors.New("speech synthesis not configured")

// CalendarTestResponse reports the created smoke-test event.
type CalendarTestResponse struct {
	OK bool `json:"ok"`
	// Event is the event's web link, or its id when no link was returned.
	Event string `json:"event" example:"https://www.google.com/calendar/event?eid=abc"`
}

// CalendarTest godoc
// @ID          calendarTest
// @Summary     Create a test calendar event
// @Description Inserts "Test MACLA-IA" starting 15 minutes from now and lasting one hour.
// @Tags        Dev
// @Produce     json
//
// @Success     200  {object} handlers.CalendarTestResponse
// @Failure     500  {object} handlers.ErrorResponse "Calendar error"
// @Failure     503  {object} handlers.ErrorResponse "Calendar not configured"
// @Router      /dev/calendar/test [get]
func (h *Handlers) CalendarTest(c *gin.Context) {
	if h.d.Calendar == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeCalendarDisabled, "calendar not configured")
		return
	}
	start := h.d.Now().Add(15 * time.Minute).UTC()
	ev, err := h.d.Calendar.CreateEvent(c.Request.Context(), calendar.EventInput{
		Summary:     "Test MACLA-IA",
		Description: "Evento de prueba",
		StartISO:    start.Format(time.RFC3339),
		EndISO:      start.Add(time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCalendarFailed, err.Error())
		return
	}
	link := ev.HTMLLink
	if link == "" {
		link = ev.ID
	}
	middleware.LoggerFrom(c).Info().Str("event_id", ev.ID).Msg("calendar test event created")
	ok(c, http.StatusOK, CalendarTestResponse{OK: true, Event: link})
}
