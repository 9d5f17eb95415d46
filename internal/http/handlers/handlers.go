package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/calendar"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/dispatch"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/http/middleware"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/services"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/utils"
)

//
// Service contracts
//

// ReminderService is the reminder registry as seen by the REST API.
type ReminderService interface {
	Create(ctx context.Context, identity, text string, dueAt int64) (domain.Reminder, error)
	ListPage(identity string, page, pageSize int) ([]domain.Reminder, int64)
	Search(identity, query string) []domain.Reminder
	Get(identity, id string) (domain.Reminder, error)
}

// UserService manages per-identity preferences.
type UserService interface {
	Touch(ctx context.Context, identity string) error
	MergePrefs(ctx context.Context, identity string, patch map[string]any) (map[string]any, error)
	Prefs(identity string) map[string]any
}

// ConversationService exposes stored conversation memory.
type ConversationService interface {
	History(ctx context.Context, identity string, page, pageSize int) ([]domain.Turn, int64, error)
	ConversationID(ctx context.Context, identity string) (string, error)
	Reset(ctx context.Context, identity string) (int64, error)
}

// Assistant answers inbound channel messages.
type Assistant interface {
	Handle(ctx context.Context, in services.Inbound) services.Reply
	VoiceReply(ctx context.Context, text string) (string, error)
}

// Speech converts between audio and text.
type Speech interface {
	Speak(ctx context.Context, text string) ([]byte, error)
	Transcribe(ctx context.Context, audio io.Reader, filename, lang string) (string, error)
}

// MediaFetcher downloads inbound channel media.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// CalendarClient creates calendar events.
type CalendarClient interface {
	CreateEvent(ctx context.Context, in calendar.EventInput) (*calendar.Event, error)
}

// TargetResolver finds the delivery target for an identity.
type TargetResolver interface {
	Resolve(identity string) (dispatch.Target, bool)
}

//
// Handler wiring
//

// Deps are the collaborators the handlers use. Speech, Media, Calendar,
// Targets and DB may be nil; the affected endpoints degrade instead of failing.
type Deps struct {
	Reminders     ReminderService
	Users         UserService
	Conversations ConversationService
	Assistant     Assistant
	Speech        Speech
	Media         MediaFetcher
	Calendar      CalendarClient
	Targets       TargetResolver

	// DB holds idempotency records and conversation stats.
	DB             *gorm.DB
	IdempotencyTTL time.Duration

	Location      *time.Location // for ISO "when" values without an offset
	TTSDir        string
	PublicBaseURL string
	Now           func() time.Time
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	d Deps
}

// New constructs and returns a Handlers instance bound to d.
func New(d Deps) *Handlers {
	if d.IdempotencyTTL <= 0 {
		d.IdempotencyTTL = 24 * time.Hour
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handlers{d: d}
}

// requireIdentity returns the request identity or aborts with 401.
func requireIdentity(c *gin.Context) (string, bool) {
	id := middleware.IdentityFrom(c)
	if id == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header required")
		return "", false
	}
	return id, true
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = utils.DefaultPageSize
		maxPageSize     = 100
	)
	page = utils.AtoiClamp(c.Query("page"), defaultPage, 1, 0)
	pageSize = utils.AtoiClamp(c.Query("page_size"), defaultPageSize, 1, maxPageSize)
	return
}
