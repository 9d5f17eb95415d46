// Conversation HTTP handlers.
//
// The assistant remembers a window of recent turns per identity. These
// endpoints let the caller read that memory page by page and wipe it:
//   - GET    /conversation/turns  (paginated, weak ETag support)
//   - DELETE /conversation        (forget every turn)
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/repo"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/services"
)

// ListTurnsResponse contains a page of conversation turns and pagination metadata.
type ListTurnsResponse struct {
	Turns      []domain.Turn `json:"turns"`
	Pagination Pagination    `json:"pagination"`
}

// ResetConversationResponse reports how many turns were forgotten.
type ResetConversationResponse struct {
	Deleted int64 `json:"deleted" example:"12"`
}

// ListTurns godoc
// @ID          listTurns
// @Summary     List conversation turns (paginated)
// @Description Returns the caller's stored turns, oldest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conversation
// @Produce     json
//
// @Param       X-User-ID      header  string  true  "Caller identity"             example(ana)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListTurnsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     404  {object} handlers.ErrorResponse "No conversation yet"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversation/turns [get]
func (h *Handlers) ListTurns(c *gin.Context) {
	ctx := c.Request.Context()
	identity, okID := requireIdentity(c)
	if !okID {
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.d.DB != nil {
		if convID, err := h.d.Conversations.ConversationID(ctx, identity); err == nil {
			if count, lastAt, err := repo.TurnsStats(ctx, h.d.DB, convID); err == nil {
				var ts int64
				if lastAt != nil {
					ts = lastAt.UnixMilli()
				}
				etag := fmt.Sprintf(`W/"turns:%s:%d:%d:%d:%d"`, convID, count, ts, page, pageSize)
				c.Header("ETag", etag)
				if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
					c.Status(http.StatusNotModified)
					return
				}
			}
		}
	}

	turns, total, err := h.d.Conversations.History(ctx, identity, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	ok(c, http.StatusOK, ListTurnsResponse{
		Turns:      turns,
		Pagination: newPagination(page, pageSize, total),
	})
}

// ResetConversation godoc
// @ID          resetConversation
// @Summary     Forget the conversation
// @Tags        Conversation
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Caller identity"  example(ana)
//
// @Success     200  {object} handlers.ResetConversationResponse
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     404  {object} handlers.ErrorResponse "No conversation yet"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversation [delete]
func (h *Handlers) ResetConversation(c *gin.Context) {
	identity, okID := requireIdentity(c)
	if !okID {
		return
	}
	n, err := h.d.Conversations.Reset(c.Request.Context(), identity)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ResetConversationResponse{Deleted: n})
}
