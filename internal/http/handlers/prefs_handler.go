package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/http/middleware"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/repo"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/services"
)

// PrefsResponse is the caller's preference map.
type PrefsResponse struct {
	Identity string         `json:"identity" example:"ana"`
	Prefs    map[string]any `json:"prefs"`
}

// GetPrefs godoc
// @ID          getPrefs
// @Summary     Get the caller's preferences
// @Tags        Users
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Caller identity"  example(ana)
//
// @Success     200  {object} handlers.PrefsResponse
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Router      /users/me/prefs [get]
func (h *Handlers) GetPrefs(c *gin.Context) {
	identity, okID := requireIdentity(c)
	if !okID {
		return
	}
	if err := h.d.Users.Touch(c.Request.Context(), identity); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("touch user")
	}
	ok(c, http.StatusOK, PrefsResponse{Identity: identity, Prefs: h.d.Users.Prefs(identity)})
}

// PatchPrefs godoc
// @ID          patchPrefs
// @Summary     Merge into the caller's preferences
// @Description Shallow merge: top-level keys in the body overwrite, all others are kept.
// @Tags        Users
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string          true  "Caller identity"  example(ana)
// @Param       body       body    map[string]any  true  "Preference patch"
//
// @Success     200  {object} handlers.PrefsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Router      /users/me/prefs [patch]
func (h *Handlers) PatchPrefs(c *gin.Context) {
	identity, okID := requireIdentity(c)
	if !okID {
		return
	}
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body must be a JSON object")
		return
	}

	prefs, err := h.d.Users.MergePrefs(c.Request.Context(), identity, patch)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrPersist):
		middleware.LoggerFrom(c).Warn().Err(err).Msg("prefs not persisted")
	case errors.Is(err, services.ErrInvalidPrefs), errors.Is(err, services.ErrEmptyIdentity):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	default:
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, PrefsResponse{Identity: identity, Prefs: prefs})
}
