package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/dispatch"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/repo"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/services"
)

// AnonPrefix tags identities of sessions that never declared one.
const AnonPrefix = "anon:"

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Responder answers free-form chat messages.
type Responder interface {
	Handle(ctx context.Context, in services.Inbound) services.Reply
}

// Handler upgrades HTTP requests to chat sessions.
type Handler struct {
	Directory *dispatch.Directory
	Reminders *services.ReminderService
	Users     *services.UserService
	Assistant Responder
	Location  *time.Location

	// AllowedOrigins limits browser origins; empty or "*" accepts any.
	AllowedOrigins []string

	// ReplyTimeout bounds one assistant answer. The read loop is blocked
	// meanwhile, so it must stay below pongWait. Defaults to pongWait/2.
	ReplyTimeout time.Duration

	upgrader websocket.Upgrader
}

// NewHandler returns a Handler with default buffer sizes.
func NewHandler(dir *dispatch.Directory, reminders *services.ReminderService, users *services.UserService, assistant Responder) *Handler {
	h := &Handler{
		Directory: dir,
		Reminders: reminders,
		Users:     users,
		Assistant: assistant,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range h.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "realtime").Msg("upgrade failed")
		return
	}
	s := newSession(uuid.NewString(), conn)
	h.run(s)
}

func (h *Handler) run(s *Session) {
	lg := log.With().Str("component", "realtime").Str("session", s.ID).Logger()
	activeSessions.Inc()
	defer activeSessions.Dec()

	h.bind(s, AnonPrefix+s.ID)
	lg.Info().Msg("session connected")

	done := make(chan struct{})
	defer func() {
		close(done)
		s.close()
		h.Directory.Unregister(s.Identity(), s)
		lg.Info().Str("identity", s.Identity()).Msg("session disconnected")
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := s.ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				lg.Debug().Err(err).Msg("read failed")
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			h.fail(s, "mensaje inválido")
			continue
		}
		framesReceived.WithLabelValues(knownEvent(env.Event)).Inc()
		h.dispatch(s, env, lg)
		// Pongs are only processed inside ReadMessage.
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func knownEvent(e string) string {
	switch e {
	case domain.EventWhoAmI, domain.EventReminderCreate, domain.EventReminderList, domain.EventSendMessage:
		return e
	}
	return "unknown"
}

func (h *Handler) dispatch(s *Session, env Envelope, lg zerolog.Logger) {
	ctx := lg.WithContext(context.Background())
	switch env.Event {
	case domain.EventWhoAmI:
		h.onWhoAmI(ctx, s, env.Data)
	case domain.EventReminderCreate:
		h.onReminderCreate(ctx, s, env.Data)
	case domain.EventReminderList:
		_ = s.emit(domain.EventReminderList, h.Reminders.ListFor(s.Identity()))
	case domain.EventSendMessage:
		h.onSendMessage(ctx, s, env.Data)
	default:
		h.fail(s, "evento desconocido: "+env.Event)
	}
}

func (h *Handler) bind(s *Session, identity string) {
	if prev := s.bind(identity); prev != "" && prev != identity {
		h.Directory.Unregister(prev, s)
	}
	h.Directory.Register(identity, s)
}

type whoAmIData struct {
	Identity string `json:"identity"`
}

// parseIdentity accepts {"identity": "..."} or a bare JSON string.
func parseIdentity(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		_ = json.Unmarshal(raw, &s)
		return strings.TrimSpace(s)
	}
	var d whoAmIData
	_ = json.Unmarshal(raw, &d)
	return strings.TrimSpace(d.Identity)
}

func (h *Handler) onWhoAmI(ctx context.Context, s *Session, raw json.RawMessage) {
	identity := parseIdentity(raw)
	if identity == "" {
		identity = AnonPrefix + s.ID
	}
	h.bind(s, identity)
	if h.Users != nil {
		if err := h.Users.Touch(ctx, identity); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("touch user")
		}
	}
	_ = s.emit(domain.EventWhoAmI, whoAmIData{Identity: identity})
}

type reminderCreateData struct {
	Text string          `json:"text"`
	When json.RawMessage `json:"when"`
}

func (h *Handler) onReminderCreate(ctx context.Context, s *Session, raw json.RawMessage) {
	var in reminderCreateData
	if err := json.Unmarshal(raw, &in); err != nil {
		h.fail(s, "datos de recordatorio inválidos")
		return
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		h.fail(s, services.ErrEmptyText.Error())
		return
	}
	dueAt, err := services.ParseWhen(in.When, h.Location)
	if err != nil {
		h.fail(s, err.Error())
		return
	}
	r, err := h.Reminders.Create(ctx, s.Identity(), text, dueAt)
	if err != nil {
		if !errors.Is(err, repo.ErrPersist) {
			h.fail(s, err.Error())
			return
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("reminder", r.ID).Msg("reminder kept in memory only")
	}
	_ = s.emit(domain.EventReminderCreated, r)
}

type sendMessageData struct {
	Message string `json:"message"`
}

type messageResponseData struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (h *Handler) onSendMessage(ctx context.Context, s *Session, raw json.RawMessage) {
	var in sendMessageData
	if err := json.Unmarshal(raw, &in); err != nil || strings.TrimSpace(in.Message) == "" {
		h.fail(s, "mensaje vacío")
		return
	}
	if h.Assistant == nil {
		h.fail(s, services.FallbackReply)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.replyTimeout())
	defer cancel()
	reply := h.Assistant.Handle(ctx, services.Inbound{
		Identity: s.Identity(),
		Channel:  "web",
		Text:     in.Message,
		Target:   s,
	})
	_ = s.emit(domain.EventMessageResponse, messageResponseData{
		Message:   reply.Text,
		Timestamp: time.Now().UTC().Format(timestampLayout),
	})
}

func (h *Handler) replyTimeout() time.Duration {
	if h.ReplyTimeout > 0 && h.ReplyTimeout < pongWait {
		return h.ReplyTimeout
	}
	return pongWait / 2
}

type errorData struct {
	Message string `json:"message"`
}

func (h *Handler) fail(s *Session, msg string) {
	_ = s.emit(domain.EventError, errorData{Message: msg})
}
