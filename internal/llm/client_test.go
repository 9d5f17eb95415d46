package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.OpenAIConfig{
		APIKey:   "sk-test",
		BaseURL:  srv.URL + "/v1",
		Model:    "gpt-4o-mini",
		TTSModel: "gpt-4o-mini-tts",
		TTSVoice: "alloy",
	})
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "cmpl-1",
		"object":  "chat.completion",
		"model":   "gpt-4o-mini",
		"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
	})
	return string(b)
}

func TestClient_Disabled(t *testing.T) {
	c := New(config.OpenAIConfig{})
	if c.Enabled() {
		t.Fatalf("client without key must be disabled")
	}
	if _, err := c.Chat(context.Background(), nil, ChatOptions{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("want ErrDisabled, got %v", err)
	}
	if in, err := c.Classify(context.Background(), "hola"); !errors.Is(err, ErrDisabled) || in.Intent != IntentNone {
		t.Fatalf("Classify disabled = (%+v, %v)", in, err)
	}
}

func TestClient_Chat_SendsMessagesAndTrimsReply(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("  ¡Hola, che!  "))
	})

	reply, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hola"},
	}, ChatOptions{MaxTokens: 80})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "¡Hola, che!" {
		t.Fatalf("reply = %q", reply)
	}
	if got.Model != "gpt-4o-mini" || got.MaxTokens != 80 || len(got.Messages) != 2 || got.Messages[1].Content != "hola" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestClient_Chat_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	})
	if _, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, ChatOptions{}); err == nil {
		t.Fatalf("expected error on 500")
	}
}

func TestClient_Classify_JSONMode(t *testing.T) {
	var format struct {
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&format)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody(`{"intent":"local_reminder","summary":"comprar pan","startISO":" 2030-01-02T10:00:00Z "}`))
	})
	in, err := c.Classify(context.Background(), "recordame comprar pan")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if format.ResponseFormat.Type != "json_object" {
		t.Fatalf("response_format = %q", format.ResponseFormat.Type)
	}
	if in.Intent != IntentLocalReminder || in.Summary != "comprar pan" || in.StartISO != "2030-01-02T10:00:00Z" {
		t.Fatalf("intent = %+v", in)
	}
}

func TestParseIntent(t *testing.T) {
	cases := []struct{ raw, want string }{
		{"not json", IntentNone},
		{`{"intent":"weather"}`, IntentNone},
		{"```json\n{\"intent\":\"calendar_event\"}\n```", IntentCalendarEvent},
		{`{"intent":"local_reminder"}`, IntentLocalReminder},
	}
	for _, tc := range cases {
		if got := ParseIntent(tc.raw).Intent; got != tc.want {
			t.Fatalf("ParseIntent(%q) = %q; want %q", tc.raw, got, tc.want)
		}
	}
}

func TestClient_SpeakAndTranscribe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/audio/speech":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["voice"] != "alloy" || body["model"] != "gpt-4o-mini-tts" {
				t.Errorf("unexpected speech body: %v", body)
			}
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3-mp3"))
		case "/v1/audio/transcriptions":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("multipart: %v", err)
			}
			if r.FormValue("language") != "es" || r.FormValue("model") != "whisper-1" {
				t.Errorf("unexpected form: %v", r.MultipartForm.Value)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"text":" recordame llamar a mamá "}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	audio, err := c.Speak(context.Background(), "hola")
	if err != nil || string(audio) != "ID3-mp3" {
		t.Fatalf("Speak = (%q, %v)", audio, err)
	}
	text, err := c.Transcribe(context.Background(), strings.NewReader("OggS"), "audio.ogg", "es")
	if err != nil || text != "recordame llamar a mamá" {
		t.Fatalf("Transcribe = (%q, %v)", text, err)
	}
}
