// Package llm wraps the OpenAI API for the assistant: chat completions,
// JSON-mode intent classification, speech synthesis and transcription.
// Calls are single attempts; callers decide the fallback.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/config"
)

// Roles used in Message.Role.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// ErrEmptyCompletion is returned when the API answers without any choice.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// ErrDisabled is returned by every call when no API key is configured.
var ErrDisabled = errors.New("llm: OPENAI_API_KEY not configured")

// Message is one chat turn sent to the model.
type Message struct {
	Role    string
	Content string
}

// ChatOptions tunes a single completion.
type ChatOptions struct {
	MaxTokens   int
	Temperature float32
}

// Client talks to the OpenAI API.
type Client struct {
	api      *openai.Client
	model    string
	ttsModel string
	ttsVoice string
}

// New builds a Client from config. A missing API key yields a client whose
// calls fail with ErrDisabled.
func New(cfg config.OpenAIConfig) *Client {
	c := &Client{
		model:    cfg.Model,
		ttsModel: cfg.TTSModel,
		ttsVoice: cfg.TTSVoice,
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return c
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	c.api = openai.NewClientWithConfig(oc)
	return c
}

// Enabled reports whether calls will reach the API.
func (c *Client) Enabled() bool { return c != nil && c.api != nil }

// Chat returns the assistant text for msgs.
func (c *Client) Chat(ctx context.Context, msgs []Message, opts ChatOptions) (string, error) {
	return c.complete(ctx, msgs, opts, nil)
}

func (c *Client) complete(ctx context.Context, msgs []Message, opts ChatOptions, format *openai.ChatCompletionResponseFormat) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	req := openai.ChatCompletionRequest{
		Model:          c.model,
		Messages:       make([]openai.ChatCompletionMessage, 0, len(msgs)),
		MaxTokens:      opts.MaxTokens,
		Temperature:    opts.Temperature,
		ResponseFormat: format,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Speak synthesizes text to MP3 bytes.
func (c *Client) Speak(ctx context.Context, text string) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.ttsModel),
		Input:          text,
		Voice:          openai.SpeechVoice(c.ttsVoice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: speech: %w", err)
	}
	defer resp.Close()
	return io.ReadAll(resp)
}

// Transcribe converts audio to text. filename only hints the audio format
// to the API (e.g. "audio.ogg").
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename, lang string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   audio,
		FilePath: filename,
		Language: lang,
	})
	if err != nil {
		return "", fmt.Errorf("llm: transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
