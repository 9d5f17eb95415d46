package llm

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Intent names returned by Classify.
const (
	IntentCalendarEvent = "calendar_event"
	IntentLocalReminder = "local_reminder"
	IntentNone          = "none"
)

const classifyPrompt = `Sos un parser. Tu única salida debe ser JSON válido sin explicación.
{
  "intent": "calendar_event" | "local_reminder" | "none",
  "summary": "string",
  "description": "string",
  "startISO": "YYYY-MM-DDTHH:mm:ssZ | ''",
  "endISO": "YYYY-MM-DDTHH:mm:ssZ | ''",
  "attendees": ["correo@ej.com", "..."]
}`

// Intent is the structured reading of one user message.
type Intent struct {
	Intent      string   `json:"intent"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	StartISO    string   `json:"startISO"`
	EndISO      string   `json:"endISO"`
	Attendees   []string `json:"attendees"`
}

// Classify asks the model for the intent of text in JSON mode. An
// unparsable answer is reported as IntentNone without error.
func (c *Client) Classify(ctx context.Context, text string) (Intent, error) {
	raw, err := c.complete(ctx,
		[]Message{
			{Role: RoleSystem, Content: classifyPrompt},
			{Role: RoleUser, Content: text},
		},
		// A zero temperature is dropped by omitempty on the wire.
		ChatOptions{MaxTokens: 300, Temperature: math.SmallestNonzeroFloat32},
		&openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	)
	if err != nil {
		return Intent{Intent: IntentNone}, err
	}
	return ParseIntent(raw), nil
}

// ParseIntent decodes a model answer, tolerating markdown code fences.
func ParseIntent(raw string) Intent {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	in := Intent{Intent: IntentNone}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &in); err != nil {
		return Intent{Intent: IntentNone}
	}
	switch in.Intent {
	case IntentCalendarEvent, IntentLocalReminder:
	default:
		in.Intent = IntentNone
	}
	in.StartISO = strings.TrimSpace(in.StartISO)
	in.EndISO = strings.TrimSpace(in.EndISO)
	return in
}
