// Twilio channel webhooks.
//
// Twilio posts application/x-www-form-urlencoded bodies and expects TwiML
// back. Failures never surface as HTTP errors to Twilio: the caller always
// gets a reply, worst case the assistant's fallback text.
package handlers

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/dispatch"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/http/middleware"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/services"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/telephony"
)

const (
	channelWhatsApp = "whatsapp"

	// VoiceAction is where Twilio posts the next recorded turn of a call.
	VoiceAction = "/process_voice"
	// DefaultVoiceText replaces an empty call transcription.
	DefaultVoiceText = "No entendí bien."

	transcriptionLang = "es"
)

// WhatsAppWebhook godoc
// @ID          whatsappWebhook
// @Summary     Inbound WhatsApp message (Twilio)
// @Description Voice notes are downloaded and transcribed before routing. The reply is TwiML split into ≤1200-char messages.
// @Tags        Channels
// @Accept      x-www-form-urlencoded
// @Produce     xml
//
// @Param       From               formData  string  true  "Sender, e.g. whatsapp:+5491100000000"
// @Param       Body               formData  string  false "Message text"
// @Param       NumMedia           formData  int     false "Attached media count"
// @Param       MediaUrl0          formData  string  false "First media URL"
// @Param       MediaContentType0  formData  string  false "First media MIME type"
//
// @Success     200  {string} string "TwiML"
// @Failure     400  {object} handlers.ErrorResponse "Missing From"
// @Router      /webhook/whatsapp [post]
func (h *Handlers) WhatsAppWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	lg := middleware.LoggerFrom(c)

	from := strings.TrimSpace(c.PostForm("From"))
	if from == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "From required")
		return
	}
	middleware.SetIdentity(c, from)

	text := c.PostForm("Body")
	numMedia, _ := strconv.Atoi(c.DefaultPostForm("NumMedia", "0"))
	if numMedia > 0 && strings.HasPrefix(c.PostForm("MediaContentType0"), "audio") {
		if transcript := h.transcribeMedia(c, c.PostForm("MediaUrl0")); transcript != "" {
			text = strings.TrimSpace(text + " " + transcript)
		}
	}

	var target dispatch.Target
	if h.d.Targets != nil {
		if t, found := h.d.Targets.Resolve(from); found {
			target = t
		}
	}

	reply := h.d.Assistant.Handle(ctx, services.Inbound{
		Identity: from,
		Channel:  channelWhatsApp,
		Text:     text,
		Target:   target,
	})
	lg.Info().Str("intent", reply.Intent).Msg("whatsapp reply")

	xml, err := telephony.MessagesTwiML(telephony.SplitForWhatsApp(reply.Text, telephony.MaxWhatsAppChunk)...)
	if err != nil {
		lg.Error().Err(err).Msg("build twiml")
		xml, _ = telephony.MessagesTwiML(services.FallbackReply)
	}
	twiml(c, xml)
}

// transcribeMedia downloads and transcribes a voice note. Any failure is
// logged and yields "".
func (h *Handlers) transcribeMedia(c *gin.Context, url string) string {
	lg := middleware.LoggerFrom(c)
	if h.d.Media == nil || h.d.Speech == nil || url == "" {
		return ""
	}
	audio, err := h.d.Media.Fetch(c.Request.Context(), url)
	if err != nil {
		lg.Warn().Err(err).Msg("media download failed")
		return ""
	}
	text, err := h.d.Speech.Transcribe(c.Request.Context(), bytes.NewReader(audio), "audio.ogg", transcriptionLang)
	if err != nil {
		lg.Warn().Err(err).Msg("transcription failed")
		return ""
	}
	return text
}

// ProcessVoice godoc
// @ID          processVoice
// @Summary     One turn of a phone call (Twilio)
// @Description Answers the transcribed caller text with synthesized speech, then records the next turn.
// @Tags        Channels
// @Accept      x-www-form-urlencoded
// @Produce     xml
//
// @Param       TranscriptionText  formData  string  false "Caller speech as text"
//
// @Success     200  {string} string "TwiML"
// @Router      /process_voice [post]
func (h *Handlers) ProcessVoice(c *gin.Context) {
	ctx := c.Request.Context()
	lg := middleware.LoggerFrom(c)

	text := strings.TrimSpace(c.PostForm("TranscriptionText"))
	if text == "" {
		text = DefaultVoiceText
	}

	answer, err := h.d.Assistant.VoiceReply(ctx, text)
	if err != nil || answer == "" {
		lg.Warn().Err(err).Msg("voice reply failed")
		answer = services.FallbackReply
	}

	var xml string
	if name, err := h.synthesize(c, answer); err == nil {
		xml, err = telephony.VoiceTurnTwiML(h.publicBase(c)+"/tts/"+name, VoiceAction)
		if err != nil {
			lg.Error().Err(err).Msg("build twiml")
		}
	} else {
		lg.Warn().Err(err).Msg("speech synthesis failed")
	}
	if xml == "" {
		xml, err = telephony.VoiceSayTwiML(answer, VoiceAction)
		if err != nil {
			lg.Error().Err(err).Msg("build twiml")
		}
	}
	twiml(c, xml)
}

// synthesize writes answer as an mp3 under TTSDir and returns its file name.
func (h *Handlers) synthesize(c *gin.Context, answer string) (string, error) {
	if h.d.Speech == nil || h.d.TTSDir == "" {
		return "", errSpeechDisabled
	}
	audio, err := h.d.Speech.Speak(c.Request.Context(), answer)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(h.d.TTSDir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + ".mp3"
	if err := os.WriteFile(filepath.Join(h.d.TTSDir, name), audio, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

func (h *Handlers) publicBase(c *gin.Context) string {
	if h.d.PublicBaseURL != "" {
		return strings.TrimRight(h.d.PublicBaseURL, "/")
	}
	return middleware.RequestBaseURL(c.Request)
}
