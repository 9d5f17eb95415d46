package handlers

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/calendar"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/dispatch"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/services"
)

func TestWhatsAppWebhook_SplitsReplyIntoMessages(t *testing.T) {
	dir := dispatch.NewDirectory(func(identity string) (dispatch.Target, bool) {
		return nopTarget{}, strings.HasPrefix(identity, "whatsapp:")
	})
	f := newFixture(t, func(d *Deps) { d.Targets = dir })
	long := strings.Repeat("a", 1000)
	f.assistant.reply = services.Reply{Text: long + "\n" + long, Intent: "none"}

	w := f.form("/webhook/whatsapp", url.Values{"From": {"whatsapp:+5491100000000"}, "Body": {"hola"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("content-type=%q", ct)
	}
	if n := strings.Count(w.Body.String(), "<Message>"); n != 2 {
		t.Fatalf("expected 2 messages, got %d: %s", n, w.Body.String())
	}

	in := f.assistant.inbound[0]
	if in.Identity != "whatsapp:+5491100000000" || in.Channel != "whatsapp" || in.Text != "hola" {
		t.Fatalf("unexpected inbound: %+v", in)
	}
	if in.Target == nil {
		t.Fatalf("whatsapp sender should resolve to a target")
	}
}

func TestWhatsAppWebhook_MissingFrom(t *testing.T) {
	f := newFixture(t, nil)
	if w := f.form("/webhook/whatsapp", url.Values{"Body": {"hola"}}); w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if len(f.assistant.inbound) != 0 {
		t.Fatalf("assistant must not be called")
	}
}

func TestWhatsAppWebhook_VoiceNote(t *testing.T) {
	media := &stubMedia{data: []byte("OggS")}
	speech := &stubSpeech{transcript: "recordame pagar la luz"}
	f := newFixture(t, func(d *Deps) {
		d.Media = media
		d.Speech = speech
	})

	vals := url.Values{
		"From":              {"whatsapp:+1"},
		"Body":              {""},
		"NumMedia":          {"1"},
		"MediaUrl0":         {"https://api.twilio.com/media/ME1"},
		"MediaContentType0": {"audio/ogg"},
	}
	if w := f.form("/webhook/whatsapp", vals); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if media.url != "https://api.twilio.com/media/ME1" || string(speech.heard) != "OggS" {
		t.Fatalf("media not transcribed: url=%q heard=%q", media.url, speech.heard)
	}
	if got := f.assistant.inbound[0].Text; got != "recordame pagar la luz" {
		t.Fatalf("text=%q", got)
	}

	// download failure keeps the typed text
	media.err = errBoom
	vals.Set("Body", "hola")
	f.form("/webhook/whatsapp", vals)
	if got := f.assistant.inbound[1].Text; got != "hola" {
		t.Fatalf("text after failed download=%q", got)
	}

	// images are not transcribed
	media.err, media.url = nil, ""
	vals.Set("MediaContentType0", "image/jpeg")
	f.form("/webhook/whatsapp", vals)
	if media.url != "" {
		t.Fatalf("image must not be downloaded")
	}
}

func TestProcessVoice_PlaysSynthesizedReply(t *testing.T) {
	ttsDir := filepath.Join(t.TempDir(), "tts")
	speech := &stubSpeech{audio: []byte("ID3")}
	f := newFixture(t, func(d *Deps) {
		d.Speech = speech
		d.TTSDir = ttsDir
		d.PublicBaseURL = "https://bot.example.com/"
	})
	f.assistant.voice = "Claro, te escucho."

	w := f.form("/process_voice", url.Values{})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<Play>https://bot.example.com/tts/") || !strings.Contains(body, `action="/process_voice"`) {
		t.Fatalf("unexpected twiml: %s", body)
	}
	if got := f.assistant.voiceIn[0]; got != DefaultVoiceText {
		t.Fatalf("empty transcription should default, got %q", got)
	}

	entries, err := os.ReadDir(ttsDir)
	if err != nil || len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".mp3") {
		t.Fatalf("expected one mp3 in tts dir: %v %v", entries, err)
	}
	if !strings.Contains(body, entries[0].Name()) {
		t.Fatalf("Play url should reference %s", entries[0].Name())
	}
}

func TestProcessVoice_FallsBackToSay(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Speech = &stubSpeech{speakErr: errBoom}
		d.TTSDir = t.TempDir()
	})
	f.assistant.voice = "Hola"

	w := f.form("/process_voice", url.Values{"TranscriptionText": {"hola"}})
	body := w.Body.String()
	if !strings.Contains(body, "Hola</Say>") || strings.Contains(body, "<Play") {
		t.Fatalf("expected Say fallback: %s", body)
	}

	f.assistant.voiceErr = errBoom
	body = f.form("/process_voice", url.Values{"TranscriptionText": {"hola"}}).Body.String()
	if !strings.Contains(body, services.FallbackReply) {
		t.Fatalf("model failure should speak the fallback: %s", body)
	}
}

func TestCalendarTest(t *testing.T) {
	if w := newFixture(t, nil).do(http.MethodGet, "/dev/calendar/test", "", nil, nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured: status=%d", w.Code)
	}

	cal := &stubCalendar{ev: &calendar.Event{ID: "ev1", HTMLLink: "https://calendar.example/ev1"}}
	f := newFixture(t, func(d *Deps) { d.Calendar = cal })
	w := f.do(http.MethodGet, "/dev/calendar/test", "", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got := decode[CalendarTestResponse](t, w); !got.OK || got.Event != "https://calendar.example/ev1" {
		t.Fatalf("unexpected body: %+v", got)
	}
	if cal.in.Summary != "Test MACLA-IA" || cal.in.Description != "Evento de prueba" {
		t.Fatalf("unexpected input: %+v", cal.in)
	}
	start, _ := time.Parse(time.RFC3339, cal.in.StartISO)
	end, _ := time.Parse(time.RFC3339, cal.in.EndISO)
	if !start.Equal(fixedNow.Add(15*time.Minute)) || end.Sub(start) != time.Hour {
		t.Fatalf("start=%s end=%s", cal.in.StartISO, cal.in.EndISO)
	}

	cal.ev, cal.err = nil, errBoom
	if w := f.do(http.MethodGet, "/dev/calendar/test", "", nil, nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("calendar error: status=%d", w.Code)
	}
}
