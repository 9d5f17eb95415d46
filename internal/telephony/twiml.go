package telephony

import (
	"strconv"

	"github.com/twilio/twilio-go/twiml"
)

// VoiceRecordMaxLength is how many seconds a caller may speak per turn.
const VoiceRecordMaxLength = 10

// MessagesTwiML renders one <Message> per body.
func MessagesTwiML(bodies ...string) (string, error) {
	verbs := make([]twiml.Element, 0, len(bodies))
	for _, b := range bodies {
		verbs = append(verbs, &twiml.MessagingMessage{Body: b})
	}
	return twiml.Messages(verbs)
}

// VoiceTurnTwiML plays the synthesized reply and records the caller's next
// utterance, posting the transcription back to action.
func VoiceTurnTwiML(playURL, action string) (string, error) {
	verbs := []twiml.Element{}
	if playURL != "" {
		verbs = append(verbs, &twiml.VoicePlay{Url: playURL})
	}
	verbs = append(verbs, &twiml.VoiceRecord{
		Action:     action,
		MaxLength:  strconv.Itoa(VoiceRecordMaxLength),
		PlayBeep:   "true",
		Transcribe: "true",
	})
	return twiml.Voice(verbs)
}

// VoiceSayTwiML speaks text with Twilio's own voice, used when speech
// synthesis is unavailable.
func VoiceSayTwiML(text, action string) (string, error) {
	return twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: text, Language: "es-MX"},
		&twiml.VoiceRecord{
			Action:     action,
			MaxLength:  strconv.Itoa(VoiceRecordMaxLength),
			PlayBeep:   "true",
			Transcribe: "true",
		},
	})
}
