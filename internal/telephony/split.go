package telephony

import (
	"strings"
	"unicode/utf8"
)

// MaxWhatsAppChunk is the default chunk size for outbound WhatsApp text.
const MaxWhatsAppChunk = 1200

// SplitForWhatsApp packs text into chunks of at most maxLen runes, breaking
// on line boundaries. A single line longer than maxLen is cut on rune
// boundaries. Empty input yields no chunks.
func SplitForWhatsApp(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = MaxWhatsAppChunk
	}
	var (
		parts []string
		chunk string
		size  int
	)
	for _, line := range strings.Split(text, "\n") {
		for utf8.RuneCountInString(line) > maxLen {
			if chunk != "" {
				parts = append(parts, chunk)
				chunk, size = "", 0
			}
			r := []rune(line)
			parts = append(parts, string(r[:maxLen]))
			line = string(r[maxLen:])
		}
		n := utf8.RuneCountInString(line)
		if chunk != "" && size+1+n > maxLen {
			parts = append(parts, chunk)
			chunk, size = line, n
			continue
		}
		if chunk == "" {
			chunk, size = line, n
		} else {
			chunk += "\n" + line
			size += 1 + n
		}
	}
	if strings.TrimSpace(chunk) != "" {
		parts = append(parts, chunk)
	}
	return parts
}
