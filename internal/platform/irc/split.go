package irc

import (
	"strings"
	"unicode/utf8"
)

// splitMessage breaks text into PRIVMSG-sized chunks. Each newline starts a
// new chunk; lines longer than maxLen bytes are split at the last space
// before the limit, or at a rune boundary when there is none. Blank lines
// are dropped.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r ")
		for len(line) > maxLen {
			cut := strings.LastIndexByte(line[:maxLen], ' ')
			if cut <= 0 {
				cut = maxLen
				for cut > 0 && !utf8.RuneStart(line[cut]) {
					cut--
				}
			}
			chunks = append(chunks, strings.TrimRight(line[:cut], " "))
			line = strings.TrimLeft(line[cut:], " ")
		}
		if line != "" {
			chunks = append(chunks, line)
		}
	}
	if len(chunks) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return chunks
}
