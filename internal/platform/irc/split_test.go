package irc

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplitMessage_Short(t *testing.T) {
	assert.Equal(t, []string{"hello"}, splitMessage("hello", 400))
}

func TestSplitMessage_MultiLine(t *testing.T) {
	assert.Equal(t, []string{"one", "two", "three"}, splitMessage("one\n\ntwo\r\nthree", 400))
}

func TestSplitMessage_WordBoundary(t *testing.T) {
	got := splitMessage("aaaa bbbb cccc", 10)
	assert.Equal(t, []string{"aaaa bbbb", "cccc"}, got)
}

func TestSplitMessage_LongWord(t *testing.T) {
	got := splitMessage(strings.Repeat("a", 25), 10)
	assert.Equal(t, []string{"aaaaaaaaaa", "aaaaaaaaaa", "aaaaa"}, got)
}

func TestSplitMessage_RuneBoundary(t *testing.T) {
	text := strings.Repeat("é", 300)
	for _, chunk := range splitMessage(text, 401) {
		assert.LessOrEqual(t, len(chunk), 401)
		assert.True(t, utf8.ValidString(chunk))
	}
}
