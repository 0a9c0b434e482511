package util

import (
	"strings"
	"unicode/utf8"
)

// TitleMaxRunes is how much of the first message becomes a conversation title
const TitleMaxRunes = 30

// DeriveTitle returns the first TitleMaxRunes characters of the message.
// Cuts on a rune boundary so multi-byte text is never split.
func DeriveTitle(message string) string {
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) <= TitleMaxRunes {
		return message
	}
	runes := []rune(message)
	return string(runes[:TitleMaxRunes])
}
