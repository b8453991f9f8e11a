// Package sse decodes the Server-Sent Events wire format from an
// io.Reader, handing each frame to a caller as a Message. Only the
// consumption side is implemented here: this module only ever reads SSE
// streams from upstream chat-completion providers, never produces them.
package sse

import (
	"strings"
	"unicode"
)

// Message is one decoded SSE frame.
type Message struct {
	ID    string
	Event string
	Data  []byte
	Retry int
}

const (
	fieldID    = "id"
	fieldEvent = "event"
	fieldData  = "data"
	fieldRetry = "retry"

	delimiter  = ":"
	whitespace = " "

	invalidUTF8Replacement = "�"
	utf8BomSequence        = "\xEF\xBB\xBF"

	// eventNameMessage is the default event type when a frame carries no
	// explicit event field.
	eventNameMessage = "message"
)

// isValidSSEEventName accepts the empty string (default "message" type)
// and otherwise requires DOM event naming rules.
func isValidSSEEventName(name string) bool {
	if name == "" {
		return true
	}
	return isValidDOMEventName(name)
}

// isValidDOMEventName: starts with a letter, no whitespace, no leading,
// trailing, or doubled '.', and only letters/digits/'_'/'-'/'.'.
func isValidDOMEventName(name string) bool {
	if name == "" {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}

	runes := []rune(name)
	if !unicode.IsLetter(runes[0]) {
		return false
	}
	for _, r := range runes {
		switch {
		case unicode.IsSpace(r):
			return false
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-', r == '.':
			continue
		default:
			return false
		}
	}
	return true
}
