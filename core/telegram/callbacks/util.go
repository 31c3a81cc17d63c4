// Package callbacks reads inline button payloads. Keyboard buttons carry
// "<namespace><key>" data, for example "quiz_topic_History".
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Data returns the payload of cb. Telebot's "\f" marker is stripped; buttons
// registered with a Unique id come back as "unique|data".
func Data(cb *tele.Callback) string {
	switch {
	case cb == nil:
		return ""
	case cb.Unique != "" && cb.Data != "":
		return cb.Unique + "|" + cb.Data
	case cb.Unique != "":
		return cb.Unique
	}
	return strings.TrimSpace(strings.TrimPrefix(cb.Data, "\f"))
}

// HasPrefix reports whether data falls under namespace. A namespace ending in
// "_" is open and needs a non-empty key after it. Any other namespace is a
// bare sentinel and must match data exactly.
func HasPrefix(data, namespace string) bool {
	open := strings.HasSuffix(namespace, "_")
	switch {
	case namespace == "":
		return false
	case open:
		return len(data) > len(namespace) && data[:len(namespace)] == namespace
	}
	return data == namespace
}

// Key returns what follows namespace in data.
func Key(data, namespace string) (string, bool) {
	if HasPrefix(data, namespace) {
		return data[len(namespace):], true
	}
	return "", false
}
