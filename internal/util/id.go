package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random UUID, optionally prefixed ("sess" -> "sess_<uuid>").
func NewID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// Slug reduces a display name to [A-Za-z0-9_-]. Spaces become underscores,
// matching the attachment directory convention of the launch files.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '_':
			b.WriteRune('_')
		case r == '-':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}

// EscapeSegment maps s onto [A-Za-z0-9_-] without collisions: letters,
// digits and '-' are kept, every other byte becomes '_' and two lowercase
// hex digits ("a.b" -> "a_2eb"). The result never contains "__".
func EscapeSegment(s string) string {
	const hex = "0123456789abcdef"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}
