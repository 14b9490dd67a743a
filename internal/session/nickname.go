package session

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxDisplayNameLen is the maximum display name length in runes.
const MaxDisplayNameLen = 20

const nicknameSep = "::"

// Qualify combines a display name with a per-connection user ID.
func Qualify(displayName, userID string) string {
	return userID + nicknameSep + displayName
}

// DisplayName strips the user ID from a qualified nickname. Input without a
// separator is returned unchanged.
func DisplayName(nickname string) string {
	if _, name, ok := strings.Cut(nickname, nicknameSep); ok && name != "" {
		return name
	}
	return nickname
}

// NormalizeDisplayName trims, NFC-normalizes and truncates a display name,
// dropping control characters.
func NormalizeDisplayName(s string) (string, error) {
	s = norm.NFC.String(strings.TrimSpace(s))

	var b strings.Builder
	n := 0
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if n == MaxDisplayNameLen {
			break
		}
		b.WriteRune(r)
		n++
	}

	name := strings.TrimSpace(b.String())
	if name == "" {
		return "", ErrEmptyDisplayName
	}
	return name, nil
}
