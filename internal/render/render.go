package render

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"github.com/vaitul/partychat/internal/session"
)

// TimeFormat is the timestamp layout of a rendered message.
const TimeFormat = "15:04:05"

var strict = bluemonday.StrictPolicy()

// Sanitize strips markup and control characters from text.
func Sanitize(text string) string {
	clean := html.UnescapeString(strict.Sanitize(text))
	clean = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, clean)
	return strings.TrimSpace(clean)
}

// Renderer formats messages and status transitions.
type Renderer struct {
	loc *time.Location

	seen    map[string]struct{}
	started bool
	status  session.Status
	roomID  string
	typing  bool
	reload  bool
}

// New creates a Renderer printing timestamps in loc. Nil means time.Local.
func New(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{loc: loc, seen: make(map[string]struct{})}
}

// Message formats one message.
func (r *Renderer) Message(m session.Message) string {
	body := Sanitize(m.Body)
	if m.IsSystem {
		return "*** " + body + " ***"
	}

	name := Sanitize(m.DisplayName)
	if name == "" {
		name = "anon"
	}
	ts := m.Timestamp.In(r.loc).Format(TimeFormat)
	if icon := Sanitize(m.Icon); icon != "" {
		return fmt.Sprintf("[%s] %s %s: %s", ts, icon, name, body)
	}
	return fmt.Sprintf("[%s] %s: %s", ts, name, body)
}

// Status formats the connection part of a snapshot.
func Status(st session.State) string {
	var b strings.Builder
	b.WriteString(st.Status.String())
	if st.InRoom() {
		fmt.Fprintf(&b, " room=%s as %s", st.RoomID, session.DisplayName(st.Nickname))
	}
	switch {
	case st.ReloadRequired:
		b.WriteString(", retries exhausted: reload required, restart partychat to rejoin")
	case st.RetryDelay > 0:
		fmt.Fprintf(&b, ", retry %d in %s", st.RetryAttempts, st.RetryDelay)
	}
	return b.String()
}

// Update returns the lines to print for st: status transitions, typing
// transitions and messages not printed before. A message list replaced by a
// rejoin does not reprint messages already shown.
func (r *Renderer) Update(st session.State) []string {
	var lines []string

	if !r.started || st.Status != r.status || st.RoomID != r.roomID || st.ReloadRequired != r.reload {
		lines = append(lines, "-- "+Status(st))
	}
	// seen holds only the keys of the latest list, so it stays as large as
	// the snapshot and empties when the room is left.
	seen := make(map[string]struct{}, len(st.Messages))
	for _, m := range st.Messages {
		k := dedupKey(m)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := r.seen[k]; ok {
			continue
		}
		lines = append(lines, r.Message(m))
	}
	r.seen = seen

	if st.AnyoneTyping != r.typing {
		if st.AnyoneTyping {
			lines = append(lines, "-- someone is typing")
		}
		r.typing = st.AnyoneTyping
	}

	r.started = true
	r.status = st.Status
	r.roomID = st.RoomID
	r.reload = st.ReloadRequired
	return lines
}

// dedupKey identifies a message independently of its list key, which differs
// between live delivery and history.
func dedupKey(m session.Message) string {
	return fmt.Sprintf("%s\x00%d\x00%s", m.SenderID, m.Timestamp.UnixMilli(), m.Body)
}
