package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/vaitul/partychat/internal/render"
	"github.com/vaitul/partychat/internal/session"
)

type fakeChat struct {
	state      session.State
	sent       []string
	sendErr    error
	typing     []bool
	reconnects int
	reconErr   error
	left       bool
}

func (c *fakeChat) State() session.State  { return c.state }
func (c *fakeChat) SetTyping(typing bool) { c.typing = append(c.typing, typing) }
func (c *fakeChat) LeaveRoom()            { c.left = true }

func (c *fakeChat) SendMessage(body string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, body)
	return nil
}

func (c *fakeChat) Reconnect() error {
	c.reconnects++
	return c.reconErr
}

func newTestREPL() (*repl, *fakeChat, *bytes.Buffer) {
	c := &fakeChat{state: session.State{Status: session.StatusConnected, RoomID: "R1", Nickname: "u-1::Ann"}}
	var out bytes.Buffer
	return newREPL(c, &out, render.New(time.UTC)), c, &out
}

func TestREPL_Handle(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantQuit bool
		check    func(t *testing.T, c *fakeChat, out string)
	}{
		{
			name: "plain text is sent",
			line: "  hello there ",
			check: func(t *testing.T, c *fakeChat, out string) {
				if len(c.sent) != 1 || c.sent[0] != "hello there" {
					t.Errorf("sent = %q, want [hello there]", c.sent)
				}
			},
		},
		{
			name: "double slash sends literal slash",
			line: "//shrug",
			check: func(t *testing.T, c *fakeChat, out string) {
				if len(c.sent) != 1 || c.sent[0] != "/shrug" {
					t.Errorf("sent = %q, want [/shrug]", c.sent)
				}
			},
		},
		{
			name: "blank line ignored",
			line: "   ",
			check: func(t *testing.T, c *fakeChat, out string) {
				if len(c.sent) != 0 || out != "" {
					t.Errorf("sent = %q, out = %q, want nothing", c.sent, out)
				}
			},
		},
		{
			name: "typing on",
			line: "/typing on",
			check: func(t *testing.T, c *fakeChat, out string) {
				if len(c.typing) != 1 || !c.typing[0] {
					t.Errorf("typing = %v, want [true]", c.typing)
				}
			},
		},
		{
			name: "typing off",
			line: "/typing OFF",
			check: func(t *testing.T, c *fakeChat, out string) {
				if len(c.typing) != 1 || c.typing[0] {
					t.Errorf("typing = %v, want [false]", c.typing)
				}
			},
		},
		{
			name: "typing usage",
			line: "/typing",
			check: func(t *testing.T, c *fakeChat, out string) {
				if len(c.typing) != 0 || !strings.Contains(out, "usage") {
					t.Errorf("typing = %v, out = %q, want usage", c.typing, out)
				}
			},
		},
		{
			name: "reconnect",
			line: "/reconnect",
			check: func(t *testing.T, c *fakeChat, out string) {
				if c.reconnects != 1 {
					t.Errorf("reconnects = %d, want 1", c.reconnects)
				}
			},
		},
		{
			name: "status",
			line: "/status",
			check: func(t *testing.T, c *fakeChat, out string) {
				if out != "-- connected room=R1 as Ann\n" {
					t.Errorf("out = %q, want status line", out)
				}
			},
		},
		{
			name:     "leave",
			line:     "/leave",
			wantQuit: true,
			check: func(t *testing.T, c *fakeChat, out string) {
				if !c.left {
					t.Error("LeaveRoom not called")
				}
			},
		},
		{
			name:     "quit",
			line:     "/quit",
			wantQuit: true,
			check: func(t *testing.T, c *fakeChat, out string) {
				if c.left {
					t.Error("quit should not leave the room")
				}
			},
		},
		{
			name: "unknown command",
			line: "/dance",
			check: func(t *testing.T, c *fakeChat, out string) {
				if !strings.Contains(out, "unknown command /dance") {
					t.Errorf("out = %q, want unknown command", out)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, c, out := newTestREPL()
			if got := p.handle(tt.line); got != tt.wantQuit {
				t.Errorf("handle(%q) = %v, want %v", tt.line, got, tt.wantQuit)
			}
			tt.check(t, c, out.String())
		})
	}
}

func TestREPL_Errors(t *testing.T) {
	p, c, out := newTestREPL()
	c.sendErr = session.ErrNotConnected
	c.reconErr = session.ErrReloadRequired

	p.handle("hi")
	p.handle("/reconnect")

	got := out.String()
	if !strings.Contains(got, "message not sent: "+session.ErrNotConnected.Error()) {
		t.Errorf("out = %q, want send error", got)
	}
	if !strings.Contains(got, "reload required: restart partychat") {
		t.Errorf("out = %q, want reload prompt", got)
	}

	c.reconErr = session.ErrNotReconnectable
	p.handle("/reconnect")
	if got := out.String(); !strings.Contains(got, "reconnect: "+session.ErrNotReconnectable.Error()) {
		t.Errorf("out = %q, want reconnect error", got)
	}
}

func TestREPL_Run(t *testing.T) {
	p, c, out := newTestREPL()

	changes := make(chan session.State, 1)
	st := c.state
	st.Messages = []session.Message{{
		SenderID:    "u-2",
		DisplayName: "Bob",
		Body:        "welcome",
		Icon:        "🎉",
		Timestamp:   time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
	}}
	changes <- st

	in := strings.NewReader("first\n")
	done := make(chan error, 1)
	go func() { done <- p.run(context.Background(), in, changes) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run() did not return at end of input")
	}

	if len(c.sent) != 1 || c.sent[0] != "first" {
		t.Errorf("sent = %q, want [first]", c.sent)
	}
	if !strings.HasPrefix(out.String(), "-- connected room=R1 as Ann\n") {
		t.Errorf("out = %q, want initial status line", out.String())
	}
}

func TestREPL_RunStopsOnClosedChanges(t *testing.T) {
	p, _, _ := newTestREPL()

	changes := make(chan session.State)
	close(changes)

	// Input never ends.
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.run(ctx, pr, changes) }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run() did not return after changes closed")
	}
}
