package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vaitul/partychat/internal/render"
	"github.com/vaitul/partychat/internal/session"
)

const helpText = `-- commands:
--   <text>          send a message (start with // to send a leading /)
--   /typing on|off  set typing presence
--   /reconnect      retry now while disconnected (not once a reload is required)
--   /status         show connection status
--   /leave          leave the room and exit
--   /quit           exit`

// chat is the part of the session manager the loop drives.
type chat interface {
	State() session.State
	SendMessage(body string) error
	SetTyping(typing bool)
	Reconnect() error
	LeaveRoom()
}

// repl reads commands and prints snapshot changes. All fields are owned by
// the run goroutine.
type repl struct {
	chat chat
	out  io.Writer
	r    *render.Renderer
}

func newREPL(c chat, out io.Writer, r *render.Renderer) *repl {
	return &repl{chat: c, out: out, r: r}
}

// run prints the current state, then serves input lines and snapshots until
// ctx is done, input ends, changes closes or the user quits.
func (p *repl) run(ctx context.Context, in io.Reader, changes <-chan session.State) error {
	lines := make(chan string)
	go scanLines(ctx, in, lines)

	p.print(p.r.Update(p.chat.State()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-changes:
			if !ok {
				return nil
			}
			p.print(p.r.Update(st))
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if p.handle(line) {
				return nil
			}
		}
	}
}

// handle runs one input line. It reports whether the loop should end.
func (p *repl) handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if strings.HasPrefix(line, "//") {
		p.send(line[1:])
		return false
	}
	if !strings.HasPrefix(line, "/") {
		p.send(line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	switch strings.ToLower(cmd) {
	case "/quit", "/exit":
		return true
	case "/leave":
		p.chat.LeaveRoom()
		p.printf("-- left the room")
		return true
	case "/status":
		p.printf("-- %s", render.Status(p.chat.State()))
	case "/reconnect":
		err := p.chat.Reconnect()
		switch {
		case errors.Is(err, session.ErrReloadRequired):
			p.printf("!! reload required: restart partychat to rejoin the room")
		case err != nil:
			p.printf("!! reconnect: %v", err)
		}
	case "/typing":
		switch strings.ToLower(strings.TrimSpace(arg)) {
		case "on":
			p.chat.SetTyping(true)
		case "off":
			p.chat.SetTyping(false)
		default:
			p.printf("!! usage: /typing on|off")
		}
	case "/help":
		p.printf("%s", helpText)
	default:
		p.printf("!! unknown command %s, try /help", cmd)
	}
	return false
}

func (p *repl) send(body string) {
	if err := p.chat.SendMessage(body); err != nil {
		p.printf("!! message not sent: %v", err)
	}
}

func (p *repl) print(lines []string) {
	for _, l := range lines {
		fmt.Fprintln(p.out, l)
	}
}

func (p *repl) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// scanLines forwards input lines until EOF or ctx is done, then closes lines.
func scanLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		select {
		case lines <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}
