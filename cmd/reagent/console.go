package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/casualjim/reagent/output"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/k0kubun/pp/v3"
)

type console struct {
	out  io.Writer
	glam *glamour.TermRenderer
}

func newConsole(out io.Writer, markdown bool) (*console, error) {
	c := &console{out: out}
	if markdown {
		glam, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
		if err != nil {
			return nil, err
		}
		c.glam = glam
	}
	return c, nil
}

func (c *console) prompt() {
	fmt.Fprintf(c.out, "%s: ", color.CyanString("User"))
}

func (c *console) answer(text string) {
	if c.glam == nil {
		fmt.Fprintln(c.out)
		return
	}
	rendered, err := c.glam.Render(text)
	if err != nil {
		fmt.Fprintln(c.out)
		return
	}
	fmt.Fprint(c.out, "\n", rendered)
}

func (c *console) dump(v any) {
	pp.Fprintln(c.out, v)
}

func (c *console) failure(err error) {
	fmt.Fprintf(c.out, "\n%s %v\n", color.RedString("error:"), err)
}

// streamer prints the growing text of a streamed output. Values are the
// full text so far, so only the unseen suffix is written.
func (c *console) streamer() *streamPrinter {
	return &streamPrinter{out: c.out, done: make(chan struct{})}
}

type streamPrinter struct {
	out     io.Writer
	mu      sync.Mutex
	printed string
	started bool
	done    chan struct{}
	once    sync.Once
}

func (s *streamPrinter) OnEvent(_ context.Context, event output.Event) {
	if event.Err != nil {
		s.finish()
		return
	}
	text, ok := event.Value.(string)
	if ok {
		s.mu.Lock()
		if !s.started {
			s.started = true
			fmt.Fprint(s.out, color.MagentaString("Assistant")+": ")
		}
		if strings.HasPrefix(text, s.printed) {
			fmt.Fprint(s.out, text[len(s.printed):])
		} else {
			fmt.Fprint(s.out, "\n", text)
		}
		s.printed = text
		s.mu.Unlock()
	}
	if event.Terminal {
		s.finish()
	}
}

func (s *streamPrinter) finish() {
	s.once.Do(func() { close(s.done) })
}

// wait blocks until the terminal value was printed or ctx is done.
func (s *streamPrinter) wait(ctx context.Context) {
	select {
	case <-s.done:
	case <-ctx.Done():
	}
}
