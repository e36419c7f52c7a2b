package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/quickpage/internal/client/models"
)

// console serializes writes from the REPL, the dispatcher and the bridge.
type console struct {
	mu        sync.Mutex
	w         io.Writer
	streaming bool
}

func newConsole(w io.Writer) *console {
	return &console{w: w}
}

func (c *console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.breakStreamLocked()
	fmt.Fprintf(c.w, format, args...)
}

func (c *console) Println(args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.breakStreamLocked()
	fmt.Fprintln(c.w, args...)
}

func (c *console) breakStreamLocked() {
	if c.streaming {
		fmt.Fprintln(c.w)
		c.streaming = false
	}
}

// The console is the dispatcher's presenter.

func (c *console) ShowUserTurn(_ string, t models.Turn) {
	// the question itself is already on the terminal
	if t.Kind == models.TurnUserImage {
		c.Printf("  [image] %s\n", t.Content)
	}
}

func (c *console) StreamChunk(_ string, chunk string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streaming {
		fmt.Fprint(c.w, "QuickPage: ")
		c.streaming = true
	}
	fmt.Fprint(c.w, chunk)
}

func (c *console) EndStream(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.breakStreamLocked()
}

func (c *console) RequireReauthentication() {
	c.Println(msgSessionExpired)
}

func (c *console) printTurn(t models.Turn) {
	switch t.Kind {
	case models.TurnUserText:
		c.Printf("You: %s\n", t.Content)
	case models.TurnUserImage:
		c.Printf("You: [image] %s\n", t.Content)
	case models.TurnBotText:
		c.Printf("QuickPage: %s\n", t.Content)
	}
}
