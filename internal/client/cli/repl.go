package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn and printFn are test seams for REPL output. In tests, replace them with stubs.
var printlnFn = fmt.Println
var printFn = fmt.Print

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	SignUp(ctx context.Context) error
	Verify(ctx context.Context, code string) error
	Resend(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
	NewSession(ctx context.Context) error
	List(ctx context.Context) error
	Load(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Open(ctx context.Context, rawURL string) error
	Image(ctx context.Context, imageURL string) error
	Ask(ctx context.Context, question string) error
}

const (
	helpLoggedOut = "Available commands: signup, verify [code], resend, login, open <url>, exit"
	helpLoggedIn  = "Available commands: ask <question>, new, list, load <id>, delete <id>, open <url>, image <url>, whoami, logout, deleteaccount, exit\nAny other line is asked about the active page."
)

// runREPL starts a simple read–eval–print loop for the QuickPage CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. A line that is not a command is a question
// about the active page. The loop exits on EOF or when the user types
// "exit" or "quit".
//
// Any errors returned by command handlers are ignored here; handlers report
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printFn(fmt.Sprintf("qp%s> ", statusFn()))
		line, err := reader.ReadString('\n')
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return
		}

		line = strings.TrimSpace(line)
		if line != "" {
			if quit := dispatchLine(ctx, a, line); quit {
				return
			}
		}
		if eof || ctx.Err() != nil {
			return
		}
	}
}

// dispatchLine runs one command line and reports whether the REPL should stop.
func dispatchLine(ctx context.Context, a execIface, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "help":
		if a.isLoggedIn() {
			printlnFn(helpLoggedIn)
		} else {
			printlnFn(helpLoggedOut)
		}

	case "signup", "register":
		_ = a.SignUp(ctx)

	case "verify":
		_ = a.Verify(ctx, arg)

	case "resend":
		_ = a.Resend(ctx)

	case "login":
		_ = a.Login(ctx)

	case "logout":
		_ = a.Logout(ctx)

	case "whoami":
		_ = a.WhoAmI(ctx)

	case "deleteaccount":
		_ = a.DeleteAccount(ctx)

	case "new":
		_ = a.NewSession(ctx)

	case "l", "list":
		_ = a.List(ctx)

	case "load":
		_ = a.Load(ctx, arg)

	case "delete":
		_ = a.Delete(ctx, arg)

	case "open":
		_ = a.Open(ctx, arg)

	case "image":
		_ = a.Image(ctx, arg)

	case "ask":
		_ = a.Ask(ctx, arg)

	case "exit", "quit":
		printlnFn("Bye!")
		return true

	default:
		_ = a.Ask(ctx, line)
	}
	return false
}

func (a *App) getStatus() string {
	if a.loggedIn && a.email != "" {
		return fmt.Sprintf(" (%s)", a.email)
	}
	return ""
}

// Root greets the user, restores a stored login when it is still usable,
// and runs the REPL until the user leaves.
func (a *App) Root(ctx context.Context) {
	a.out.Println("Welcome to QuickPage CLI (type 'help' for commands)")

	if a.restoreLogin(ctx) {
		a.out.Printf("Logged in as %s\n", a.email)
		a.startSession(ctx)
	} else {
		a.out.Println("Log in, or type 'signup' to create an account.")
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}

// restoreLogin reports whether the stored credential is usable, refreshing
// it if needed.
func (a *App) restoreLogin(ctx context.Context) bool {
	if a.tokens == nil {
		return false
	}
	if _, err := a.tokens.EnsureFresh(ctx, a.now()); err != nil {
		a.log.Debug(ctx, "no usable stored credential", "error", err)
		return false
	}
	a.loggedIn = true
	if cred, err := a.tokens.Current(ctx); err == nil {
		a.email = cred.OwnerEmail
	}
	return true
}
