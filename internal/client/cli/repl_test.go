package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool

	calls []string
	args  []string
}

func (f *fakeExec) record(call, arg string) error {
	f.calls = append(f.calls, call)
	f.args = append(f.args, arg)
	return nil
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) SignUp(context.Context) error { return f.record("signup", "") }
func (f *fakeExec) Verify(_ context.Context, c string) error { return f.record("verify", c) }
func (f *fakeExec) Resend(context.Context) error { return f.record("resend", "") }
func (f *fakeExec) Login(context.Context) error {
	f.loggedIn = true
	return f.record("login", "")
}
func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn = false
	return f.record("logout", "")
}
func (f *fakeExec) WhoAmI(context.Context) error { return f.record("whoami", "") }
func (f *fakeExec) DeleteAccount(context.Context) error { return f.record("deleteaccount", "") }
func (f *fakeExec) NewSession(context.Context) error { return f.record("new", "") }
func (f *fakeExec) List(context.Context) error { return f.record("list", "") }
func (f *fakeExec) Load(_ context.Context, id string) error { return f.record("load", id) }
func (f *fakeExec) Delete(_ context.Context, id string) error { return f.record("delete", id) }
func (f *fakeExec) Open(_ context.Context, u string) error { return f.record("open", u) }
func (f *fakeExec) Image(_ context.Context, u string) error { return f.record("image", u) }
func (f *fakeExec) Ask(_ context.Context, q string) error { return f.record("ask", q) }

func silenceREPL(t *testing.T) *[]string {
	t.Helper()
	var printed []string
	origPrintln, origPrint := printlnFn, printFn
	printlnFn = func(a ...any) (int, error) {
		for _, v := range a {
			if s, ok := v.(string); ok {
				printed = append(printed, s)
			}
		}
		return 0, nil
	}
	printFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() {
		printlnFn = origPrintln
		printFn = origPrint
	})
	return &printed
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	silenceREPL(t)

	input := strings.Join([]string{
		"help",
		"login",
		"new",
		"list",
		"load  abc-1 ",
		"open https://example.com",
		"image https://img/1.png",
		"ask what is this page about?",
		"summarize it please",
		"delete abc-1",
		"whoami",
		"",
		"logout",
		"exit",
		"list",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader(input)))

	assert.Equal(t, []string{"login", "new", "list", "load", "open", "image", "ask", "ask", "delete", "whoami", "logout"}, exec.calls)
	assert.Equal(t, []string{"", "", "", "abc-1", "https://example.com", "https://img/1.png", "what is this page about?", "summarize it please", "abc-1", "", ""}, exec.args)
}

func TestRunREPL_HelpDependsOnLogin(t *testing.T) {
	printed := silenceREPL(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("help\nlogin\nhelp\nquit\n")))

	assert.Equal(t, []string{helpLoggedOut, helpLoggedIn, "Bye!"}, *printed)
}

func TestRunREPL_AccountCommands(t *testing.T) {
	silenceREPL(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("signup\nverify 123456\nresend\ndeleteaccount\n")))

	assert.Equal(t, []string{"signup", "verify", "resend", "deleteaccount"}, exec.calls)
	assert.Equal(t, "123456", exec.args[1])
}

func TestRunREPL_LastLineWithoutNewline(t *testing.T) {
	silenceREPL(t)

	exec := &fakeExec{loggedIn: true}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("why?")))

	assert.Equal(t, []string{"ask"}, exec.calls)
	assert.Equal(t, []string{"why?"}, exec.args)
}
