package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/quickpage/internal/client/bridge"
	"github.com/dmitrijs2005/quickpage/internal/client/config"
	"github.com/dmitrijs2005/quickpage/internal/client/dispatch"
	"github.com/dmitrijs2005/quickpage/internal/client/errmsg"
	"github.com/dmitrijs2005/quickpage/internal/client/models"
	"github.com/dmitrijs2005/quickpage/internal/client/services"
	"github.com/dmitrijs2005/quickpage/internal/common"
	"github.com/dmitrijs2005/quickpage/internal/logging"
)

const (
	msgSessionExpired = "Your session has expired. Please log in again."
	msgLoginFirst     = "Please log in first (type 'login' or 'signup')."
)

// cliTabID marks pages opened from the command line; they are fetched over
// HTTP instead of through the extension.
const cliTabID = -1

type sessionStore interface {
	Start(ctx context.Context, resume bool) (string, error)
	Create(ctx context.Context) (string, error)
	Active() string
	ListSummaries(ctx context.Context) ([]models.SessionSummary, error)
	Load(ctx context.Context, id string) (models.Session, error)
	Delete(ctx context.Context, id string) (string, error)
}

type asker interface {
	Ask(ctx context.Context, question string) (dispatch.Outcome, error)
	IncludeImage(url string)
	PendingImages() []string
}

type extractionStarter interface {
	BeginExtraction(ctx context.Context, tab models.Tab)
}

type tabSetter interface {
	SetActiveTab(tab models.Tab)
}

type tokenChecker interface {
	EnsureFresh(ctx context.Context, now time.Time) (string, error)
	Current(ctx context.Context) (models.Credential, error)
}

type App struct {
	config   *config.Config
	auth     services.AuthService
	sessions sessionStore
	chat     asker
	gate     extractionStarter
	tabs     tabSetter
	tokens   tokenChecker
	log      logging.Logger
	out      *console
	reader   *bufio.Reader
	now      func() time.Time

	loggedIn bool
	email    string

	bridge  *bridge.Server
	closers []func()
	db      *sql.DB
}

func (a *App) isLoggedIn() bool {
	return a.loggedIn
}

func (a *App) resume() bool {
	return a.config != nil && a.config.ResumeSession
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the extension bridge and the REPL and blocks until the user
// exits. An interrupt stops a streaming answer and ends the REPL after the
// current line.
func (a *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer a.close()

	a.initSignalHandler(cancelFunc)

	if a.bridge != nil {
		go func() {
			if err := a.bridge.Start(a.config.BridgeAddr); err != nil {
				a.log.Error(ctx, "extension bridge stopped", "error", err)
			}
		}()
	}
	a.Root(ctx)
}

func (a *App) close() {
	if a.bridge != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := a.bridge.Shutdown(ctx); err != nil {
			a.log.Warn(ctx, "bridge shutdown", "error", err)
		}
		cancel()
	}
	for _, c := range a.closers {
		c()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// startSession picks the active chat after a successful login.
func (a *App) startSession(ctx context.Context) {
	id, err := a.sessions.Start(ctx, a.resume())
	if err != nil {
		a.log.Warn(ctx, "failed to start session", "error", err)
		return
	}
	a.log.Debug(ctx, "active session", "session_id", id)
}

// fail reports err to the user. A rejected credential sends the user back
// to the login prompt.
func (a *App) fail(ctx context.Context, err error) error {
	if errors.Is(err, common.ErrMustReauthenticate) {
		a.out.Println(msgSessionExpired)
		a.requireLogin(ctx)
		return err
	}
	a.out.Println("Error:", errmsg.Format(err))
	return err
}

func (a *App) requireLogin(ctx context.Context) {
	a.loggedIn = false
	a.email = ""
	a.auth.ShowLogin()
	_ = a.Login(ctx)
}

// TabUpdated implements bridge.Handler.
func (a *App) TabUpdated(ctx context.Context, tab models.Tab) {
	a.log.Debug(ctx, "active tab changed", "tab_id", tab.ID, "url", tab.URL)
	a.gate.BeginExtraction(ctx, tab)
}

// IncludeImage implements bridge.Handler.
func (a *App) IncludeImage(_ context.Context, imageURL string) {
	a.chat.IncludeImage(imageURL)
	a.out.Printf("Image added to your next question: %s\n", imageURL)
}
