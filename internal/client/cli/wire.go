package cli

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dmitrijs2005/quickpage/internal/client/bridge"
	"github.com/dmitrijs2005/quickpage/internal/client/chatapi"
	"github.com/dmitrijs2005/quickpage/internal/client/client"
	"github.com/dmitrijs2005/quickpage/internal/client/config"
	"github.com/dmitrijs2005/quickpage/internal/client/content"
	"github.com/dmitrijs2005/quickpage/internal/client/credstore"
	"github.com/dmitrijs2005/quickpage/internal/client/dispatch"
	"github.com/dmitrijs2005/quickpage/internal/client/identity"
	"github.com/dmitrijs2005/quickpage/internal/client/models"
	"github.com/dmitrijs2005/quickpage/internal/client/services"
	"github.com/dmitrijs2005/quickpage/internal/client/sessions"
	"github.com/dmitrijs2005/quickpage/internal/client/tokens"
	"github.com/dmitrijs2005/quickpage/internal/logging"
)

// fetchTimeout bounds pages fetched for "open". Backend calls carry no client
// deadline; a slow backend answers with a gateway timeout message instead.
const fetchTimeout = 15 * time.Second

// NewApp builds the coordinator from c.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	db, err := client.InitDatabase(ctx, c.DBPath)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}
	repos := client.NewRepositories(db)

	provider, err := identity.NewCognitoProviderFromConfig(ctx, c.IdentityRegion, c.IdentityClientID)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("identity provider: %w", err)
	}

	tm := tokens.NewManager(credstore.NewSQLiteStore(db), provider, c.RefreshWindow, log.With("component", "tokens"))
	api := chatapi.NewClient(c.APIEndpoint, &http.Client{}, log.With("component", "chatapi"))

	br := bridge.NewServer(nil, bridge.Options{}, log.With("component", "bridge"))
	gate := content.NewGate(&pageExtractor{
		bridge: br,
		http:   content.NewHTTPExtractor(&http.Client{Timeout: fetchTimeout}),
	}, log.With("component", "content"))
	gate.SetPreloader(chatapi.NewPreloader(api, tm))

	reg := sessions.NewRegistry(api, tm, repos.Preferences, gate, log.With("component", "sessions"))
	out := newConsole(os.Stdout)
	disp := dispatch.New(br, gate, tm, api, reg, out, dispatch.Options{
		ContentWait: c.ContentWaitTimeout,
		WordDelay:   c.StreamWordDelay,
	}, log.With("component", "dispatch"))
	auth := services.NewAuthService(provider, tm, reg, c.VerificationTimeout, log.With("component", "auth"))

	a := &App{
		config:   c,
		auth:     auth,
		sessions: reg,
		chat:     disp,
		gate:     gate,
		tabs:     br,
		tokens:   tm,
		log:      log,
		out:      out,
		reader:   bufio.NewReader(os.Stdin),
		now:      time.Now,
		bridge:   br,
		closers:  []func(){auth.Close, gate.Wait},
		db:       db,
	}
	br.SetHandler(a)
	return a, nil
}

// pageExtractor reads pages opened from the command line over HTTP and
// every other tab through the extension.
type pageExtractor struct {
	bridge content.Extractor
	http   content.Extractor
}

func (p *pageExtractor) Extract(ctx context.Context, tab models.Tab) (string, error) {
	if tab.ID == cliTabID {
		return p.http.Extract(ctx, tab)
	}
	return p.bridge.Extract(ctx, tab)
}
