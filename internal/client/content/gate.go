// Package content tracks whether extracted page text for the active tab is
// available to a query.
//
// Each navigation starts a new epoch with its own one-shot ready channel.
// Extraction results from an older epoch are discarded, so a slow page can
// never overwrite the snapshot of the page that replaced it.
package content

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/quickpage/internal/client/models"
	"github.com/dmitrijs2005/quickpage/internal/common"
	"github.com/dmitrijs2005/quickpage/internal/logging"
)

// ErrNotReady is returned by AwaitReady when no snapshot landed in time.
var ErrNotReady = errors.New("page content not ready")

// Extractor returns the visible text of a tab.
type Extractor interface {
	Extract(ctx context.Context, tab models.Tab) (string, error)
}

// Preloader warms backend embeddings for freshly extracted content.
type Preloader interface {
	PreloadEmbeddings(ctx context.Context, pageContent, pageURL string) error
}

type Gate struct {
	extractor Extractor
	preloader Preloader
	log       logging.Logger
	now       func() time.Time

	mu            sync.Mutex
	epoch         uint64
	ready         chan struct{}
	changed       chan struct{}
	pending       string
	snap          *models.PageContentSnapshot
	lastPreloaded string

	wg sync.WaitGroup
}

func NewGate(extractor Extractor, log logging.Logger) *Gate {
	if log == nil {
		log = logging.Nop()
	}
	return &Gate{
		extractor: extractor,
		log:       log,
		now:       time.Now,
		ready:     make(chan struct{}),
		changed:   make(chan struct{}),
	}
}

// SetPreloader enables embedding preload, once per distinct URL.
func (g *Gate) SetPreloader(p Preloader) {
	g.mu.Lock()
	g.preloader = p
	g.mu.Unlock()
}

// IsInternalURL reports whether url belongs to a browser-internal page.
func IsInternalURL(url string) bool {
	for _, p := range common.InternalPagePrefixes {
		if strings.HasPrefix(url, p) {
			return true
		}
	}
	return false
}

// BeginExtraction invalidates the current snapshot and extracts tab in the
// background. It returns immediately.
func (g *Gate) BeginExtraction(ctx context.Context, tab models.Tab) {
	skip := IsInternalURL(tab.URL) || tab.URL == ""

	g.mu.Lock()
	g.epoch++
	epoch := g.epoch
	g.snap = nil
	g.ready = make(chan struct{})
	g.pending = ""
	if !skip {
		g.pending = tab.URL
	}
	g.notify()
	g.mu.Unlock()

	if skip {
		g.log.Debug(ctx, "skipping extraction", "url", tab.URL)
		return
	}

	ctx = context.WithoutCancel(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		text, err := g.extractor.Extract(ctx, tab)
		if err != nil {
			g.log.Warn(ctx, "content extraction failed", "url", tab.URL, "error", err)
			g.fail(epoch)
			return
		}
		g.land(ctx, epoch, models.PageContentSnapshot{Text: text, SourceURL: tab.URL, ExtractedAt: g.now()})
	}()
}

// EnsureExtraction starts an extraction of tab unless a snapshot of its URL
// is cached or one is already in flight. It reports whether it started one.
func (g *Gate) EnsureExtraction(ctx context.Context, tab models.Tab) bool {
	g.mu.Lock()
	busy := g.pending == tab.URL || (g.snap != nil && g.snap.Matches(tab.URL))
	g.mu.Unlock()
	if busy {
		return false
	}
	g.BeginExtraction(ctx, tab)
	return true
}

// notify wakes every AwaitSnapshot caller. g.mu must be held.
func (g *Gate) notify() {
	close(g.changed)
	g.changed = make(chan struct{})
}

// markReady closes the ready channel of the current epoch once. g.mu must
// be held.
func (g *Gate) markReady() {
	select {
	case <-g.ready:
	default:
		close(g.ready)
	}
}

func (g *Gate) fail(epoch uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if epoch != g.epoch {
		return
	}
	g.pending = ""
	g.notify()
}

func (g *Gate) land(ctx context.Context, epoch uint64, s models.PageContentSnapshot) {
	g.mu.Lock()
	if epoch != g.epoch {
		g.mu.Unlock()
		g.log.Debug(ctx, "discarding stale extraction", "url", s.SourceURL)
		return
	}
	g.snap = &s
	g.pending = ""
	g.markReady()
	g.notify()

	p := g.preloader
	preload := p != nil && s.SourceURL != g.lastPreloaded
	if preload {
		g.lastPreloaded = s.SourceURL
	}
	g.mu.Unlock()

	g.log.Debug(ctx, "content ready", "url", s.SourceURL, "chars", len(s.Text))
	if preload {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			if err := p.PreloadEmbeddings(ctx, s.Text, s.SourceURL); err != nil {
				g.log.Warn(ctx, "preload failed", "url", s.SourceURL, "error", err)
			}
		}()
	}
}

// Restore installs a snapshot carried by a loaded session and marks the
// gate ready. An extraction in flight keeps its epoch and replaces the
// restored snapshot when it lands.
func (g *Gate) Restore(s models.PageContentSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snap = &s
	g.markReady()
	g.notify()
}

// Ready reports whether a snapshot for the current epoch is available.
func (g *Gate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap != nil
}

// AwaitReady blocks until a snapshot is available or timeout elapses. If a
// navigation replaces the page while waiting, it keeps waiting for the new
// page within the same deadline.
func (g *Gate) AwaitReady(ctx context.Context, timeout time.Duration) (models.PageContentSnapshot, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		g.mu.Lock()
		if g.snap != nil {
			s := *g.snap
			g.mu.Unlock()
			return s, nil
		}
		ch := g.ready
		g.mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			return models.PageContentSnapshot{}, ErrNotReady
		case <-ctx.Done():
			return models.PageContentSnapshot{}, ctx.Err()
		}
	}
}

// CurrentSnapshot returns the cached snapshot only when it was taken from
// urlHint.
func (g *Gate) CurrentSnapshot(urlHint string) (models.PageContentSnapshot, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.snap == nil || !g.snap.Matches(urlHint) {
		return models.PageContentSnapshot{}, false
	}
	return *g.snap, true
}

// AwaitSnapshot blocks until a snapshot taken from url is available. It
// gives up with ErrNotReady once timeout elapses or when no extraction of
// url is in flight.
func (g *Gate) AwaitSnapshot(ctx context.Context, url string, timeout time.Duration) (models.PageContentSnapshot, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		g.mu.Lock()
		if g.snap != nil && g.snap.Matches(url) {
			s := *g.snap
			g.mu.Unlock()
			return s, nil
		}
		if g.pending != url {
			g.mu.Unlock()
			return models.PageContentSnapshot{}, ErrNotReady
		}
		ch := g.changed
		g.mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			return models.PageContentSnapshot{}, ErrNotReady
		case <-ctx.Done():
			return models.PageContentSnapshot{}, ctx.Err()
		}
	}
}

// Wait blocks until background extractions and preloads finish.
func (g *Gate) Wait() {
	g.wg.Wait()
}
