// Package dispatch runs one question about the active page from submit to
// the appended transcript: it waits for page content, obtains a fresh token,
// calls the backend, classifies the answer and streams it to the presenter.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/quickpage/internal/client/chatapi"
	"github.com/dmitrijs2005/quickpage/internal/client/content"
	"github.com/dmitrijs2005/quickpage/internal/client/errmsg"
	"github.com/dmitrijs2005/quickpage/internal/client/models"
	"github.com/dmitrijs2005/quickpage/internal/common"
	"github.com/dmitrijs2005/quickpage/internal/logging"
)

var (
	ErrBusy       = errors.New("a question is already being answered")
	ErrEmptyInput = errors.New("question is empty")
)

// Messages shown as the bot answer when no real answer is available.
const (
	MsgInternalPage = "⚠️ Cannot analyze browser internal pages. Please navigate to a regular website (http:// or https://) to use QuickPage."
	MsgTimeout      = "Request timed out. The page might be too large or complex. Try asking a simpler question."
	MsgTransport    = "Sorry, I encountered an error while processing your request."
	MsgMalformed    = "Unexpected response format. Please try again."
	MsgNoResponse   = "No response received"
)

// Presenter renders the conversation.
type Presenter interface {
	ShowUserTurn(sessionID string, t models.Turn)
	StreamChunk(sessionID, chunk string)
	EndStream(sessionID string)
	RequireReauthentication()
}

// TabSource reports the tab the user is looking at.
type TabSource interface {
	ActiveTab() (models.Tab, bool)
}

type ContentGate interface {
	EnsureExtraction(ctx context.Context, tab models.Tab) bool
	AwaitSnapshot(ctx context.Context, url string, timeout time.Duration) (models.PageContentSnapshot, error)
	CurrentSnapshot(urlHint string) (models.PageContentSnapshot, bool)
}

type Tokens interface {
	EnsureFresh(ctx context.Context, now time.Time) (string, error)
	Logout(ctx context.Context) error
}

type Backend interface {
	Ask(ctx context.Context, in chatapi.AskRequest) (chatapi.Result, error)
}

type Transcripts interface {
	Active() string
	Create(ctx context.Context) (string, error)
	Append(id string, turns ...models.Turn)
}

type Options struct {
	ContentWait time.Duration
	WordDelay   time.Duration
}

// Outcome is the end of one dispatch.
type Outcome struct {
	SessionID string
	Answer    string
	Kind      chatapi.Kind
	Reauth    bool
}

type Dispatcher struct {
	tabs      TabSource
	gate      ContentGate
	tokens    Tokens
	backend   Backend
	sessions  Transcripts
	presenter Presenter
	opts      Options
	log       logging.Logger
	now       func() time.Time

	busy  atomic.Bool
	state atomic.Int32

	imgMu  sync.Mutex
	images []string
}

func New(tabs TabSource, gate ContentGate, tokens Tokens, backend Backend, sessions Transcripts, presenter Presenter, opts Options, log logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Dispatcher{
		tabs:      tabs,
		gate:      gate,
		tokens:    tokens,
		backend:   backend,
		sessions:  sessions,
		presenter: presenter,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

func (d *Dispatcher) State() State { return State(d.state.Load()) }

func (d *Dispatcher) setState(s State) { d.state.Store(int32(s)) }

// IncludeImage queues an image URL for the next question.
func (d *Dispatcher) IncludeImage(url string) {
	d.imgMu.Lock()
	d.images = append(d.images, url)
	d.imgMu.Unlock()
}

// PendingImages returns the queued image URLs.
func (d *Dispatcher) PendingImages() []string {
	d.imgMu.Lock()
	defer d.imgMu.Unlock()
	return append([]string(nil), d.images...)
}

// dropImages removes the first n queued images, leaving images queued while
// the question was in flight for the next one.
func (d *Dispatcher) dropImages(n int) {
	d.imgMu.Lock()
	defer d.imgMu.Unlock()
	if n > len(d.images) {
		n = len(d.images)
	}
	d.images = append([]string(nil), d.images[n:]...)
}

// Submit starts answering question and returns at once. The session is
// captured now, so the answer lands in it even if another session becomes
// active before the backend replies.
func (d *Dispatcher) Submit(ctx context.Context, question string) (<-chan Outcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyInput
	}
	if !d.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	d.setState(Dispatching)

	sessionID := d.sessions.Active()
	if sessionID == "" {
		id, err := d.sessions.Create(ctx)
		if err != nil {
			d.finish(Failed)
			return nil, err
		}
		sessionID = id
	}
	images := d.PendingImages()

	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		out <- d.run(ctx, sessionID, question, images)
	}()
	return out, nil
}

// Ask submits question and waits for the outcome.
func (d *Dispatcher) Ask(ctx context.Context, question string) (Outcome, error) {
	ch, err := d.Submit(ctx, question)
	if err != nil {
		return Outcome{}, err
	}
	return <-ch, nil
}

func (d *Dispatcher) finish(s State) {
	d.setState(s)
	d.busy.Store(false)
}

func (d *Dispatcher) run(ctx context.Context, sessionID, question string, images []string) Outcome {
	log := d.log.With("session_id", sessionID)
	d.presenter.ShowUserTurn(sessionID, models.UserText(question))

	tab, _ := d.tabs.ActiveTab()
	if content.IsInternalURL(tab.URL) {
		log.Info(ctx, "internal page, not querying", "url", tab.URL)
		return d.deliver(ctx, sessionID, question, nil, MsgInternalPage, chatapi.AppError)
	}

	d.setState(AwaitingContent)
	pageText := d.pageContent(ctx, tab)

	d.setState(AwaitingToken)
	token, err := d.tokens.EnsureFresh(ctx, d.now())
	if err != nil {
		if errors.Is(err, common.ErrMustReauthenticate) {
			return d.reauth(ctx, sessionID)
		}
		log.Error(ctx, "token unavailable", "error", err)
		return d.deliver(ctx, sessionID, question, images, MsgTransport, chatapi.Malformed)
	}

	d.setState(InFlight)
	res, err := d.backend.Ask(ctx, chatapi.AskRequest{
		Token:        token,
		SessionID:    sessionID,
		PageContent:  pageText,
		Prompt:       question,
		ImageContext: strings.Join(images, "\n"),
		PageURL:      tab.URL,
	})
	if err != nil {
		log.Error(ctx, "ask failed", "error", err)
		return d.deliver(ctx, sessionID, question, images, MsgTransport, chatapi.Malformed)
	}

	var answer string
	switch res.Kind {
	case chatapi.AuthFailure:
		return d.reauth(ctx, sessionID)
	case chatapi.Success:
		answer = res.Text
		if answer == "" {
			answer = MsgNoResponse
		}
	case chatapi.Timeout:
		log.Warn(ctx, "gateway message", "message", res.Text)
		answer = MsgTimeout
	case chatapi.AppError:
		log.Warn(ctx, "backend error", "error", res.Text)
		answer = errmsg.Normalize(res.Text)
	default:
		log.Error(ctx, "unexpected response format")
		answer = MsgMalformed
	}
	return d.deliver(ctx, sessionID, question, images, answer, res.Kind)
}

// pageContent returns the snapshot text for tab. A missing snapshot is
// extracted on demand and a failed extraction is retried once, all within a
// single ContentWait. A timeout degrades to asking without page content.
func (d *Dispatcher) pageContent(ctx context.Context, tab models.Tab) string {
	if tab.URL == "" {
		return ""
	}
	if s, ok := d.gate.CurrentSnapshot(tab.URL); ok {
		return s.Text
	}

	deadline := time.Now().Add(d.opts.ContentWait)
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if d.gate.EnsureExtraction(ctx, tab) {
			d.log.Debug(ctx, "extracting page content", "url", tab.URL, "attempt", attempt+1)
		}
		var s models.PageContentSnapshot
		s, err = d.gate.AwaitSnapshot(ctx, tab.URL, remaining)
		if err == nil {
			return s.Text
		}
		if ctx.Err() != nil {
			break
		}
	}
	d.log.Warn(ctx, "page content not ready, asking without it", "url", tab.URL, "error", err)
	return ""
}

func (d *Dispatcher) reauth(ctx context.Context, sessionID string) Outcome {
	d.log.Info(ctx, "authentication required", "session_id", sessionID)
	if err := d.tokens.Logout(ctx); err != nil {
		d.log.Error(ctx, "failed to erase credential", "error", err)
	}
	d.presenter.RequireReauthentication()
	d.finish(Failed)
	return Outcome{SessionID: sessionID, Kind: chatapi.AuthFailure, Reauth: true}
}

func (d *Dispatcher) deliver(ctx context.Context, sessionID, question string, images []string, answer string, kind chatapi.Kind) Outcome {
	d.setState(Streaming)
	d.stream(ctx, sessionID, answer)

	turns := make([]models.Turn, 0, len(images)+2)
	for _, img := range images {
		turns = append(turns, models.UserImage(img))
	}
	turns = append(turns, models.UserText(question), models.BotText(answer))
	d.sessions.Append(sessionID, turns...)
	d.dropImages(len(images))

	d.finish(Idle)
	return Outcome{SessionID: sessionID, Answer: answer, Kind: kind}
}

// stream sends answer word by word. Cancelling ctx flushes the rest at once.
func (d *Dispatcher) stream(ctx context.Context, sessionID, answer string) {
	words := strings.SplitAfter(answer, " ")
	for i, w := range words {
		d.presenter.StreamChunk(sessionID, w)
		if d.opts.WordDelay <= 0 || i == len(words)-1 {
			continue
		}
		t := time.NewTimer(d.opts.WordDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			d.presenter.StreamChunk(sessionID, strings.Join(words[i+1:], ""))
			d.presenter.EndStream(sessionID)
			return
		}
	}
	d.presenter.EndStream(sessionID)
}
