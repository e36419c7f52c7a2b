package cli

import (
	"context"
	"errors"
	"net/url"

	"github.com/dmitrijs2005/quickpage/internal/client/chatapi"
	"github.com/dmitrijs2005/quickpage/internal/client/content"
	"github.com/dmitrijs2005/quickpage/internal/client/dispatch"
	"github.com/dmitrijs2005/quickpage/internal/client/models"
	"github.com/dmitrijs2005/quickpage/internal/client/sessions"
)

// NewSession starts a fresh chat.
func (a *App) NewSession(ctx context.Context) error {
	if !a.loggedIn {
		a.out.Println(msgLoginFirst)
		return nil
	}
	id, err := a.sessions.Create(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	a.out.Printf("Started new chat %s\n", id)
	return nil
}

// List prints the stored chats, newest activity first. The active one is
// marked with '*'.
func (a *App) List(ctx context.Context) error {
	if !a.loggedIn {
		a.out.Println(msgLoginFirst)
		return nil
	}
	list, err := a.sessions.ListSummaries(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	if len(list) == 0 {
		a.out.Println("No chats yet.")
		return nil
	}

	active := a.sessions.Active()
	now := a.now()
	for _, s := range list {
		mark := " "
		if s.ID == active {
			mark = "*"
		}
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		a.out.Printf("%s %s  %s  (%s, %d messages)\n", mark, s.ID, title, sessions.TimeAgo(s.LastMessageAt, now), s.MessageCount)
	}
	return nil
}

// Load makes id the active chat and prints its transcript.
func (a *App) Load(ctx context.Context, id string) error {
	if !a.loggedIn {
		a.out.Println(msgLoginFirst)
		return nil
	}
	if id == "" {
		a.out.Println("Usage: load <id>")
		return nil
	}
	s, err := a.sessions.Load(ctx, id)
	if err != nil {
		return a.fail(ctx, err)
	}

	title := s.Title
	if title == "" {
		title = s.ID
	}
	a.out.Printf("--- %s ---\n", title)
	if s.Snapshot != nil && s.Snapshot.SourceURL != "" {
		a.out.Printf("Page: %s\n", s.Snapshot.SourceURL)
	}
	for _, t := range s.Transcript {
		a.out.printTurn(t)
	}
	return nil
}

// Delete removes a chat. Deleting the active chat starts a new one.
func (a *App) Delete(ctx context.Context, id string) error {
	if !a.loggedIn {
		a.out.Println(msgLoginFirst)
		return nil
	}
	if id == "" {
		a.out.Println("Usage: delete <id>")
		return nil
	}
	active, err := a.sessions.Delete(ctx, id)
	if err != nil {
		return a.fail(ctx, err)
	}
	a.out.Printf("Deleted chat %s. Active chat: %s\n", id, active)
	return nil
}

// Open makes rawURL the active page and starts reading it.
func (a *App) Open(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		a.out.Println("Usage: open <url>")
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || (u.Host == "" && !content.IsInternalURL(rawURL)) {
		a.out.Println("Invalid URL:", rawURL)
		return nil
	}

	tab := models.Tab{ID: cliTabID, URL: rawURL}
	a.tabs.SetActiveTab(tab)
	a.gate.BeginExtraction(ctx, tab)
	a.out.Printf("Opened %s\n", rawURL)
	return nil
}

// Image queues an image for the next question.
func (a *App) Image(_ context.Context, imageURL string) error {
	if imageURL == "" {
		a.out.Println("Usage: image <url>")
		return nil
	}
	a.chat.IncludeImage(imageURL)
	a.out.Printf("Image added (%d pending).\n", len(a.chat.PendingImages()))
	return nil
}

// Ask sends question about the active page and waits for the streamed answer.
func (a *App) Ask(ctx context.Context, question string) error {
	if !a.loggedIn {
		a.out.Println(msgLoginFirst)
		return nil
	}

	out, err := a.chat.Ask(ctx, question)
	switch {
	case errors.Is(err, dispatch.ErrEmptyInput):
		a.out.Println("Usage: ask <question>")
		return nil
	case errors.Is(err, dispatch.ErrBusy):
		a.out.Println("Still answering the previous question.")
		return err
	case err != nil:
		return a.fail(ctx, err)
	}

	if out.Reauth {
		a.requireLogin(ctx)
		return nil
	}
	if out.Kind != chatapi.Success {
		a.log.Debug(ctx, "question not answered", "kind", out.Kind.String())
	}
	return nil
}
