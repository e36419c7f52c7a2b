package chatapi

import (
	"context"
	"time"
)

// TokenSource yields a fresh id token.
type TokenSource interface {
	EnsureFresh(ctx context.Context, now time.Time) (string, error)
}

// Preloader adapts Client to the content gate's preload hook by attaching
// the current token to each call.
type Preloader struct {
	client *Client
	tokens TokenSource
}

func NewPreloader(client *Client, tokens TokenSource) *Preloader {
	return &Preloader{client: client, tokens: tokens}
}

func (p *Preloader) PreloadEmbeddings(ctx context.Context, pageContent, pageURL string) error {
	token, err := p.tokens.EnsureFresh(ctx, time.Now())
	if err != nil {
		return err
	}
	return p.client.PreloadEmbeddings(ctx, token, pageContent, pageURL)
}
