package models

import "time"

// Tab identifies the browser tab a query is about.
type Tab struct {
	ID  int
	URL string
}

// PageContentSnapshot is extracted page text tagged with the URL it was
// taken from. It may only be reused for a query on the same URL.
type PageContentSnapshot struct {
	Text        string
	SourceURL   string
	ExtractedAt time.Time
}

// Matches reports whether the snapshot was taken from url.
func (s PageContentSnapshot) Matches(url string) bool {
	return s.SourceURL != "" && s.SourceURL == url
}
