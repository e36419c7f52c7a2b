package chatapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/quickpage/internal/client/models"
)

// Timestamp accepts epoch milliseconds, epoch seconds, numeric strings and
// RFC 3339 strings.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if n > 1e12 {
			t.Time = time.UnixMilli(int64(n))
		} else {
			t.Time = time.Unix(int64(n), 0)
		}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp %q", s)
}

type sessionRow struct {
	SessionID     string    `json:"session_id"`
	SessionTitle  string    `json:"sessionTitle"`
	CreatedAt     Timestamp `json:"createdAt"`
	LastMessageAt Timestamp `json:"lastMessageAt"`
	PageURL       string    `json:"pageURL"`
	MessageCount  int       `json:"messageCount"`
}

// ListSessions returns the caller's sessions in backend order.
func (c *Client) ListSessions(ctx context.Context, token string) ([]models.SessionSummary, error) {
	res, err := c.call(ctx, request{Action: ActionListSessions, AuthToken: token}, "")
	if err != nil {
		return nil, err
	}
	if err := asError(res); err != nil {
		return nil, err
	}

	var rows []sessionRow
	if raw, ok := res.Payload["sessions"]; ok {
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("%w: sessions: %v", ErrMalformed, err)
		}
	}

	out := make([]models.SessionSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.SessionSummary{
			ID:            r.SessionID,
			Title:         r.SessionTitle,
			CreatedAt:     r.CreatedAt.Time,
			LastMessageAt: r.LastMessageAt.Time,
			PageURL:       r.PageURL,
			MessageCount:  r.MessageCount,
		})
	}
	return out, nil
}

type messageRow struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	ImageURL string `json:"ImageURL"`
}

type sessionDetail struct {
	SessionTitle  string          `json:"sessionTitle"`
	CreatedAt     Timestamp       `json:"createdAt"`
	LastMessageAt Timestamp       `json:"lastMessageAt"`
	PageURL       string          `json:"pageURL"`
	PageContent   json.RawMessage `json:"pageContent"`
}

// GetSession fetches a transcript. Each stored exchange becomes a user turn
// (the image when one was sent, the question otherwise) and a bot turn.
func (c *Client) GetSession(ctx context.Context, token, sessionID string) (models.Session, error) {
	res, err := c.call(ctx, request{Action: ActionGetSession, AuthToken: token, SessionID: sessionID}, "messages")
	if err != nil {
		return models.Session{}, err
	}
	if err := asError(res); err != nil {
		return models.Session{}, err
	}

	var msgs []messageRow
	if err := json.Unmarshal(res.Payload["messages"], &msgs); err != nil {
		return models.Session{}, fmt.Errorf("%w: messages: %v", ErrMalformed, err)
	}

	s := models.Session{ID: sessionID}
	for _, m := range msgs {
		switch {
		case m.ImageURL != "":
			s.Transcript = append(s.Transcript, models.UserImage(m.ImageURL))
		case m.Question != "":
			s.Transcript = append(s.Transcript, models.UserText(m.Question))
		}
		if m.Answer != "" {
			s.Transcript = append(s.Transcript, models.BotText(m.Answer))
		}
	}

	if raw, ok := res.Payload["session"]; ok {
		var d sessionDetail
		if err := json.Unmarshal(raw, &d); err == nil {
			s.Title = d.SessionTitle
			s.CreatedAt = d.CreatedAt.Time
			s.LastMessageAt = d.LastMessageAt.Time
			if text := pageText(d.PageContent); text != "" {
				s.Snapshot = &models.PageContentSnapshot{Text: text, SourceURL: d.PageURL, ExtractedAt: s.LastMessageAt}
			}
		}
	}
	return s, nil
}

// pageText accepts page content stored either as a string or as {text}.
func pageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if s, ok := asString(raw); ok {
		return s
	}
	var pc PageContent
	if err := json.Unmarshal(raw, &pc); err == nil {
		return pc.Text
	}
	return ""
}
