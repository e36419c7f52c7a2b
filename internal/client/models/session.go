package models

import (
	"strings"
	"time"
)

// TurnKind tags one message unit of a transcript.
type TurnKind string

const (
	TurnUserText  TurnKind = "user_text"
	TurnUserImage TurnKind = "user_image"
	TurnBotText   TurnKind = "bot_text"
)

// Turn is one message in a transcript. Content is the text for text turns
// and the image URL for image turns. Its position in Session.Transcript is
// its conversation order.
type Turn struct {
	Kind    TurnKind
	Content string
}

func UserText(s string) Turn  { return Turn{Kind: TurnUserText, Content: s} }
func UserImage(s string) Turn { return Turn{Kind: TurnUserImage, Content: s} }
func BotText(s string) Turn   { return Turn{Kind: TurnBotText, Content: s} }

// Session is a conversation tracked both locally and by the backend.
type Session struct {
	ID            string
	Title         string
	CreatedAt     time.Time
	LastMessageAt time.Time
	Transcript    []Turn
	Snapshot      *PageContentSnapshot
}

// SessionSummary is one row of the remote session listing.
type SessionSummary struct {
	ID            string
	Title         string
	CreatedAt     time.Time
	LastMessageAt time.Time
	PageURL       string
	MessageCount  int
}

func upper(s string) string { return strings.ToUpper(s) }
