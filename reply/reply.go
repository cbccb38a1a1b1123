// Package reply defines the platform-neutral outbound message model.
//
// Every component that talks back to the chat platform (command handlers,
// the PR linker, the waitlist watcher) builds a Message or a set of Cards.
// The discord package converts them into the platform's wire types.
package reply

import (
	"strconv"
	"time"
	"unicode/utf8"
)

// Platform display limits.
const (
	// MaxFields is the maximum number of fields a single card may carry.
	MaxFields = 25

	// MaxFieldValue is the maximum length of a single field value.
	MaxFieldValue = 1024

	// MaxCards is the maximum number of cards attached to one message.
	MaxCards = 10
)

// Brand colors used across Warden's cards.
const (
	ColorBrand   = 0x2AA58C
	ColorBlurple = 0x5865F2
	ColorGitHub  = 0x6E5494
	ColorWarning = 0xFFA500
	ColorTimeout = 0xFFFF00
	ColorSuccess = 0x00FF00
)

// Message is a single outbound reply.
type Message struct {
	// Content is the plain-text body.
	Content string

	// Cards are structured attachments rendered below the content.
	Cards []Card

	// Ephemeral marks the reply as visible only to the invoking caller.
	Ephemeral bool
}

// Card is a structured, styled message attachment.
type Card struct {
	Color        int
	Title        string
	URL          string
	Description  string
	Fields       []Field
	Footer       string
	FooterIcon   string
	ThumbnailURL string
	Timestamp    time.Time
}

// Field is a named value inside a Card.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Text returns an ephemeral plain-text message.
func Text(content string) Message {
	return Message{Content: content, Ephemeral: true}
}

// Public returns a message visible to the whole channel.
func Public(cards ...Card) Message {
	return Message{Cards: cards}
}

// AddField appends a field, returning false once the card is full.
func (c *Card) AddField(name, value string, inline bool) bool {
	if len(c.Fields) >= MaxFields {
		return false
	}
	c.Fields = append(c.Fields, Field{Name: name, Value: Truncate(value, MaxFieldValue), Inline: inline})
	return true
}

// Truncate shortens s to at most limit runes, marking the cut with "...".
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 3 {
		return string([]rune(s)[:limit])
	}
	return string([]rune(s)[:limit-3]) + "..."
}

// RelativeTime renders t in the platform's relative timestamp markup.
func RelativeTime(t time.Time) string {
	return "<t:" + strconv.FormatInt(t.Unix(), 10) + ":R>"
}

// Mention renders a user mention.
func Mention(userID string) string {
	return "<@" + userID + ">"
}
