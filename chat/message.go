// Package chat holds the chat domain model (messages, fragments, users) and
// the outbound send client built on the Helix API.
package chat

import (
	"fmt"
	"strings"
	"time"
)

// RGB is a sender color triple.
type RGB struct {
	R, G, B uint8
}

// ParseHexColor parses a "#RRGGBB" color string. Anything else (including
// empty, short, or missing '#') is treated as absent.
func ParseHexColor(s string) (RGB, bool) {
	if len(s) != 7 || s[0] != '#' {
		return RGB{}, false
	}
	var c RGB
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return RGB{}, false
	}
	return c, true
}

// EmoteSource identifies where an emote reference was resolved from.
type EmoteSource int

const (
	EmoteSourceTwitch EmoteSource = iota
)

// EmoteRef is a resolved emote inside a message.
type EmoteRef struct {
	Name   string
	URL    string
	Source EmoteSource
}

// FragmentKind tags a message fragment.
type FragmentKind int

const (
	FragmentText FragmentKind = iota
	FragmentEmote
)

// Fragment is one atomic piece of a chat message: literal text or a resolved
// emote reference.
type Fragment struct {
	Kind  FragmentKind
	Text  string
	Emote *EmoteRef
}

// TextFragment returns a text fragment.
func TextFragment(s string) Fragment {
	return Fragment{Kind: FragmentText, Text: s}
}

// EmoteFragment returns an emote fragment.
func EmoteFragment(name, url string, src EmoteSource) Fragment {
	return Fragment{Kind: FragmentEmote, Emote: &EmoteRef{Name: name, URL: url, Source: src}}
}

// Message is one inbound chat message.
type Message struct {
	ID          string
	SenderName  string
	SenderColor *RGB
	Fragments   []Fragment
	Timestamp   time.Time
}

// TrimTrailingWhitespace trims trailing whitespace off the final fragment if
// it is text; non-text trailing fragments are left untouched. Applied once at
// ingestion.
func (m *Message) TrimTrailingWhitespace() {
	if len(m.Fragments) == 0 {
		return
	}
	last := &m.Fragments[len(m.Fragments)-1]
	if last.Kind == FragmentText {
		last.Text = strings.TrimRight(last.Text, " \t\r\n")
	}
}

// User is a chatter as shown in the user list; unique by name and color.
type User struct {
	Name     string
	Color    RGB
	HasColor bool
}

// UserFor derives the user-list entry for a message sender.
func UserFor(m Message) User {
	u := User{Name: m.SenderName}
	if m.SenderColor != nil {
		u.Color = *m.SenderColor
		u.HasColor = true
	}
	return u
}
