package chat

import (
	"testing"
)

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want RGB
		ok   bool
	}{
		{"valid white", "#FFFFFF", RGB{255, 255, 255}, true},
		{"valid mixed", "#1a2B3c", RGB{0x1a, 0x2b, 0x3c}, true},
		{"empty", "", RGB{}, false},
		{"missing hash", "FFFFFF", RGB{}, false},
		{"too short", "#FFF", RGB{}, false},
		{"too long", "#FFFFFFFF", RGB{}, false},
		{"not hex", "#zzzzzz", RGB{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseHexColor(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseHexColor(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseHexColor(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTrimTrailingWhitespace(t *testing.T) {
	m := Message{Fragments: []Fragment{
		TextFragment("hi "),
		TextFragment("hello   "),
	}}
	m.TrimTrailingWhitespace()
	if m.Fragments[0].Text != "hi " {
		t.Errorf("non-final fragment modified: %q", m.Fragments[0].Text)
	}
	if m.Fragments[1].Text != "hello" {
		t.Errorf("final fragment = %q, want %q", m.Fragments[1].Text, "hello")
	}
}

func TestTrimTrailingWhitespaceEmoteLast(t *testing.T) {
	m := Message{Fragments: []Fragment{
		TextFragment("gg "),
		EmoteFragment("Kappa", "https://cdn.example/kappa", EmoteSourceTwitch),
	}}
	m.TrimTrailingWhitespace()
	if m.Fragments[0].Text != "gg " {
		t.Errorf("text fragment before trailing emote was trimmed: %q", m.Fragments[0].Text)
	}
	if m.Fragments[1].Kind != FragmentEmote || m.Fragments[1].Emote.Name != "Kappa" {
		t.Errorf("trailing emote fragment modified: %+v", m.Fragments[1])
	}
}

func TestTrimTrailingWhitespaceEmpty(t *testing.T) {
	var m Message
	m.TrimTrailingWhitespace() // must not panic
}

func TestUserFor(t *testing.T) {
	c := RGB{1, 2, 3}
	withColor := UserFor(Message{SenderName: "alice", SenderColor: &c})
	if !withColor.HasColor || withColor.Color != c || withColor.Name != "alice" {
		t.Errorf("UserFor with color = %+v", withColor)
	}
	plain := UserFor(Message{SenderName: "bob"})
	if plain.HasColor {
		t.Errorf("UserFor without color = %+v", plain)
	}
	// Users are comparable so they can live in a set.
	if withColor == plain {
		t.Error("distinct users compare equal")
	}
}
