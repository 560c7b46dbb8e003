package eventsub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/chat-tender/chat"
)

// emoteURLTemplate resolves an emote id to its CDN image.
const emoteURLTemplate = "https://static-cdn.jtvnw.net/emoticons/v2/%s/default/dark/1.0"

// decodeChatMessage turns a channel.chat.message notification event into the
// domain message: display name, optional #RRGGBB color, ordered text/emote
// fragments with trailing whitespace trimmed off a final text fragment.
func decodeChatMessage(raw json.RawMessage) (chat.Message, error) {
	var ev chatMessageEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return chat.Message{}, fmt.Errorf("decode chat notification: %w", err)
	}

	m := chat.Message{
		ID:         ev.MessageID,
		SenderName: ev.ChatterUserName,
		Timestamp:  time.Now(),
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if c, ok := chat.ParseHexColor(ev.Color); ok {
		m.SenderColor = &c
	}

	for _, f := range ev.Message.Fragments {
		switch f.Type {
		case "text":
			m.Fragments = append(m.Fragments, chat.TextFragment(f.Text))
		case "emote":
			if f.Emote == nil {
				continue
			}
			url := fmt.Sprintf(emoteURLTemplate, f.Emote.ID)
			m.Fragments = append(m.Fragments, chat.EmoteFragment(f.Text, url, chat.EmoteSourceTwitch))
		default:
			// cheermotes, mentions etc. are not rendered yet
		}
	}
	m.TrimTrailingWhitespace()
	return m, nil
}
