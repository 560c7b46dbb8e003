package chat

import (
	"context"
	"fmt"

	"github.com/onnwee/chat-tender/twitchapi"
)

// Client sends chat messages and announcements for the logged-in user. One
// instance lives inside the session state; it holds no mutable state of its
// own beyond the Helix client.
type Client struct {
	Helix *twitchapi.HelixClient
}

// NewClient builds a send client bound to a user token.
func NewClient(token *twitchapi.UserToken) *Client {
	return &Client{Helix: &twitchapi.HelixClient{Token: token}}
}

// SendMessage sends a regular chat message.
func (c *Client) SendMessage(ctx context.Context, broadcasterID, senderID, message string) error {
	if err := c.Helix.Send(ctx, twitchapi.SendRequest{
		Kind:          twitchapi.SendMessage,
		BroadcasterID: broadcasterID,
		SenderID:      senderID,
		Message:       message,
	}); err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}
	return nil
}

// SendAnnouncement sends a channel announcement. Requires broadcaster or
// moderator privileges; color defaults to primary.
func (c *Client) SendAnnouncement(ctx context.Context, broadcasterID, moderatorID, message string, color twitchapi.AnnouncementColor) error {
	if err := c.Helix.Send(ctx, twitchapi.SendRequest{
		Kind:          twitchapi.SendAnnouncement,
		BroadcasterID: broadcasterID,
		SenderID:      moderatorID,
		Message:       message,
		Color:         color,
	}); err != nil {
		return fmt.Errorf("send announcement: %w", err)
	}
	return nil
}
