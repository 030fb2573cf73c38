// Package platform defines the outbound boundary to the chat platform.
// The engine never talks to the platform SDK directly; it emits intents
// through the Messenger interface and a gateway process renders them as
// messages, buttons and role changes.
package platform

import "context"

// Messenger is the outbound chat transport.
type Messenger interface {
	// Reply edits or responds to the bound message in its channel.
	Reply(ctx context.Context, channelID, messageID, text string) error

	// ReplyPrivate sends a notice only the target user can see.
	ReplyPrivate(ctx context.Context, channelID, userID, text string) error

	// Announce posts a public message to the channel.
	Announce(ctx context.Context, channelID, text string) error

	// DirectMessage opens a private channel to the user and delivers
	// text. Fails if the user has disabled private messages.
	DirectMessage(ctx context.Context, userID, text string) error

	// GrantRole asks the platform to grant roleID to the user. The
	// platform may reject (missing permission, user left the guild).
	GrantRole(ctx context.Context, guildID, userID, roleID string) error

	// DisableControls edits the bound message, replacing its
	// interactive controls with the given final text.
	DisableControls(ctx context.Context, channelID, messageID, text string) error
}
