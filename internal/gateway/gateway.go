// Package gateway describes the chat platform as the rest of the bot sees it:
// a place to send, edit and delete posts, plus a stream of vote interactions.
// Platform adapters (see internal/discordbot) implement ChatGateway; services
// and tests depend only on this package.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotFound reports that a channel or message no longer exists on the
	// platform.
	ErrNotFound = errors.New("gateway: not found")

	// ErrNotReady is returned by WaitReady when the connection could not be
	// established before the context expired.
	ErrNotReady = errors.New("gateway: not ready")
)

// ChatGateway is the outbound side of the chat platform.
type ChatGateway interface {
	// WaitReady blocks until the platform connection is usable.
	WaitReady(ctx context.Context) error

	// ResolveChannel checks that channelID exists and belongs to guildID.
	ResolveChannel(ctx context.Context, guildID, channelID uint64) error

	// Send posts p and returns the platform message id.
	Send(ctx context.Context, channelID uint64, p Post) (uint64, error)

	// Edit replaces the content of an existing message. Attachments already
	// on the message are kept. A deleted message yields ErrNotFound.
	Edit(ctx context.Context, channelID, messageID uint64, p Post) error

	// Delete removes a message.
	Delete(ctx context.Context, channelID, messageID uint64) error
}

// Interaction is a vote button press.
type Interaction struct {
	ComicID   uint
	UserID    uint64
	Rating    int
	MessageID uint64
	GuildID   uint64
	ChannelID uint64
}

// InteractionHandler processes a vote and returns the re-rendered post that
// should replace the voted message, or nil to leave it untouched.
type InteractionHandler func(ctx context.Context, in Interaction) (*Post, error)

// GuildHandler is notified when the bot becomes a member of a guild.
type GuildHandler func(ctx context.Context, guildID uint64)

// Post is a platform-neutral message.
type Post struct {
	Content    string
	Embed      *Embed
	Attachment *Attachment
	Widget     *Widget
}

// Embed is a rich card with an optional image and result fields.
type Embed struct {
	Title    string
	Color    int
	ImageURL string
	Footer   string
	Fields   []Field
}

// Field is one name/value row inside an embed.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Attachment is a file uploaded together with a post.
type Attachment struct {
	Name string
	Data []byte
}

// Widget is a row of rating buttons.
type Widget struct {
	Buttons []Button
}

// Button is one rating button. CustomID encodes comic and rating, see
// WidgetID.
type Button struct {
	CustomID string
	Label    string
	Disabled bool
}

const widgetPrefix = "rate"

// WidgetID builds the custom id carried by a rating button.
func WidgetID(comicID uint, rating int) string {
	return fmt.Sprintf("%s:%d:%d", widgetPrefix, comicID, rating)
}

// ParseWidgetID is the inverse of WidgetID.
func ParseWidgetID(id string) (comicID uint, rating int, err error) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] != widgetPrefix {
		return 0, 0, fmt.Errorf("gateway: not a rating widget id: %q", id)
	}
	c, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("gateway: bad comic id in %q: %w", id, err)
	}
	r, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("gateway: bad rating in %q: %w", id, err)
	}
	return uint(c), r, nil
}
