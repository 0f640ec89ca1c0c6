// Package discordbot adapts the Discord API (via arikawa) to the
// gateway.ChatGateway contract and turns button presses into vote
// interactions. Outbound REST calls are paced with a leaky-bucket limiter.
package discordbot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	dgw "github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/diamondburned/arikawa/v3/utils/httputil"
	"github.com/diamondburned/arikawa/v3/utils/sendpart"
	"github.com/rs/zerolog"
	"go.uber.org/ratelimit"

	"github.com/tbourn/go-comic-bot/internal/gateway"
	"github.com/tbourn/go-comic-bot/internal/services"
)

// Discord JSON error codes that mean the target is gone.
const (
	codeUnknownChannel = 10003
	codeUnknownMessage = 10008
)

// restClient is the subset of the arikawa client the bot uses.
type restClient interface {
	Channel(id discord.ChannelID) (*discord.Channel, error)
	SendMessageComplex(channelID discord.ChannelID, data api.SendMessageData) (*discord.Message, error)
	EditMessageComplex(channelID discord.ChannelID, messageID discord.MessageID, data api.EditMessageData) (*discord.Message, error)
	DeleteMessage(channelID discord.ChannelID, messageID discord.MessageID, reason api.AuditLogReason) error
	RespondInteraction(id discord.InteractionID, token string, resp api.InteractionResponse) error
}

// Bot is a Discord connection implementing gateway.ChatGateway.
type Bot struct {
	state   *state.State
	client  func(ctx context.Context) restClient
	limiter ratelimit.Limiter
	log     zerolog.Logger

	readyOnce sync.Once
	ready     chan struct{}

	mu      sync.RWMutex
	onVote  gateway.InteractionHandler
	onGuild gateway.GuildHandler
}

var _ gateway.ChatGateway = (*Bot)(nil)

// New creates a bot for token. rps bounds outbound REST calls per second.
func New(token string, rps int, log zerolog.Logger) *Bot {
	s := state.New("Bot " + token)
	s.AddIntents(dgw.IntentGuilds)

	b := newBot(func(ctx context.Context) restClient { return s.WithContext(ctx) }, rps, log)
	b.state = s

	s.AddHandler(func(*dgw.ReadyEvent) { b.markReady() })
	s.AddHandler(func(e *dgw.GuildCreateEvent) { b.handleGuildCreate(e) })
	s.AddHandler(func(e *dgw.InteractionCreateEvent) { b.handleInteraction(e) })
	return b
}

func newBot(client func(ctx context.Context) restClient, rps int, log zerolog.Logger) *Bot {
	limiter := ratelimit.NewUnlimited()
	if rps > 0 {
		limiter = ratelimit.New(rps)
	}
	return &Bot{
		client:  client,
		limiter: limiter,
		log:     log,
		ready:   make(chan struct{}),
	}
}

// OnVote registers the handler for rating button presses.
func (b *Bot) OnVote(h gateway.InteractionHandler) {
	b.mu.Lock()
	b.onVote = h
	b.mu.Unlock()
}

// OnGuildJoin registers the handler called for every guild the bot is in.
func (b *Bot) OnGuildJoin(h gateway.GuildHandler) {
	b.mu.Lock()
	b.onGuild = h
	b.mu.Unlock()
}

// Open connects to the Discord gateway.
func (b *Bot) Open(ctx context.Context) error {
	if b.state == nil {
		return errors.New("discordbot: no session")
	}
	return b.state.Open(ctx)
}

// Close disconnects.
func (b *Bot) Close() error {
	if b.state == nil {
		return nil
	}
	return b.state.Close()
}

func (b *Bot) markReady() {
	b.readyOnce.Do(func() {
		close(b.ready)
		b.log.Info().Msg("discord session ready")
	})
}

// WaitReady blocks until the session received its READY event.
func (b *Bot) WaitReady(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", gateway.ErrNotReady, ctx.Err())
	}
}

func (b *Bot) ResolveChannel(ctx context.Context, guildID, channelID uint64) error {
	b.limiter.Take()
	ch, err := b.client(ctx).Channel(discord.ChannelID(channelID))
	if err != nil {
		return translate(err)
	}
	if uint64(ch.GuildID) != guildID {
		return fmt.Errorf("%w: channel %d is not in guild %d", gateway.ErrNotFound, channelID, guildID)
	}
	return nil
}

func (b *Bot) Send(ctx context.Context, channelID uint64, p gateway.Post) (uint64, error) {
	b.limiter.Take()
	msg, err := b.client(ctx).SendMessageComplex(discord.ChannelID(channelID), sendData(p))
	if err != nil {
		return 0, translate(err)
	}
	return uint64(msg.ID), nil
}

func (b *Bot) Edit(ctx context.Context, channelID, messageID uint64, p gateway.Post) error {
	b.limiter.Take()
	_, err := b.client(ctx).EditMessageComplex(discord.ChannelID(channelID), discord.MessageID(messageID), editData(p))
	return translate(err)
}

func (b *Bot) Delete(ctx context.Context, channelID, messageID uint64) error {
	b.limiter.Take()
	return translate(b.client(ctx).DeleteMessage(discord.ChannelID(channelID), discord.MessageID(messageID), ""))
}

func (b *Bot) handleGuildCreate(e *dgw.GuildCreateEvent) {
	b.mu.RLock()
	h := b.onGuild
	b.mu.RUnlock()
	if h != nil {
		h(context.Background(), uint64(e.ID))
	}
}

func (b *Bot) handleInteraction(e *dgw.InteractionCreateEvent) {
	btn, ok := e.Data.(*discord.ButtonInteraction)
	if !ok {
		return
	}
	comicID, rating, err := gateway.ParseWidgetID(string(btn.CustomID))
	if err != nil {
		return
	}

	in := gateway.Interaction{
		ComicID:   comicID,
		UserID:    uint64(e.SenderID()),
		Rating:    rating,
		GuildID:   uint64(e.GuildID),
		ChannelID: uint64(e.ChannelID),
	}
	if e.Message != nil {
		in.MessageID = uint64(e.Message.ID)
	}

	ctx := context.Background()
	resp := b.respond(ctx, in)
	if err := b.client(ctx).RespondInteraction(e.ID, e.Token, resp); err != nil {
		b.log.Warn().Err(err).Uint64("message_id", in.MessageID).Msg("interaction response failed")
	}
}

// respond runs the vote handler and picks the interaction response: the
// re-rendered message on success, a silent acknowledgement otherwise.
func (b *Bot) respond(ctx context.Context, in gateway.Interaction) api.InteractionResponse {
	ack := api.InteractionResponse{Type: api.DeferredMessageUpdate}

	b.mu.RLock()
	h := b.onVote
	b.mu.RUnlock()
	if h == nil {
		return ack
	}

	post, err := h(ctx, in)
	switch {
	case errors.Is(err, services.ErrPollClosed):
		return ack
	case err != nil:
		b.log.Warn().Err(err).
			Uint("comic_id", in.ComicID).
			Uint64("guild_id", in.GuildID).
			Uint64("message_id", in.MessageID).
			Msg("vote rejected")
		return ack
	case post == nil:
		return ack
	}

	embeds, components := messageParts(*post)
	return api.InteractionResponse{
		Type: api.UpdateMessage,
		Data: &api.InteractionResponseData{
			Embeds:     &embeds,
			Components: &components,
		},
	}
}

// translate maps "gone" API errors onto gateway.ErrNotFound.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var herr *httputil.HTTPError
	if errors.As(err, &herr) {
		if herr.Status == http.StatusNotFound || herr.Code == codeUnknownChannel || herr.Code == codeUnknownMessage {
			return fmt.Errorf("%w: %v", gateway.ErrNotFound, err)
		}
	}
	return err
}

func sendData(p gateway.Post) api.SendMessageData {
	embeds, components := messageParts(p)
	data := api.SendMessageData{
		Content:    p.Content,
		Embeds:     embeds,
		Components: components,
	}
	if p.Attachment != nil {
		data.Files = []sendpart.File{{
			Name:   p.Attachment.Name,
			Reader: bytes.NewReader(p.Attachment.Data),
		}}
	}
	return data
}

func editData(p gateway.Post) api.EditMessageData {
	embeds, components := messageParts(p)
	return api.EditMessageData{
		Embeds:     &embeds,
		Components: &components,
	}
}

func messageParts(p gateway.Post) ([]discord.Embed, discord.ContainerComponents) {
	var embeds []discord.Embed
	if p.Embed != nil {
		embeds = append(embeds, toEmbed(*p.Embed))
	}
	components := discord.ContainerComponents{}
	if p.Widget != nil {
		row := discord.ActionRowComponent{}
		for _, btn := range p.Widget.Buttons {
			row = append(row, &discord.ButtonComponent{
				Style:    discord.SecondaryButtonStyle(),
				CustomID: discord.ComponentID(btn.CustomID),
				Label:    btn.Label,
				Disabled: btn.Disabled,
			})
		}
		components = append(components, &row)
	}
	return embeds, components
}

func toEmbed(e gateway.Embed) discord.Embed {
	out := discord.Embed{
		Title: e.Title,
		Color: discord.Color(e.Color),
	}
	if e.ImageURL != "" {
		out.Image = &discord.EmbedImage{URL: e.ImageURL}
	}
	if e.Footer != "" {
		out.Footer = &discord.EmbedFooter{Text: e.Footer}
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, discord.EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}
