package discordbot

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	dgw "github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/utils/httputil"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-comic-bot/internal/gateway"
	"github.com/tbourn/go-comic-bot/internal/services"
)

type fakeClient struct {
	mu        sync.Mutex
	channels  map[discord.ChannelID]discord.GuildID
	sent      []api.SendMessageData
	edited    []api.EditMessageData
	deleted   []discord.MessageID
	editErr   error
	responses []api.InteractionResponse
}

func (f *fakeClient) Channel(id discord.ChannelID) (*discord.Channel, error) {
	g, ok := f.channels[id]
	if !ok {
		return nil, &httputil.HTTPError{Status: http.StatusNotFound, Code: codeUnknownChannel}
	}
	return &discord.Channel{ID: id, GuildID: g}, nil
}

func (f *fakeClient) SendMessageComplex(_ discord.ChannelID, data api.SendMessageData) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return &discord.Message{ID: discord.MessageID(500 + len(f.sent))}, nil
}

func (f *fakeClient) EditMessageComplex(_ discord.ChannelID, _ discord.MessageID, data api.EditMessageData) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edited = append(f.edited, data)
	return &discord.Message{}, nil
}

func (f *fakeClient) DeleteMessage(_ discord.ChannelID, id discord.MessageID, _ api.AuditLogReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeClient) RespondInteraction(_ discord.InteractionID, _ string, resp api.InteractionResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func newTestBot(fc *fakeClient) *Bot {
	return newBot(func(context.Context) restClient { return fc }, 0, zerolog.Nop())
}

func samplePost(withWidget bool) gateway.Post {
	p := gateway.Post{
		Embed: &gateway.Embed{
			Title:    "Päivän Fingerpori",
			Color:    0x979C9F,
			ImageURL: "attachment://1.png",
			Footer:   "Fingerpori 01.05.2024",
			Fields:   []gateway.Field{{Name: "Tämä palvelin", Value: "4,00 (1 ääntä)", Inline: true}},
		},
		Attachment: &gateway.Attachment{Name: "1.png", Data: []byte("png")},
	}
	if withWidget {
		p.Widget = &gateway.Widget{}
		for r := 1; r <= 5; r++ {
			p.Widget.Buttons = append(p.Widget.Buttons, gateway.Button{
				CustomID: gateway.WidgetID(1, r),
				Label:    "x",
				Disabled: r == 5,
			})
		}
	}
	return p
}

func TestSendData_ConvertsPost(t *testing.T) {
	data := sendData(samplePost(true))

	if len(data.Embeds) != 1 {
		t.Fatalf("embeds = %d", len(data.Embeds))
	}
	e := data.Embeds[0]
	if e.Image == nil || e.Image.URL != "attachment://1.png" {
		t.Fatalf("image = %+v", e.Image)
	}
	if e.Footer == nil || e.Footer.Text != "Fingerpori 01.05.2024" {
		t.Fatalf("footer = %+v", e.Footer)
	}
	if e.Color != discord.Color(0x979C9F) {
		t.Fatalf("color = %v", e.Color)
	}
	if len(e.Fields) != 1 || !e.Fields[0].Inline {
		t.Fatalf("fields = %+v", e.Fields)
	}

	if len(data.Files) != 1 || data.Files[0].Name != "1.png" {
		t.Fatalf("files = %+v", data.Files)
	}
	b, _ := io.ReadAll(data.Files[0].Reader)
	if string(b) != "png" {
		t.Fatalf("file body = %q", b)
	}

	if len(data.Components) != 1 {
		t.Fatalf("components = %d", len(data.Components))
	}
	row, ok := data.Components[0].(*discord.ActionRowComponent)
	if !ok || len(*row) != 5 {
		t.Fatalf("row = %#v", data.Components[0])
	}
	last, ok := (*row)[4].(*discord.ButtonComponent)
	if !ok {
		t.Fatalf("button type %T", (*row)[4])
	}
	if string(last.CustomID) != "rate:1:5" || !last.Disabled {
		t.Fatalf("button = %+v", last)
	}
}

func TestSendData_NoWidgetNoComponents(t *testing.T) {
	data := sendData(samplePost(false))
	if len(data.Components) != 0 {
		t.Fatalf("components = %d", len(data.Components))
	}
}

func TestEditData_KeepsAttachments(t *testing.T) {
	data := editData(samplePost(true))
	if data.Embeds == nil || len(*data.Embeds) != 1 {
		t.Fatalf("embeds = %v", data.Embeds)
	}
	if data.Components == nil || len(*data.Components) != 1 {
		t.Fatalf("components = %v", data.Components)
	}
	if data.Attachments != nil || len(data.Files) != 0 {
		t.Fatal("edit must not touch attachments")
	}
}

func TestTranslate(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"nil", nil, false},
		{"404", &httputil.HTTPError{Status: http.StatusNotFound}, true},
		{"unknown message", &httputil.HTTPError{Status: http.StatusBadRequest, Code: codeUnknownMessage}, true},
		{"forbidden", &httputil.HTTPError{Status: http.StatusForbidden}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := translate(tc.err)
			if errors.Is(got, gateway.ErrNotFound) != tc.notFound {
				t.Fatalf("translate(%v) = %v", tc.err, got)
			}
			if tc.err == nil && got != nil {
				t.Fatalf("nil should stay nil, got %v", got)
			}
		})
	}
}

func TestResolveChannel(t *testing.T) {
	fc := &fakeClient{channels: map[discord.ChannelID]discord.GuildID{10: 1}}
	b := newTestBot(fc)
	ctx := context.Background()

	if err := b.ResolveChannel(ctx, 1, 10); err != nil {
		t.Fatalf("ResolveChannel: %v", err)
	}
	if err := b.ResolveChannel(ctx, 2, 10); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("foreign channel: %v", err)
	}
	if err := b.ResolveChannel(ctx, 1, 99); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("missing channel: %v", err)
	}
}

func TestSendEditDelete(t *testing.T) {
	fc := &fakeClient{}
	b := newTestBot(fc)
	ctx := context.Background()

	id, err := b.Send(ctx, 10, samplePost(true))
	if err != nil || id != 501 {
		t.Fatalf("Send = %d, %v", id, err)
	}
	if err := b.Edit(ctx, 10, id, samplePost(false)); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := b.Delete(ctx, 10, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(fc.deleted) != 1 || fc.deleted[0] != 501 {
		t.Fatalf("deleted = %v", fc.deleted)
	}

	fc.editErr = &httputil.HTTPError{Status: http.StatusNotFound, Code: codeUnknownMessage}
	if err := b.Edit(ctx, 10, id, samplePost(false)); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("Edit deleted message: %v", err)
	}
}

func TestWaitReady(t *testing.T) {
	b := newTestBot(&fakeClient{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := b.WaitReady(ctx); !errors.Is(err, gateway.ErrNotReady) {
		t.Fatalf("WaitReady before ready: %v", err)
	}

	b.markReady()
	b.markReady()
	if err := b.WaitReady(context.Background()); err != nil {
		t.Fatalf("WaitReady after ready: %v", err)
	}
}

func TestRespond(t *testing.T) {
	in := gateway.Interaction{ComicID: 1, UserID: 7, Rating: 4, MessageID: 501, GuildID: 1, ChannelID: 10}

	t.Run("no handler", func(t *testing.T) {
		b := newTestBot(&fakeClient{})
		if got := b.respond(context.Background(), in); got.Type != api.DeferredMessageUpdate {
			t.Fatalf("type = %v", got.Type)
		}
	})

	t.Run("accepted vote rerenders", func(t *testing.T) {
		b := newTestBot(&fakeClient{})
		var seen gateway.Interaction
		b.OnVote(func(_ context.Context, got gateway.Interaction) (*gateway.Post, error) {
			seen = got
			p := samplePost(true)
			return &p, nil
		})
		resp := b.respond(context.Background(), in)
		if resp.Type != api.UpdateMessage || resp.Data == nil {
			t.Fatalf("resp = %+v", resp)
		}
		if resp.Data.Embeds == nil || len(*resp.Data.Embeds) != 1 {
			t.Fatalf("embeds = %v", resp.Data.Embeds)
		}
		if seen != in {
			t.Fatalf("handler saw %+v", seen)
		}
	})

	t.Run("closed poll is acknowledged silently", func(t *testing.T) {
		b := newTestBot(&fakeClient{})
		b.OnVote(func(context.Context, gateway.Interaction) (*gateway.Post, error) {
			return nil, services.ErrPollClosed
		})
		if got := b.respond(context.Background(), in); got.Type != api.DeferredMessageUpdate {
			t.Fatalf("type = %v", got.Type)
		}
	})

	t.Run("rejected vote is acknowledged", func(t *testing.T) {
		b := newTestBot(&fakeClient{})
		b.OnVote(func(context.Context, gateway.Interaction) (*gateway.Post, error) {
			return nil, services.ErrInvalidRating
		})
		if got := b.respond(context.Background(), in); got.Type != api.DeferredMessageUpdate {
			t.Fatalf("type = %v", got.Type)
		}
	})
}

func TestGuildCreateNotifies(t *testing.T) {
	b := newTestBot(&fakeClient{})
	var got uint64
	b.OnGuildJoin(func(_ context.Context, id uint64) { got = id })

	b.handleGuildCreate(&dgw.GuildCreateEvent{Guild: discord.Guild{ID: 42}})
	if got != 42 {
		t.Fatalf("guild = %d", got)
	}
}
