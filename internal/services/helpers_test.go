package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/text/language"

	"github.com/tbourn/go-comic-bot/internal/artifact"
	"github.com/tbourn/go-comic-bot/internal/domain"
	"github.com/tbourn/go-comic-bot/internal/gateway"
	"github.com/tbourn/go-comic-bot/internal/render"
	"github.com/tbourn/go-comic-bot/internal/repo"
)

// ----- Store -----

func newTestStore(t *testing.T) *repo.Store {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "services.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return repo.NewStore(db)
}

func ptr[T any](v T) *T { return &v }

// ----- Fake source -----

type fakeSource struct {
	comic *domain.FetchedComic
	err   error
	calls int
}

func (f *fakeSource) Fetch(ctx context.Context) (*domain.FetchedComic, error) {
	f.calls++
	return f.comic, f.err
}

// ----- Fake gateway -----

type sentPost struct {
	ChannelID uint64
	MessageID uint64
	Post      gateway.Post
}

type fakeGateway struct {
	mu sync.Mutex

	nextID uint64
	sent   []sentPost
	edits  map[uint64]gateway.Post
	delets []uint64

	unresolved map[uint64]bool  // channel ids that fail ResolveChannel
	sendFail   map[uint64]bool  // channel ids whose Send fails
	sendBlock  map[uint64]bool  // channel ids whose Send blocks until ctx is done
	editFail   map[uint64]error // message ids whose Edit fails
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextID:     100,
		edits:      map[uint64]gateway.Post{},
		unresolved: map[uint64]bool{},
		sendFail:   map[uint64]bool{},
		sendBlock:  map[uint64]bool{},
		editFail:   map[uint64]error{},
	}
}

func (g *fakeGateway) WaitReady(ctx context.Context) error { return nil }

func (g *fakeGateway) ResolveChannel(ctx context.Context, guildID, channelID uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unresolved[channelID] {
		return gateway.ErrNotFound
	}
	return nil
}

func (g *fakeGateway) Send(ctx context.Context, channelID uint64, p gateway.Post) (uint64, error) {
	g.mu.Lock()
	block := g.sendBlock[channelID]
	fail := g.sendFail[channelID]
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if fail {
		return 0, errors.New("send failed")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.sent = append(g.sent, sentPost{ChannelID: channelID, MessageID: id, Post: p})
	return id, nil
}

func (g *fakeGateway) Edit(ctx context.Context, channelID, messageID uint64, p gateway.Post) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.editFail[messageID]; err != nil {
		return err
	}
	g.edits[messageID] = p
	return nil
}

func (g *fakeGateway) Delete(ctx context.Context, channelID, messageID uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delets = append(g.delets, messageID)
	return nil
}

func (g *fakeGateway) sentTo(channelID uint64) []sentPost {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []sentPost
	for _, s := range g.sent {
		if s.ChannelID == channelID {
			out = append(out, s)
		}
	}
	return out
}

// ----- Wiring -----

type harness struct {
	store   *repo.Store
	source  *fakeSource
	gw      *fakeGateway
	arts    *artifact.Store
	open    *OpenSet
	ingest  *IngestService
	publish *PublishService
	votes   *VoteService
	polls   *PollService
	daily   *DailyService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  newTestStore(t),
		source: &fakeSource{},
		gw:     newFakeGateway(),
		arts:   &artifact.Store{Fs: afero.NewMemMapFs(), Dir: "images"},
		open:   NewOpenSet(),
	}
	log := zerolog.Nop()
	r := render.New("", language.English)
	fast := RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

	h.ingest = NewIngestService(h.store, h.source, h.arts, log)
	h.ingest.Retry = fast
	// The raw bytes double as the fingerprint so tests can pick it.
	h.ingest.Fingerprint = func(b []byte) (string, error) { return string(b), nil }

	h.publish = NewPublishService(h.store, h.gw, r, h.open, log)
	h.publish.Retry = fast
	h.publish.DeliveryTimeout = 2 * time.Second

	h.votes = NewVoteService(h.store, h.open, r, log)
	h.votes.Retry = fast

	h.polls = NewPollService(h.store, h.gw, r, h.open, log)
	h.polls.Retry = fast

	h.daily = &DailyService{Ingest: h.ingest, Publish: h.publish, Log: log}
	return h
}

func (h *harness) guild(t *testing.T, id uint64, channel *uint64, mode domain.RatingMode) {
	t.Helper()
	if err := h.store.UpsertGuild(context.Background(), domain.Guild{GuildID: id, ChannelID: channel, RatingMode: mode}); err != nil {
		t.Fatalf("upsert guild: %v", err)
	}
}

func (h *harness) serve(fp, date string) {
	h.source.comic = &domain.FetchedComic{Date: date, URL: "https://cdn.test/" + fp + ".jpg", Bytes: []byte(fp)}
	h.source.err = nil
}
