package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-comic-bot/internal/domain"
)

func TestGuildService_JoinConfigureSeed(t *testing.T) {
	st := newTestStore(t)
	s := &GuildService{Store: st, Log: zerolog.Nop()}
	ctx := context.Background()

	if _, err := s.Get(ctx, 1); !errors.Is(err, ErrGuildNotFound) {
		t.Fatalf("want ErrGuildNotFound, got %v", err)
	}
	if err := s.Join(ctx, 1); err != nil {
		t.Fatalf("Join: %v", err)
	}
	g, err := s.Get(ctx, 1)
	if err != nil || g.ChannelID != nil || g.RatingMode != domain.RatingWidget {
		t.Fatalf("joined guild: %+v %v", g, err)
	}

	g, err = s.Configure(ctx, 1, ptr[uint64](10), domain.RatingSnoop)
	if err != nil || *g.ChannelID != 10 || g.RatingMode != domain.RatingSnoop {
		t.Fatalf("configured guild: %+v %v", g, err)
	}
	if _, err := s.Configure(ctx, 1, nil, domain.RatingMode(9)); !errors.Is(err, ErrInvalidRatingMode) {
		t.Fatalf("want ErrInvalidRatingMode, got %v", err)
	}

	if err := s.Seed(ctx, []domain.Guild{
		{GuildID: 2, ChannelID: ptr[uint64](20), RatingMode: domain.RatingNone},
		{GuildID: 1, ChannelID: nil, RatingMode: domain.RatingWidget},
	}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	configured, _ := st.ListConfiguredGuilds(ctx)
	if len(configured) != 1 || configured[0].GuildID != 2 {
		t.Fatalf("configured after seed: %+v", configured)
	}
}

func TestComicService_RecentAndTally(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := &ComicService{Store: h.store, MaxRecent: 2}

	for i, fp := range []string{"a", "b", "c"} {
		h.serve(fp, "2024-05-0"+string(rune('1'+i)))
		if _, err := h.ingest.Ingest(ctx); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Recent(ctx, 0)
	if err != nil || len(got) != 2 || got[0].PublishDate != "2024-05-03" {
		t.Fatalf("Recent: %+v %v", got, err)
	}

	if _, err := s.Tally(ctx, 99, 1); !errors.Is(err, ErrComicNotFound) {
		t.Fatalf("want ErrComicNotFound, got %v", err)
	}
	tally, err := s.Tally(ctx, got[0].ID, 1)
	if err != nil || len(tally) != 0 {
		t.Fatalf("empty tally: %+v %v", tally, err)
	}
}
