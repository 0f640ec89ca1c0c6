// Package services – VoteService
//
// VoteService handles a rating button press: it checks the comic is still
// open, stores the user's rating (overwriting any previous one) and returns
// the post re-rendered from a fresh tally.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-comic-bot/internal/domain"
	"github.com/tbourn/go-comic-bot/internal/gateway"
	"github.com/tbourn/go-comic-bot/internal/observability"
	"github.com/tbourn/go-comic-bot/internal/render"
	"github.com/tbourn/go-comic-bot/internal/repo"
)

// VoteService implements the vote collector.
type VoteService struct {
	Store    Store
	Open     *OpenSet
	Renderer *render.Renderer
	Log      zerolog.Logger
	Retry    RetryPolicy
}

// NewVoteService wires the defaults.
func NewVoteService(st Store, open *OpenSet, r *render.Renderer, log zerolog.Logger) *VoteService {
	return &VoteService{Store: st, Open: open, Renderer: r, Log: log, Retry: DefaultRetry}
}

// Cast records in and returns the updated post for the voted message.
//
// Errors:
//   - ErrInvalidRating: rating outside 1..5.
//   - ErrPollClosed: the comic is unknown or no longer open.
//   - ErrUnknownMessage: the message is not a delivery of the comic.
func (s *VoteService) Cast(ctx context.Context, in gateway.Interaction) (*gateway.Post, error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "Cast")
	span.SetAttributes(
		attribute.Int64("comic.id", int64(in.ComicID)),
		attribute.Int("vote.rating", in.Rating),
	)
	defer span.End()

	if !domain.ValidRating(in.Rating) {
		observability.Votes.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidRating
	}

	open, err := s.isOpen(ctx, in.ComicID)
	if err != nil {
		observability.Votes.WithLabelValues("error").Inc()
		span.RecordError(err)
		return nil, err
	}
	if !open {
		observability.Votes.WithLabelValues("closed").Inc()
		return nil, ErrPollClosed
	}

	err = retry(ctx, s.Retry, func() error {
		return s.Store.UpsertVote(ctx, in.ComicID, in.UserID, in.Rating, in.MessageID)
	})
	if errors.Is(err, repo.ErrClosed) {
		// Closed between the open check and the write.
		s.Open.Remove(in.ComicID)
		observability.Votes.WithLabelValues("closed").Inc()
		return nil, ErrPollClosed
	}
	if errors.Is(err, repo.ErrIntegrity) {
		observability.Votes.WithLabelValues("invalid").Inc()
		return nil, ErrUnknownMessage
	}
	if err != nil {
		observability.Votes.WithLabelValues("error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("upsert vote: %w", err)
	}
	observability.Votes.WithLabelValues("ok").Inc()

	comic, err := s.Store.GetComic(ctx, in.ComicID)
	if err != nil {
		return nil, fmt.Errorf("load comic: %w", err)
	}
	tally, err := s.Store.TallyVotes(ctx, in.GuildID, in.ComicID)
	if err != nil {
		return nil, fmt.Errorf("tally votes: %w", err)
	}

	s.Log.Debug().
		Uint("comic_id", in.ComicID).
		Uint64("guild_id", in.GuildID).
		Uint64("message_id", in.MessageID).
		Int("rating", in.Rating).
		Msg("vote recorded")

	post := s.Renderer.VotePost(*comic, tally)
	return &post, nil
}

// isOpen consults the in-memory set first and falls back to the store on a
// miss. The set is only ever filled by Rebuild and publishing; UpsertVote
// re-checks the store either way.
func (s *VoteService) isOpen(ctx context.Context, comicID uint) (bool, error) {
	if s.Open.Contains(comicID) {
		return true, nil
	}
	var open bool
	err := retry(ctx, s.Retry, func() error {
		var err error
		open, err = s.Store.IsComicOpen(ctx, comicID)
		return err
	})
	if err != nil {
		return false, err
	}
	return open, nil
}
