package services

import (
	"context"
	"errors"

	"github.com/tbourn/go-comic-bot/internal/domain"
	"github.com/tbourn/go-comic-bot/internal/repo"
)

// ComicService serves read-only comic queries.
type ComicService struct {
	Store Store
	// MaxRecent caps Recent.
	MaxRecent int
}

// Recent returns up to limit comics, newest first. Non-positive or
// oversized limits are clamped to MaxRecent.
func (s *ComicService) Recent(ctx context.Context, limit int) ([]domain.Comic, error) {
	maxN := s.MaxRecent
	if maxN <= 0 {
		maxN = 30
	}
	if limit <= 0 || limit > maxN {
		limit = maxN
	}
	return s.Store.GetRecentComics(ctx, limit)
}

// Tally returns the vote counts of comicID as seen from guildID.
func (s *ComicService) Tally(ctx context.Context, comicID uint, guildID uint64) (domain.Tally, error) {
	if _, err := s.Store.GetComic(ctx, comicID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrComicNotFound
		}
		return nil, err
	}
	return s.Store.TallyVotes(ctx, guildID, comicID)
}
