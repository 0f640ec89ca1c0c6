package services

import (
	"context"

	"github.com/tbourn/go-comic-bot/internal/domain"
)

// Store is the persistence contract the services depend on. *repo.Store
// implements it; failures carry the repo error taxonomy (ErrDuplicate,
// ErrConflict, ErrIntegrity, ErrNotFound) and repo.IsTransient tells
// retryable errors apart.
type Store interface {
	InsertComicIfNew(ctx context.Context, c domain.Comic) (*domain.Comic, error)
	GetComic(ctx context.Context, id uint) (*domain.Comic, error)
	GetComicByFingerprint(ctx context.Context, fingerprint string) (*domain.Comic, error)
	GetComicByDate(ctx context.Context, date string) (*domain.Comic, error)
	GetRecentComics(ctx context.Context, n int) ([]domain.Comic, error)
	IsComicOpen(ctx context.Context, id uint) (bool, error)
	ListOpenComicIDs(ctx context.Context) ([]uint, error)
	ClosePolls(ctx context.Context, ids []uint) (int64, error)

	EnsureGuild(ctx context.Context, guildID uint64) error
	UpsertGuild(ctx context.Context, g domain.Guild) error
	GetGuild(ctx context.Context, guildID uint64) (*domain.Guild, error)
	ListConfiguredGuilds(ctx context.Context) ([]domain.Guild, error)

	RecordMessage(ctx context.Context, guildID uint64, comicID uint, messageID, channelID uint64) error
	DeleteMessage(ctx context.Context, guildID uint64, comicID uint) error
	ListOpenComicsWithMessages(ctx context.Context) ([]domain.OpenComicRow, error)

	UpsertVote(ctx context.Context, comicID uint, userID uint64, rating int, messageID uint64) error
	TallyVotes(ctx context.Context, guildID uint64, comicID uint) (domain.Tally, error)
}

// ComicSource yields the current strip. It returns domain.ErrNoComic when
// the source has nothing to offer.
type ComicSource interface {
	Fetch(ctx context.Context) (*domain.FetchedComic, error)
}

// ArtifactStore persists image bytes at deterministic paths.
type ArtifactStore interface {
	Path(date, sourceURL string, data []byte) string
	Write(path string, data []byte) error
	Exists(path string) (bool, error)
	Read(path string) ([]byte, error)
}
