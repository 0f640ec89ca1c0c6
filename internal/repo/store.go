package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-comic-bot/internal/domain"
)

// Store binds the package-level repository functions to one *gorm.DB so
// services can depend on a small interface instead of a database handle.
type Store struct {
	DB *gorm.DB
}

// NewStore returns a Store over db.
func NewStore(db *gorm.DB) *Store { return &Store{DB: db} }

func (s *Store) InsertComicIfNew(ctx context.Context, c domain.Comic) (*domain.Comic, error) {
	return InsertComicIfNew(ctx, s.DB, c)
}

func (s *Store) GetComic(ctx context.Context, id uint) (*domain.Comic, error) {
	return GetComic(ctx, s.DB, id)
}

func (s *Store) GetComicByFingerprint(ctx context.Context, fingerprint string) (*domain.Comic, error) {
	return GetComicByFingerprint(ctx, s.DB, fingerprint)
}

func (s *Store) GetComicByDate(ctx context.Context, date string) (*domain.Comic, error) {
	return GetComicByDate(ctx, s.DB, date)
}

func (s *Store) GetRecentComics(ctx context.Context, n int) ([]domain.Comic, error) {
	return GetRecentComics(ctx, s.DB, n)
}

func (s *Store) IsComicOpen(ctx context.Context, id uint) (bool, error) {
	return IsComicOpen(ctx, s.DB, id)
}

func (s *Store) ListOpenComicIDs(ctx context.Context) ([]uint, error) {
	return ListOpenComicIDs(ctx, s.DB)
}

func (s *Store) ClosePolls(ctx context.Context, ids []uint) (int64, error) {
	return ClosePolls(ctx, s.DB, ids)
}

func (s *Store) EnsureGuild(ctx context.Context, guildID uint64) error {
	return EnsureGuild(ctx, s.DB, guildID)
}

func (s *Store) UpsertGuild(ctx context.Context, g domain.Guild) error {
	return UpsertGuild(ctx, s.DB, g)
}

func (s *Store) GetGuild(ctx context.Context, guildID uint64) (*domain.Guild, error) {
	return GetGuild(ctx, s.DB, guildID)
}

func (s *Store) ListConfiguredGuilds(ctx context.Context) ([]domain.Guild, error) {
	return ListConfiguredGuilds(ctx, s.DB)
}

func (s *Store) RecordMessage(ctx context.Context, guildID uint64, comicID uint, messageID, channelID uint64) error {
	return RecordMessage(ctx, s.DB, guildID, comicID, messageID, channelID)
}

func (s *Store) DeleteMessage(ctx context.Context, guildID uint64, comicID uint) error {
	return DeleteMessage(ctx, s.DB, guildID, comicID)
}

func (s *Store) ListOpenComicsWithMessages(ctx context.Context) ([]domain.OpenComicRow, error) {
	return ListOpenComicsWithMessages(ctx, s.DB)
}

func (s *Store) UpsertVote(ctx context.Context, comicID uint, userID uint64, rating int, messageID uint64) error {
	return UpsertVote(ctx, s.DB, comicID, userID, rating, messageID)
}

func (s *Store) TallyVotes(ctx context.Context, guildID uint64, comicID uint) (domain.Tally, error) {
	return TallyVotes(ctx, s.DB, guildID, comicID)
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
