package handlers

import (
	"context"

	"github.com/tbourn/go-comic-bot/internal/domain"
	"github.com/tbourn/go-comic-bot/internal/services"
)

// ComicReader serves the read-only comic queries.
type ComicReader interface {
	Recent(ctx context.Context, limit int) ([]domain.Comic, error)
	Tally(ctx context.Context, comicID uint, guildID uint64) (domain.Tally, error)
}

// GuildConfigurer changes per-guild settings.
type GuildConfigurer interface {
	Configure(ctx context.Context, guildID uint64, channelID *uint64, mode domain.RatingMode) (*domain.Guild, error)
	Get(ctx context.Context, guildID uint64) (*domain.Guild, error)
}

// Publisher runs one ingest-and-publish cycle.
type Publisher interface {
	Run(ctx context.Context) (*services.FanOutReport, error)
}

// PollCloser runs one poll-closing cycle.
type PollCloser interface {
	Close(ctx context.Context) (services.CloseReport, error)
}

// Handlers groups the API endpoints.
type Handlers struct {
	comics    ComicReader
	guilds    GuildConfigurer
	publisher Publisher
	closer    PollCloser

	// DefaultLimit and MaxLimit bound GET /comics.
	DefaultLimit int
	MaxLimit     int
}

// New wires the handlers to their services.
func New(comics ComicReader, guilds GuildConfigurer, publisher Publisher, closer PollCloser) *Handlers {
	return &Handlers{
		comics:       comics,
		guilds:       guilds,
		publisher:    publisher,
		closer:       closer,
		DefaultLimit: 10,
		MaxLimit:     30,
	}
}
