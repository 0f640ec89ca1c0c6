// Package services – GuildService
//
// GuildService manages per-guild configuration: creating the row when the
// bot joins, changing the channel or rating mode, and applying seed files.
package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-comic-bot/internal/domain"
	"github.com/tbourn/go-comic-bot/internal/repo"
)

// GuildService implements guild configuration use-cases.
type GuildService struct {
	Store Store
	Log   zerolog.Logger
}

// Join records that the bot is a member of guildID. Existing configuration
// is kept.
func (s *GuildService) Join(ctx context.Context, guildID uint64) error {
	if err := s.Store.EnsureGuild(ctx, guildID); err != nil {
		return err
	}
	s.Log.Debug().Uint64("guild_id", guildID).Msg("guild registered")
	return nil
}

// Configure sets the channel (nil disables posting) and rating mode.
func (s *GuildService) Configure(ctx context.Context, guildID uint64, channelID *uint64, mode domain.RatingMode) (*domain.Guild, error) {
	if !mode.Valid() {
		return nil, ErrInvalidRatingMode
	}
	g := domain.Guild{GuildID: guildID, ChannelID: channelID, RatingMode: mode}
	if err := s.Store.UpsertGuild(ctx, g); err != nil {
		return nil, err
	}
	s.Log.Info().Uint64("guild_id", guildID).Str("rating_mode", mode.String()).Msg("guild configured")
	return s.Get(ctx, guildID)
}

// Get returns a guild's configuration or ErrGuildNotFound.
func (s *GuildService) Get(ctx context.Context, guildID uint64) (*domain.Guild, error) {
	g, err := s.Store.GetGuild(ctx, guildID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrGuildNotFound
	}
	return g, err
}

// Seed applies a list of guild configurations, overwriting stored ones.
func (s *GuildService) Seed(ctx context.Context, guilds []domain.Guild) error {
	for _, g := range guilds {
		if _, err := s.Configure(ctx, g.GuildID, g.ChannelID, g.RatingMode); err != nil {
			return err
		}
	}
	return nil
}
