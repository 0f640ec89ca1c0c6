// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Guild model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-comic-bot/internal/domain"
)

// EnsureGuild creates a guild row with no channel and the widget rating mode
// unless it already exists. Existing configuration is never touched.
func EnsureGuild(ctx context.Context, db *gorm.DB, guildID uint64) error {
	now := time.Now().UTC()
	g := &domain.Guild{GuildID: guildID, RatingMode: domain.RatingWidget, CreatedAt: now, UpdatedAt: now}
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(g).Error
}

// UpsertGuild inserts g or overwrites the channel and rating mode of an
// existing row.
func UpsertGuild(ctx context.Context, db *gorm.DB, g domain.Guild) error {
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"channel_id", "rating_mode", "updated_at"}),
	}).Create(&g).Error
}

// SetGuildChannel sets (or clears, when channelID is nil) the channel of a
// guild. It returns ErrNotFound if the guild does not exist.
func SetGuildChannel(ctx context.Context, db *gorm.DB, guildID uint64, channelID *uint64) error {
	res := db.WithContext(ctx).
		Model(&domain.Guild{}).
		Where("guild_id = ?", guildID).
		Updates(map[string]any{"channel_id": channelID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetGuildRatingMode changes the rating mode of a guild. It returns
// ErrNotFound if the guild does not exist.
func SetGuildRatingMode(ctx context.Context, db *gorm.DB, guildID uint64, mode domain.RatingMode) error {
	res := db.WithContext(ctx).
		Model(&domain.Guild{}).
		Where("guild_id = ?", guildID).
		Updates(map[string]any{"rating_mode": mode, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		if isIntegrityViolation(res.Error) {
			return ErrIntegrity
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetGuild fetches a guild by id, or ErrNotFound.
func GetGuild(ctx context.Context, db *gorm.DB, guildID uint64) (*domain.Guild, error) {
	var g domain.Guild
	if err := db.WithContext(ctx).Where("guild_id = ?", guildID).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// ListConfiguredGuilds returns every guild that has a channel configured,
// ordered by guild id.
func ListConfiguredGuilds(ctx context.Context, db *gorm.DB) ([]domain.Guild, error) {
	var out []domain.Guild
	err := db.WithContext(ctx).
		Where("channel_id IS NOT NULL").
		Order("guild_id ASC").
		Find(&out).Error
	return out, err
}
