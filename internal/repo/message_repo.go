// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model: the record of one comic delivered to one guild.
package repo

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-comic-bot/internal/domain"
)

// RecordMessage stores the delivery of comicID to guildID. A second record
// for the same (guild, comic) pair, or a reused message id, yields
// ErrConflict; an unknown guild or comic yields ErrIntegrity. Existing rows
// are never overwritten.
func RecordMessage(ctx context.Context, db *gorm.DB, guildID uint64, comicID uint, messageID, channelID uint64) error {
	m := &domain.Message{
		GuildID:   guildID,
		ComicID:   comicID,
		MessageID: messageID,
		ChannelID: channelID,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(m).Error; err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrConflict
		case isIntegrityViolation(err):
			return ErrIntegrity
		}
		return err
	}
	return nil
}

// DeleteMessage removes the record for (guildID, comicID). Used only to roll
// back a delivery. A missing row is not an error.
func DeleteMessage(ctx context.Context, db *gorm.DB, guildID uint64, comicID uint) error {
	return db.WithContext(ctx).
		Where("guild_id = ? AND comic_id = ?", guildID, comicID).
		Delete(&domain.Message{}).Error
}

// GetMessageByID fetches a message record by its external message id, or
// ErrNotFound.
func GetMessageByID(ctx context.Context, db *gorm.DB, messageID uint64) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("message_id = ?", messageID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessagesForComic returns every delivery of a comic ordered by guild.
func ListMessagesForComic(ctx context.Context, db *gorm.DB, comicID uint) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("comic_id = ?", comicID).
		Order("guild_id ASC").
		Find(&out).Error
	return out, err
}

// ListOpenComicsWithMessages returns one row per delivered message of every
// comic whose poll is still open, with the owning guild's current rating
// mode. Rows are ordered by comic, then guild.
func ListOpenComicsWithMessages(ctx context.Context, db *gorm.DB) ([]domain.OpenComicRow, error) {
	query, args, err := sq.
		Select("m.message_id", "m.channel_id", "m.guild_id", "m.comic_id", "g.rating_mode").
		From("message m").
		Join("comic c ON c.id = m.comic_id").
		Join("guild g ON g.guild_id = m.guild_id").
		Where(sq.Eq{"c.poll_closed": false}).
		OrderBy("m.comic_id ASC", "m.guild_id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	out := []domain.OpenComicRow{}
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
