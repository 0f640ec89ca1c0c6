// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Vote model.
//
// Votes are keyed by (comic_id, user_id): re-voting overwrites the previous
// rating instead of adding a row. Tallies are computed by a single grouped
// statement so local and global counts come from the same snapshot.
package repo

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-comic-bot/internal/domain"
)

// UpsertVote records userID's rating of comicID cast through messageID.
// An existing vote by the same user on the same comic is overwritten
// (rating, message and timestamp); the last committed write wins.
//
// The open check and the write share one transaction, and the comic row is
// read with a share lock where the driver supports it, so a vote never lands
// after ClosePolls has committed.
//
// It returns ErrClosed when the comic is unknown or closed, and ErrIntegrity
// when the message does not exist, belongs to a different comic, or the
// rating is outside the accepted range.
func UpsertVote(ctx context.Context, db *gorm.DB, comicID uint, userID uint64, rating int, messageID uint64) error {
	if !domain.ValidRating(rating) {
		return ErrIntegrity
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comic domain.Comic
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("id", "poll_closed").
			Where("id = ?", comicID).
			Take(&comic).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClosed
		}
		if err != nil {
			return err
		}
		if comic.PollClosed {
			return ErrClosed
		}

		// Message rows are immutable. A concurrent rollback delete is still
		// caught by the foreign key.
		msg, err := GetMessageByID(ctx, tx, messageID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrIntegrity
		}
		if err != nil {
			return err
		}
		if msg.ComicID != comicID {
			return ErrIntegrity
		}

		v := &domain.Vote{
			ComicID:   comicID,
			UserID:    userID,
			Rating:    rating,
			MessageID: messageID,
			VotedAt:   time.Now().UTC(),
		}
		err = tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "comic_id"}, {Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"rating", "message_id", "voted_at"}),
			}).
			Create(v).Error
		if err != nil && isIntegrityViolation(err) {
			return ErrIntegrity
		}
		return err
	})
}

// GetVote fetches the live vote of userID on comicID, or ErrNotFound.
func GetVote(ctx context.Context, db *gorm.DB, comicID uint, userID uint64) (*domain.Vote, error) {
	var v domain.Vote
	if err := db.WithContext(ctx).Where("comic_id = ? AND user_id = ?", comicID, userID).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// CountVotes returns the number of vote rows for a comic.
func CountVotes(ctx context.Context, db *gorm.DB, comicID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Vote{}).Where("comic_id = ?", comicID).Count(&n).Error
	return n, err
}

// tallyRow is the scan target of the grouped tally statement.
type tallyRow struct {
	Rating      int
	LocalCount  int64
	GlobalCount int64
}

// TallyVotes returns, per rating value, the number of votes for comicID cast
// through guildID's message (local) and through any guild (global).
//
// Both counts come from one grouped statement, so they always describe the
// same snapshot of the vote table.
func TallyVotes(ctx context.Context, db *gorm.DB, guildID uint64, comicID uint) (domain.Tally, error) {
	query, args, err := sq.
		Select("v.rating AS rating").
		Column(sq.Expr("SUM(CASE WHEN m.guild_id = ? THEN 1 ELSE 0 END) AS local_count", guildID)).
		Column("COUNT(*) AS global_count").
		From("vote v").
		Join("message m ON m.message_id = v.message_id").
		Where(sq.Eq{"v.comic_id": comicID}).
		GroupBy("v.rating").
		OrderBy("v.rating ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []tallyRow
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(domain.Tally, len(rows))
	for _, r := range rows {
		out[r.Rating] = domain.TallyCount{Local: r.LocalCount, Global: r.GlobalCount}
	}
	return out, nil
}
