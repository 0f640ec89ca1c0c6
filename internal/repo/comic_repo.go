// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Comic model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
//
// Functions:
//
//   - InsertComicIfNew(ctx, db, comic) -> *domain.Comic, error
//     Conditional insert; ErrDuplicate when the fingerprint or date exists.
//
//   - GetComic / GetComicByFingerprint(ctx, db, ...) -> *domain.Comic, error
//
//   - GetRecentComics(ctx, db, n) -> []domain.Comic, error
//     Most recent publish_date first.
//
//   - IsComicOpen(ctx, db, id) -> bool, error
//
//   - ListOpenComicIDs(ctx, db) -> []uint, error
//
//   - ClosePolls(ctx, db, ids) -> int64, error
//     Flips poll_closed for exactly the given ids; empty input is a no-op.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-comic-bot/internal/domain"
)

// InsertComicIfNew inserts c unless a comic with the same fingerprint or
// publish date already exists, in which case it returns ErrDuplicate and
// leaves the table untouched. The returned comic carries the new ID.
//
// ID and PollClosed of the argument are ignored: new comics always start
// open with a database-assigned identifier.
func InsertComicIfNew(ctx context.Context, db *gorm.DB, c domain.Comic) (*domain.Comic, error) {
	c.ID = 0
	c.PollClosed = false
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&c)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return nil, ErrDuplicate
		}
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicate
	}
	return &c, nil
}

// GetComic fetches a comic by ID, or ErrNotFound.
func GetComic(ctx context.Context, db *gorm.DB, id uint) (*domain.Comic, error) {
	var c domain.Comic
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetComicByFingerprint fetches a comic by its content fingerprint, or ErrNotFound.
func GetComicByFingerprint(ctx context.Context, db *gorm.DB, fingerprint string) (*domain.Comic, error) {
	var c domain.Comic
	if err := db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetComicByDate fetches the comic published on date (YYYY-MM-DD), or ErrNotFound.
func GetComicByDate(ctx context.Context, db *gorm.DB, date string) (*domain.Comic, error) {
	var c domain.Comic
	if err := db.WithContext(ctx).Where("publish_date = ?", date).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetRecentComics returns up to n comics ordered by publish date descending.
// A non-positive n yields an empty slice.
func GetRecentComics(ctx context.Context, db *gorm.DB, n int) ([]domain.Comic, error) {
	out := []domain.Comic{}
	if n <= 0 {
		return out, nil
	}
	err := db.WithContext(ctx).
		Order("publish_date DESC").
		Limit(n).
		Find(&out).Error
	return out, err
}

// IsComicOpen reports whether the comic exists and its poll is still open.
// A missing comic is reported as closed, not as an error.
func IsComicOpen(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	c, err := GetComic(ctx, db, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !c.PollClosed, nil
}

// ListOpenComicIDs returns the ids of every comic whose poll is open.
func ListOpenComicIDs(ctx context.Context, db *gorm.DB) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).
		Model(&domain.Comic{}).
		Where("poll_closed = ?", false).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// ClosePolls marks the given comics closed and returns how many rows
// actually flipped. Already-closed ids are left alone, so repeating the
// call is harmless.
func ClosePolls(ctx context.Context, db *gorm.DB, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.Comic{}).
		Where("id IN ? AND poll_closed = ?", ids, false).
		Update("poll_closed", true)
	return res.RowsAffected, res.Error
}
