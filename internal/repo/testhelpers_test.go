package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-comic-bot/internal/domain"
)

// newRepoDB opens a migrated temp-file SQLite database with foreign keys on.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("repo_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedComic(t *testing.T, db *gorm.DB, date, fp string) *domain.Comic {
	t.Helper()
	c, err := InsertComicIfNew(context.Background(), db, domain.Comic{
		PublishDate: date,
		Fingerprint: fp,
		SourceURL:   "https://example.test/" + fp + ".jpg",
		LocalPath:   "images/" + date + "_" + fp + ".jpg",
	})
	if err != nil {
		t.Fatalf("seed comic %s: %v", date, err)
	}
	return c
}

func seedGuild(t *testing.T, db *gorm.DB, guildID uint64, channelID *uint64, mode domain.RatingMode) {
	t.Helper()
	if err := UpsertGuild(context.Background(), db, domain.Guild{GuildID: guildID, ChannelID: channelID, RatingMode: mode}); err != nil {
		t.Fatalf("seed guild %d: %v", guildID, err)
	}
}

func ptr[T any](v T) *T { return &v }
