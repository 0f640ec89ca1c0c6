// Package domain defines the persistence models for comics, guilds, delivered
// messages, and votes. These types are mapped with GORM and form the core data
// layer of the comic bot; they are shared across the repository and service
// layers.
package domain

import "time"

// Comic represents one published strip instance. A comic row is created
// exactly once per distinct fingerprint and is never deleted; the only
// mutation is the one-way flip of PollClosed.
//
// Fields:
//   - ID: surrogate primary key assigned at first insert.
//   - PublishDate: calendar date (YYYY-MM-DD), unique.
//   - Fingerprint: content-derived image hash, unique; used for dedup.
//   - SourceURL / LocalPath: provenance of the image artifact.
//   - PollClosed: false at creation, set to true once by the poll closer.
//   - CreatedAt: timestamp managed by GORM.
type Comic struct {
	ID          uint      `json:"id"           gorm:"primaryKey"`
	PublishDate string    `json:"publish_date" gorm:"type:varchar(10);not null;uniqueIndex:ux_comic_publish_date"`
	Fingerprint string    `json:"fingerprint"  gorm:"type:varchar(128);not null;uniqueIndex:ux_comic_fingerprint"`
	SourceURL   string    `json:"source_url"   gorm:"type:text;not null"`
	LocalPath   string    `json:"local_path"   gorm:"type:text;not null"`
	PollClosed  bool      `json:"poll_closed"  gorm:"not null;index:idx_comic_poll_closed"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for Comic.
func (Comic) TableName() string { return "comic" }

// Guild is one chat community's subscription configuration. ChannelID stays
// nil until an administrator picks the channel comics are posted to.
type Guild struct {
	GuildID    uint64     `json:"guild_id"    gorm:"primaryKey;autoIncrement:false"`
	ChannelID  *uint64    `json:"channel_id"`
	RatingMode RatingMode `json:"rating_mode" gorm:"not null;check:rating_mode IN (0,1,2)"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Messages []Message `json:"-" gorm:"foreignKey:GuildID;references:GuildID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Guild.
func (Guild) TableName() string { return "guild" }

// Message links one comic's post in one guild to the delivered chat message.
// At most one row exists per (guild, comic); MessageID is globally unique.
//
// Fields:
//   - GuildID / ComicID: composite primary key.
//   - MessageID: external message handle returned by the chat gateway.
//   - ChannelID: channel the post went to; may differ from the guild's
//     current channel after reconfiguration.
//   - Comic: FK association. Neither the comic nor the owning guild (see
//     Guild.Messages) can be deleted while a message references it.
//   - Votes: votes cast through this message; deleted with it.
type Message struct {
	GuildID   uint64    `json:"guild_id"   gorm:"primaryKey;autoIncrement:false"`
	ComicID   uint      `json:"comic_id"   gorm:"primaryKey;autoIncrement:false;index:idx_message_comic"`
	MessageID uint64    `json:"message_id" gorm:"not null;uniqueIndex:ux_message_message_id"`
	ChannelID uint64    `json:"channel_id" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`

	Comic Comic  `json:"-" gorm:"foreignKey:ComicID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Votes []Vote `json:"-" gorm:"foreignKey:MessageID;references:MessageID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "message" }

// Vote is one user's rating of one comic. The (comic, user) pair is unique
// across all guilds: voting again overwrites Rating, MessageID and VotedAt.
// MessageID records which delivered post the latest vote came through and
// decides which guild counts the vote locally.
type Vote struct {
	ComicID   uint      `json:"comic_id"   gorm:"primaryKey;autoIncrement:false"`
	UserID    uint64    `json:"user_id"    gorm:"primaryKey;autoIncrement:false"`
	Rating    int       `json:"rating"     gorm:"not null;check:rating BETWEEN 1 AND 5"`
	MessageID uint64    `json:"message_id" gorm:"not null;index:idx_vote_message"`
	VotedAt   time.Time `json:"voted_at"   gorm:"not null"`

	Comic Comic `json:"-" gorm:"foreignKey:ComicID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "vote" }

// OpenComicRow is one delivered message of a comic whose poll is still open,
// joined with the owning guild's rating mode. It drives the poll closer.
type OpenComicRow struct {
	MessageID  uint64
	ChannelID  uint64
	GuildID    uint64
	ComicID    uint
	RatingMode RatingMode
}
