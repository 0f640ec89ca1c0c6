// Package services defines the business logic of the comic lifecycle:
// ingestion, fan-out publishing, vote collection and poll closing.
// This file centralizes the service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is done by the
// transport layers (internal/discordbot, internal/http).
package services

import "errors"

// Ingestion errors.
var (
	// ErrScrapeFailed indicates the comic source produced nothing usable.
	// The cycle is skipped and no comic row is fabricated.
	ErrScrapeFailed = errors.New("scrape failed")

	// ErrAlreadyPublished indicates the fetched comic is already recorded.
	// It is an expected outcome, not a failure.
	ErrAlreadyPublished = errors.New("comic already published")

	// ErrArtifactStore indicates the image bytes could not be written after
	// the comic row was created. The row stays; the bytes are rewritten on
	// the next attempt.
	ErrArtifactStore = errors.New("artifact store failed")
)

// Vote errors.
var (
	// ErrPollClosed is returned for votes on comics that no longer accept
	// ratings. Transports acknowledge the interaction and drop it.
	ErrPollClosed = errors.New("poll closed")

	// ErrInvalidRating is returned for ratings outside 1..5.
	ErrInvalidRating = errors.New("rating out of range")

	// ErrUnknownMessage is returned when the voted message is not a recorded
	// delivery of the comic.
	ErrUnknownMessage = errors.New("message is not a delivery of this comic")
)

// Guild and lookup errors.
var (
	// ErrGuildNotFound indicates the guild has no configuration row.
	ErrGuildNotFound = errors.New("guild not found")

	// ErrComicNotFound indicates the requested comic does not exist.
	ErrComicNotFound = errors.New("comic not found")

	// ErrInvalidRatingMode is returned for rating modes outside the enumeration.
	ErrInvalidRatingMode = errors.New("invalid rating mode")
)
