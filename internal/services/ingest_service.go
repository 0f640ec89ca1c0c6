// Package services – IngestService
//
// IngestService turns one fetch from the comic source into at most one new
// comic row plus its image artifact. The row is the source of truth: bytes
// are written only after it exists, and a missing artifact is repaired by
// rewriting the bytes, never by inserting again.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tbourn/go-comic-bot/internal/domain"
	"github.com/tbourn/go-comic-bot/internal/fingerprint"
	"github.com/tbourn/go-comic-bot/internal/observability"
	"github.com/tbourn/go-comic-bot/internal/repo"
)

// Ingested is the outcome of a successful ingestion.
type Ingested struct {
	Comic *domain.Comic
	Image []byte
}

// IngestService coordinates source, fingerprinting, store and artifacts.
type IngestService struct {
	Store     Store
	Source    ComicSource
	Artifacts ArtifactStore
	Log       zerolog.Logger
	Retry     RetryPolicy

	// Fingerprint is replaceable in tests.
	Fingerprint func([]byte) (string, error)
}

// NewIngestService wires the defaults.
func NewIngestService(st Store, src ComicSource, arts ArtifactStore, log zerolog.Logger) *IngestService {
	return &IngestService{
		Store:       st,
		Source:      src,
		Artifacts:   arts,
		Log:         log,
		Retry:       DefaultRetry,
		Fingerprint: fingerprint.Of,
	}
}

// Ingest fetches the current strip and records it.
//
// Outcomes:
//   - ErrScrapeFailed: the source yielded nothing; nothing is written.
//   - ErrAlreadyPublished: the fingerprint or date is known; the artifact is
//     rewritten if it went missing.
//   - ErrArtifactStore: the row was created but the bytes could not be
//     written. The row stays.
//   - nil: a new, open comic and its bytes.
func (s *IngestService) Ingest(ctx context.Context) (*Ingested, error) {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "Ingest")
	defer span.End()

	fetched, err := s.Source.Fetch(ctx)
	if err == nil && (fetched == nil || len(fetched.Bytes) == 0) {
		err = domain.ErrNoComic
	}
	if err != nil {
		observability.ComicsIngested.WithLabelValues("scrape_failed").Inc()
		span.SetStatus(codes.Error, "scrape failed")
		return nil, fmt.Errorf("%w: %v", ErrScrapeFailed, err)
	}

	fp, err := s.Fingerprint(fetched.Bytes)
	if err != nil {
		observability.ComicsIngested.WithLabelValues("scrape_failed").Inc()
		return nil, fmt.Errorf("%w: fingerprint: %v", ErrScrapeFailed, err)
	}
	path := s.Artifacts.Path(fetched.Date, fetched.URL, fetched.Bytes)
	span.SetAttributes(attribute.String("comic.date", fetched.Date), attribute.String("comic.fingerprint", fp))

	var comic *domain.Comic
	err = retry(ctx, s.Retry, func() error {
		c, err := s.Store.InsertComicIfNew(ctx, domain.Comic{
			PublishDate: fetched.Date,
			Fingerprint: fp,
			SourceURL:   fetched.URL,
			LocalPath:   path,
		})
		comic = c
		return err
	})
	switch {
	case errors.Is(err, repo.ErrDuplicate):
		observability.ComicsIngested.WithLabelValues("duplicate").Inc()
		s.repairArtifact(ctx, fetched, fp)
		return nil, ErrAlreadyPublished
	case err != nil:
		observability.ComicsIngested.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert comic")
		return nil, fmt.Errorf("insert comic: %w", err)
	}

	if err := s.Artifacts.Write(comic.LocalPath, fetched.Bytes); err != nil {
		observability.ComicsIngested.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "artifact store")
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactStore, comic.LocalPath, err)
	}

	observability.ComicsIngested.WithLabelValues("new").Inc()
	s.Log.Info().
		Uint("comic_id", comic.ID).
		Str("date", comic.PublishDate).
		Str("path", comic.LocalPath).
		Str("size", humanize.Bytes(uint64(len(fetched.Bytes)))).
		Msg("comic ingested")
	return &Ingested{Comic: comic, Image: fetched.Bytes}, nil
}

// repairArtifact rewrites the stored bytes of an already-recorded comic
// when its file is missing. Failures are logged only.
func (s *IngestService) repairArtifact(ctx context.Context, fetched *domain.FetchedComic, fp string) {
	existing, err := s.Store.GetComicByFingerprint(ctx, fp)
	if errors.Is(err, repo.ErrNotFound) {
		existing, err = s.Store.GetComicByDate(ctx, fetched.Date)
	}
	if err != nil {
		s.Log.Warn().Err(err).Str("date", fetched.Date).Msg("duplicate comic lookup failed")
		return
	}
	if existing.Fingerprint != fp {
		// Same date, different strip: keep the recorded one untouched.
		return
	}

	ok, err := s.Artifacts.Exists(existing.LocalPath)
	if err != nil {
		s.Log.Warn().Err(err).Str("path", existing.LocalPath).Msg("artifact stat failed")
		return
	}
	if ok {
		return
	}
	if err := s.Artifacts.Write(existing.LocalPath, fetched.Bytes); err != nil {
		s.Log.Error().Err(err).Uint("comic_id", existing.ID).Str("path", existing.LocalPath).Msg("artifact repair failed")
		return
	}
	s.Log.Info().Uint("comic_id", existing.ID).Str("path", existing.LocalPath).Msg("artifact repaired")
}
