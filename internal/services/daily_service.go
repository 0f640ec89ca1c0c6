package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// DailyService runs the publishing cycle: ingest today's comic and fan it
// out, or announce the failure when the source has nothing.
type DailyService struct {
	Ingest  *IngestService
	Publish *PublishService
	Log     zerolog.Logger
}

// Run executes one cycle. An already-published comic is not an error.
func (s *DailyService) Run(ctx context.Context) (*FanOutReport, error) {
	in, err := s.Ingest.Ingest(ctx)
	switch {
	case errors.Is(err, ErrAlreadyPublished):
		s.Log.Info().Msg("comic already published, nothing to do")
		return nil, nil
	case errors.Is(err, ErrScrapeFailed):
		s.Log.Warn().Err(err).Msg("scrape failed, notifying guilds")
		if aerr := s.Publish.AnnounceScrapeFailure(ctx); aerr != nil {
			s.Log.Error().Err(aerr).Msg("scrape failure notice failed")
		}
		return nil, err
	case err != nil:
		s.Log.Error().Err(err).Msg("ingestion failed")
		return nil, err
	}

	report, err := s.Publish.FanOut(ctx, in.Comic, in.Image)
	if err != nil {
		s.Log.Error().Err(err).Uint("comic_id", in.Comic.ID).Msg("fan-out failed")
		return nil, err
	}
	return &report, nil
}
