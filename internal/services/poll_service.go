// Package services – PollService
//
// PollService closes the rating window. For every delivered message of an
// open comic it edits the post to show the final local and global averages
// with the widget disabled, then closes, in one batch, exactly the comics
// whose messages were all finalized.
//
// Messages of guilds in RatingNone are skipped and do not count towards
// closing: a comic delivered only to such guilds stays open.
package services

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-comic-bot/internal/domain"
	"github.com/tbourn/go-comic-bot/internal/gateway"
	"github.com/tbourn/go-comic-bot/internal/observability"
	"github.com/tbourn/go-comic-bot/internal/render"
)

// CloseReport summarizes one closing run.
type CloseReport struct {
	// Closed lists the comics whose poll was closed, ascending.
	Closed []uint
	// Pending lists open comics left open because an edit failed, ascending.
	Pending []uint
	Edited  int
	Skipped int
	Failed  int
}

// PollService implements the poll closer.
type PollService struct {
	Store       Store
	Gateway     gateway.ChatGateway
	Renderer    *render.Renderer
	Open        *OpenSet
	Log         zerolog.Logger
	Retry       RetryPolicy
	Concurrency int
}

// NewPollService wires the defaults.
func NewPollService(st Store, gw gateway.ChatGateway, r *render.Renderer, open *OpenSet, log zerolog.Logger) *PollService {
	return &PollService{Store: st, Gateway: gw, Renderer: r, Open: open, Log: log, Retry: DefaultRetry, Concurrency: 8}
}

// Close runs one closing cycle.
func (s *PollService) Close(ctx context.Context) (CloseReport, error) {
	tr := otel.Tracer("services/PollService")
	ctx, span := tr.Start(ctx, "Close")
	defer span.End()

	var rows []domain.OpenComicRow
	err := retry(ctx, s.Retry, func() error {
		var err error
		rows, err = s.Store.ListOpenComicsWithMessages(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return CloseReport{}, err
	}

	var (
		mu        sync.Mutex
		report    CloseReport
		finalized = map[uint]bool{}
		failed    = map[uint]bool{}
		comics    = map[uint]*domain.Comic{}
	)

	g := new(errgroup.Group)
	g.SetLimit(max(s.Concurrency, 1))
	for _, row := range rows {
		switch row.RatingMode {
		case domain.RatingNone:
			report.Skipped++
			continue
		case domain.RatingWidget, domain.RatingSnoop:
		default:
			s.Log.Warn().Uint64("guild_id", row.GuildID).Int("rating_mode", int(row.RatingMode)).Msg("unknown rating mode, skipping message")
			report.Skipped++
			continue
		}

		row := row
		g.Go(func() error {
			comic, err := s.comic(ctx, &mu, comics, row.ComicID)
			if err == nil {
				err = s.finalize(ctx, comic, row)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				failed[row.ComicID] = true
				s.Log.Warn().Err(err).
					Uint("comic_id", row.ComicID).
					Uint64("guild_id", row.GuildID).
					Uint64("message_id", row.MessageID).
					Msg("finalizing message failed, comic stays open")
				return nil
			}
			report.Edited++
			finalized[row.ComicID] = true
			return nil
		})
	}
	_ = g.Wait()

	var toClose []uint
	for id := range finalized {
		if failed[id] {
			continue
		}
		toClose = append(toClose, id)
	}
	for id := range failed {
		report.Pending = append(report.Pending, id)
	}
	sort.Slice(toClose, func(i, j int) bool { return toClose[i] < toClose[j] })
	sort.Slice(report.Pending, func(i, j int) bool { return report.Pending[i] < report.Pending[j] })

	err = retry(ctx, s.Retry, func() error {
		_, err := s.Store.ClosePolls(ctx, toClose)
		return err
	})
	if err != nil {
		span.RecordError(err)
		s.Log.Error().Err(err).Int("comics", len(toClose)).Msg("closing polls failed")
		return report, err
	}
	s.Open.Remove(toClose...)
	observability.PollsClosed.Add(float64(len(toClose)))
	report.Closed = toClose

	span.SetAttributes(attribute.Int("closed", len(toClose)), attribute.Int("failed", report.Failed))
	s.Log.Info().
		Int("closed", len(report.Closed)).
		Int("pending", len(report.Pending)).
		Int("edited", report.Edited).
		Int("skipped", report.Skipped).
		Msg("poll close finished")
	return report, nil
}

func (s *PollService) finalize(ctx context.Context, comic *domain.Comic, row domain.OpenComicRow) error {
	tally, err := s.Store.TallyVotes(ctx, row.GuildID, row.ComicID)
	if err != nil {
		return err
	}
	post := s.Renderer.ClosedPost(*comic, row.RatingMode, tally)
	// A missing message is a failure like any other: the comic stays open.
	return s.Gateway.Edit(ctx, row.ChannelID, row.MessageID, post)
}

// comic loads a comic once per run.
func (s *PollService) comic(ctx context.Context, mu *sync.Mutex, cache map[uint]*domain.Comic, id uint) (*domain.Comic, error) {
	mu.Lock()
	c, ok := cache[id]
	mu.Unlock()
	if ok {
		return c, nil
	}
	c, err := s.Store.GetComic(ctx, id)
	if err != nil {
		return nil, err
	}
	mu.Lock()
	cache[id] = c
	mu.Unlock()
	return c, nil
}
