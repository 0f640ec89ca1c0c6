// Package services – PublishService
//
// PublishService fans a freshly ingested comic out to every guild that has
// a channel configured. Each guild is an independent unit of work with its
// own deadline; a failure in one guild never affects another. Deliveries
// are recorded after the send succeeds, and a send that loses the race for
// the (guild, comic) slot is retracted.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-comic-bot/internal/domain"
	"github.com/tbourn/go-comic-bot/internal/gateway"
	"github.com/tbourn/go-comic-bot/internal/observability"
	"github.com/tbourn/go-comic-bot/internal/render"
	"github.com/tbourn/go-comic-bot/internal/repo"
)

// Delivery outcomes reported per guild.
const (
	DeliveryOK                = "ok"
	DeliveryChannelUnresolved = "channel_unresolved"
	DeliverySendFailed        = "send_failed"
	DeliveryConflict          = "conflict"
	DeliveryRecordFailed      = "record_failed"
)

// FanOutReport summarizes one fan-out.
type FanOutReport struct {
	ComicID uint
	// Results maps guild id to its delivery outcome.
	Results map[uint64]string
}

// Delivered counts guilds with a recorded delivery.
func (r FanOutReport) Delivered() int {
	n := 0
	for _, res := range r.Results {
		if res == DeliveryOK {
			n++
		}
	}
	return n
}

// PublishService delivers posts to all configured guilds.
type PublishService struct {
	Store    Store
	Gateway  gateway.ChatGateway
	Renderer *render.Renderer
	Open     *OpenSet
	Log      zerolog.Logger
	Retry    RetryPolicy

	// Concurrency bounds the number of guilds served at once.
	Concurrency int
	// DeliveryTimeout bounds each guild's resolve+send+record.
	DeliveryTimeout time.Duration
	// Notice is posted to every guild when the source fails.
	Notice string
}

// NewPublishService wires the defaults.
func NewPublishService(st Store, gw gateway.ChatGateway, r *render.Renderer, open *OpenSet, log zerolog.Logger) *PublishService {
	return &PublishService{
		Store:           st,
		Gateway:         gw,
		Renderer:        r,
		Open:            open,
		Log:             log,
		Retry:           DefaultRetry,
		Concurrency:     8,
		DeliveryTimeout: 30 * time.Second,
		Notice:          "botti rikki :/",
	}
}

// FanOut delivers comic to every configured guild and then marks it open
// for votes. It only fails when the guild list cannot be read.
func (s *PublishService) FanOut(ctx context.Context, comic *domain.Comic, image []byte) (FanOutReport, error) {
	tr := otel.Tracer("services/PublishService")
	ctx, span := tr.Start(ctx, "FanOut")
	span.SetAttributes(attribute.Int64("comic.id", int64(comic.ID)))
	defer span.End()

	report := FanOutReport{ComicID: comic.ID, Results: map[uint64]string{}}

	var guilds []domain.Guild
	err := retry(ctx, s.Retry, func() error {
		var err error
		guilds, err = s.Store.ListConfiguredGuilds(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return report, err
	}

	var mu sync.Mutex
	s.each(ctx, guilds, func(ctx context.Context, g domain.Guild) {
		res := s.deliver(ctx, comic, image, g)
		observability.Deliveries.WithLabelValues(res).Inc()
		mu.Lock()
		report.Results[g.GuildID] = res
		mu.Unlock()
	})

	s.Open.Add(comic.ID)
	span.SetAttributes(attribute.Int("guilds", len(guilds)), attribute.Int("delivered", report.Delivered()))
	s.Log.Info().
		Uint("comic_id", comic.ID).
		Int("guilds", len(guilds)).
		Int("delivered", report.Delivered()).
		Msg("fan-out finished")
	return report, nil
}

// AnnounceScrapeFailure posts the failure notice to every configured guild.
// Failures are logged and otherwise ignored.
func (s *PublishService) AnnounceScrapeFailure(ctx context.Context) error {
	guilds, err := s.Store.ListConfiguredGuilds(ctx)
	if err != nil {
		return err
	}
	post := s.Renderer.Notice(s.Notice)
	s.each(ctx, guilds, func(ctx context.Context, g domain.Guild) {
		if _, err := s.Gateway.Send(ctx, *g.ChannelID, post); err != nil {
			s.Log.Warn().Err(err).Uint64("guild_id", g.GuildID).Msg("scrape failure notice not sent")
		}
	})
	return nil
}

// each runs fn for every guild with bounded concurrency, giving each call
// its own deadline. fn never fails the group.
func (s *PublishService) each(ctx context.Context, guilds []domain.Guild, fn func(context.Context, domain.Guild)) {
	g := new(errgroup.Group)
	limit := s.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, guild := range guilds {
		if guild.ChannelID == nil {
			continue
		}
		guild := guild
		g.Go(func() error {
			gctx := ctx
			if s.DeliveryTimeout > 0 {
				var cancel context.CancelFunc
				gctx, cancel = context.WithTimeout(ctx, s.DeliveryTimeout)
				defer cancel()
			}
			fn(gctx, guild)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *PublishService) deliver(ctx context.Context, comic *domain.Comic, image []byte, g domain.Guild) string {
	channelID := *g.ChannelID
	log := s.Log.With().Uint("comic_id", comic.ID).Uint64("guild_id", g.GuildID).Uint64("channel_id", channelID).Logger()

	if err := s.Gateway.ResolveChannel(ctx, g.GuildID, channelID); err != nil {
		log.Warn().Err(err).Msg("channel not resolvable, skipping guild")
		return DeliveryChannelUnresolved
	}

	post := s.Renderer.ComicPost(*comic, image, g.RatingMode)
	msgID, err := s.Gateway.Send(ctx, channelID, post)
	if err != nil {
		log.Warn().Err(err).Msg("delivery failed")
		return DeliverySendFailed
	}

	// The record outlives the per-guild deadline: once the message exists it
	// must be either recorded or retracted.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.recordTimeout())
	defer cancel()
	err = retry(rctx, s.Retry, func() error {
		return s.Store.RecordMessage(rctx, g.GuildID, comic.ID, msgID, channelID)
	})
	if err == nil {
		return DeliveryOK
	}

	if errors.Is(err, repo.ErrConflict) {
		log.Warn().Uint64("message_id", msgID).Msg("guild already has this comic, retracting duplicate")
	} else {
		log.Error().Err(err).Uint64("message_id", msgID).Msg("recording delivery failed, retracting")
	}
	if derr := s.Gateway.Delete(rctx, channelID, msgID); derr != nil {
		log.Error().Err(derr).Uint64("message_id", msgID).Msg("retraction failed")
	}
	if errors.Is(err, repo.ErrConflict) {
		return DeliveryConflict
	}
	return DeliveryRecordFailed
}

func (s *PublishService) recordTimeout() time.Duration {
	if s.DeliveryTimeout > 0 {
		return s.DeliveryTimeout
	}
	return 30 * time.Second
}
