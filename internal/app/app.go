// Package app assembles the bot from configuration: storage, the comic
// source, the chat gateway, the services, the daily schedule and the
// operator API. The cmd layer only parses flags and calls into it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-comic-bot/internal/artifact"
	"github.com/tbourn/go-comic-bot/internal/config"
	"github.com/tbourn/go-comic-bot/internal/discordbot"
	"github.com/tbourn/go-comic-bot/internal/gateway"
	httpapi "github.com/tbourn/go-comic-bot/internal/http"
	"github.com/tbourn/go-comic-bot/internal/http/handlers"
	"github.com/tbourn/go-comic-bot/internal/observability"
	"github.com/tbourn/go-comic-bot/internal/render"
	"github.com/tbourn/go-comic-bot/internal/repo"
	"github.com/tbourn/go-comic-bot/internal/scheduler"
	"github.com/tbourn/go-comic-bot/internal/scraper"
	"github.com/tbourn/go-comic-bot/internal/services"
)

// Version is stamped at build time.
var Version = "dev"

const (
	readyTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Bot is the chat platform connection: the outbound gateway plus the
// inbound event hooks and its lifecycle.
type Bot interface {
	gateway.ChatGateway
	OnVote(h gateway.InteractionHandler)
	OnGuildJoin(h gateway.GuildHandler)
	Open(ctx context.Context) error
	Close() error
}

// Application owns every long-lived component.
type Application struct {
	cfg   config.Config
	log   zerolog.Logger
	db    *gorm.DB
	store *repo.Store
	open  *services.OpenSet
	bot   Bot

	daily  *services.DailyService
	polls  *services.PollService
	votes  *services.VoteService
	guilds *services.GuildService
	comics *services.ComicService
}

// New builds the application with the Discord gateway.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Application, error) {
	bot := discordbot.New(cfg.Discord.Token, cfg.Discord.RPS, log.With().Str("component", "discord").Logger())
	return NewWithBot(ctx, cfg, log, bot)
}

// NewWithBot builds the application around bot. It opens and migrates the
// database, applies the guild seed file and loads the open-comic set. The
// bot is wired but not connected.
func NewWithBot(ctx context.Context, cfg config.Config, log zerolog.Logger, bot Bot) (*Application, error) {
	db, err := openDB(cfg, log)
	if err != nil {
		return nil, err
	}
	a := &Application{cfg: cfg, log: log, db: db, store: repo.NewStore(db), open: services.NewOpenSet(), bot: bot}

	seeds, err := config.LoadGuilds(cfg.GuildsFile)
	if err != nil {
		_ = a.closeDB()
		return nil, err
	}

	loc := cfg.Schedule.Location()
	renderer := render.New(cfg.Publish.Title, cfg.Publish.Tag())
	client := &http.Client{Timeout: cfg.Source.Timeout}
	src := scraper.NewScraper(client, cfg.Source.URL, cfg.Source.UserAgent, loc)
	arts := artifact.NewOsStore(cfg.ImageDir)

	ingest := services.NewIngestService(a.store, src, arts, log.With().Str("component", "ingest").Logger())
	publish := services.NewPublishService(a.store, bot, renderer, a.open, log.With().Str("component", "publish").Logger())
	publish.Concurrency = cfg.Publish.Concurrency
	publish.DeliveryTimeout = cfg.Publish.DeliveryTimeout
	publish.Notice = cfg.Publish.ScrapeFailedNotice

	a.daily = &services.DailyService{Ingest: ingest, Publish: publish, Log: log.With().Str("component", "daily").Logger()}
	a.polls = services.NewPollService(a.store, bot, renderer, a.open, log.With().Str("component", "polls").Logger())
	a.votes = services.NewVoteService(a.store, a.open, renderer, log.With().Str("component", "votes").Logger())
	a.guilds = &services.GuildService{Store: a.store, Log: log.With().Str("component", "guilds").Logger()}
	a.comics = &services.ComicService{Store: a.store, MaxRecent: cfg.RecentLimit}

	if err := a.guilds.Seed(ctx, seeds); err != nil {
		_ = a.closeDB()
		return nil, fmt.Errorf("seed guilds: %w", err)
	}
	if err := a.open.Rebuild(ctx, a.store); err != nil {
		_ = a.closeDB()
		return nil, fmt.Errorf("load open comics: %w", err)
	}

	bot.OnVote(a.votes.Cast)
	bot.OnGuildJoin(func(ctx context.Context, guildID uint64) {
		if err := a.guilds.Join(ctx, guildID); err != nil {
			a.log.Error().Err(err).Uint64("guild_id", guildID).Msg("guild join not recorded")
		}
	})

	log.Info().
		Str("db_driver", cfg.DB.Driver).
		Int("seeded_guilds", len(seeds)).
		Str("post_time", cfg.Schedule.PostTime).
		Str("timezone", loc.String()).
		Msg("application initialised")
	return a, nil
}

// Migrate opens the database, applies the schema and closes it again.
func Migrate(cfg config.Config, log zerolog.Logger) error {
	db, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		return sqlDB.Close()
	}
	return nil
}

func openDB(cfg config.Config, log zerolog.Logger) (*gorm.DB, error) {
	dsn := cfg.DB.Path
	if cfg.DB.Driver == repo.DriverPostgres {
		dsn = cfg.DB.DSN
	}
	db, err := repo.OpenDatabase(cfg.DB.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug().Str("driver", cfg.DB.Driver).Msg("database ready")
	return db, nil
}

// Handler returns the operator API.
func (a *Application) Handler() http.Handler {
	gin.SetMode(a.cfg.GinMode)
	r := gin.New()
	h := handlers.New(a.comics, a.guilds, a.daily, a.polls)
	if a.cfg.RecentLimit > 0 {
		h.MaxLimit = a.cfg.RecentLimit
	}
	httpapi.RegisterRoutes(r, h, a.cfg)
	return r
}

// Jobs returns the two daily jobs: publish at POST_TIME and close
// CLOSE_OFFSET earlier.
func (a *Application) Jobs() ([]scheduler.Job, error) {
	hour, minute, err := config.ParseClock(a.cfg.Schedule.PostTime)
	if err != nil {
		return nil, err
	}
	post := scheduler.TimeOfDay{Hour: hour, Minute: minute}
	return []scheduler.Job{
		{Name: "close-polls", At: post.Minus(a.cfg.Schedule.CloseOffset), Run: func(ctx context.Context) error {
			_, err := a.polls.Close(ctx)
			return err
		}},
		{Name: "publish", At: post, Run: func(ctx context.Context) error {
			_, err := a.daily.Run(ctx)
			return err
		}},
	}, nil
}

// Run connects the gateway, starts the schedule and the HTTP server, and
// blocks until ctx is cancelled or a component fails. Everything is closed
// on return.
func (a *Application) Run(ctx context.Context) error {
	shutdownTracing, err := observability.SetupTracing(ctx, a.cfg.OTEL, Version)
	if err != nil {
		_ = a.closeDB()
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			a.log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	jobs, err := a.Jobs()
	if err != nil {
		_ = a.closeDB()
		return err
	}
	if err := a.bot.Open(ctx); err != nil {
		_ = a.closeDB()
		return fmt.Errorf("open gateway: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.Handler(),
		ReadTimeout:       a.cfg.ReadTimeout,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}
	sched := scheduler.New(a.cfg.Schedule.Location(), a.bot.WaitReady, a.log.With().Str("component", "scheduler").Logger())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx, jobs...) })
	g.Go(func() error {
		a.log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	a.log.Info().Msg("shutting down")
	if cerr := a.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// PublishOnce connects, runs one publishing cycle and releases every
// resource. The application cannot be reused afterwards.
func (a *Application) PublishOnce(ctx context.Context) (*services.FanOutReport, error) {
	if err := a.connect(ctx); err != nil {
		return nil, err
	}
	defer a.Close()
	return a.daily.Run(ctx)
}

// ClosePollsOnce connects, closes every open poll and releases every
// resource.
func (a *Application) ClosePollsOnce(ctx context.Context) (services.CloseReport, error) {
	if err := a.connect(ctx); err != nil {
		return services.CloseReport{}, err
	}
	defer a.Close()
	return a.polls.Close(ctx)
}

func (a *Application) connect(ctx context.Context) error {
	if err := a.bot.Open(ctx); err != nil {
		_ = a.closeDB()
		return fmt.Errorf("open gateway: %w", err)
	}
	rctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := a.bot.WaitReady(rctx); err != nil {
		_ = a.Close()
		return err
	}
	return nil
}

// Close disconnects the gateway and closes the database.
func (a *Application) Close() error {
	return errors.Join(a.bot.Close(), a.closeDB())
}

func (a *Application) closeDB() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
