package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-comic-bot/internal/app"
	"github.com/tbourn/go-comic-bot/internal/config"
	"github.com/tbourn/go-comic-bot/internal/sysutil"
)

// env is filled by the root command before any subcommand runs.
type env struct {
	cfg config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	var (
		e        env
		logLevel string
	)
	root := &cobra.Command{
		Use:           "comicbot",
		Short:         "Daily comic distribution and rating bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = sysutil.SetupLogger(sysutil.FirstNonEmpty(logLevel, cfg.LogLevel), cfg.LogPretty, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		runCmd(&e),
		publishCmd(&e),
		closePollsCmd(&e),
		migrateCmd(&e),
		versionCmd(),
	)
	return root
}

func runCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord, serve the API and run the daily schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.cfg.RequireBot(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, e.cfg, e.log)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
}

func publishCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Fetch today's comic and post it to every configured guild",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.cfg.RequireBot(); err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), e.cfg, e.log)
			if err != nil {
				return err
			}
			report, err := a.PublishOnce(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if report == nil {
				fmt.Fprintln(out, "nothing new to publish")
				return nil
			}
			fmt.Fprintf(out, "comic %d delivered to %s of %s guilds\n",
				report.ComicID, humanize.Comma(int64(report.Delivered())), humanize.Comma(int64(len(report.Results))))
			return nil
		},
	}
}

func closePollsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "close-polls",
		Short: "Show final results on every open comic and close its poll",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.cfg.RequireBot(); err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), e.cfg, e.log)
			if err != nil {
				return err
			}
			report, err := a.ClosePollsOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "closed %d, pending %d, edited %d, skipped %d, failed %d\n",
				len(report.Closed), len(report.Pending), report.Edited, report.Skipped, report.Failed)
			return nil
		},
	}
}

func migrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.Migrate(e.cfg, e.log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		// No configuration needed.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), app.Version)
		},
	}
}
