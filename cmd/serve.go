package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/errandsync/internal/api"
	"github.com/errandsync/internal/attachments"
	"github.com/errandsync/internal/config"
	"github.com/errandsync/internal/conversation"
	"github.com/errandsync/internal/database"
	"github.com/errandsync/internal/errands"
	"github.com/errandsync/internal/events"
	"github.com/errandsync/internal/jobqueue"
	"github.com/errandsync/internal/messaging"
	syncengine "github.com/errandsync/internal/sync"
)

// ServeCommand returns the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the sync API server and job queue workers",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Override the configured server port",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if port := c.Int("port"); port != 0 {
		cfg.Server.Port = port
	}

	setupLogging(cfg)

	db, err := database.NewDB()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	pool, err := database.NewPool(ctx)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	defer pool.Close()

	conversations := conversation.NewPostgresStore(db)

	remote := messaging.NewHTTPClient(messaging.HTTPClientOptions{
		BaseURL:        cfg.Messaging.BaseURL,
		Token:          cfg.Messaging.Token,
		RequestTimeout: cfg.Messaging.RequestTimeout,
		PageSize:       cfg.Messaging.PageSize,
		RatePerSecond:  cfg.Messaging.RatePerSecond,
	})

	engine := syncengine.NewEngine(
		conversations,
		remote,
		attachments.NewPostgresStore(db),
		errands.NewPostgresStore(db),
		events.NewLogTrigger(db),
	)

	queueConfig := jobqueue.DefaultConfig()
	queueConfig.MaxWorkers = cfg.Queue.MaxWorkers

	queue, err := jobqueue.NewQueue(pool, engine, conversations, queueConfig)
	if err != nil {
		return fmt.Errorf("failed to create job queue: %w", err)
	}

	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := queue.Stop(stopCtx); err != nil {
			log.Error().Err(err).Msg("failed to stop job queue")
		}
	}()

	log.Info().Int("port", cfg.Server.Port).Msg("starting errandsync server")

	server := api.NewServer(cfg.Server.Port, engine, queue, conversations, cfg.Auth.Secret)
	return server.Start()
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
