package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-archiver/archive"
	"github.com/fuad-daoud/discord-archiver/archiver"
	"github.com/fuad-daoud/discord-archiver/config"
	statushttp "github.com/fuad-daoud/discord-archiver/http"
	"github.com/fuad-daoud/discord-archiver/integrations/custom_http"
	"github.com/fuad-daoud/discord-archiver/integrations/digitalocean"
	"github.com/fuad-daoud/discord-archiver/layers/db"
	"github.com/fuad-daoud/discord-archiver/logger/dlog"
	"github.com/fuad-daoud/discord-archiver/platform"
	"github.com/urfave/cli/v2"
	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := &cli.App{
		Name:  "discord-archiver",
		Usage: "Mirror Discord guild content into MySQL",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
		},
		DefaultCommand: "serve",
	}
	if err := app.Run(os.Args); err != nil {
		dlog.Error("Exiting", "err", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Connect to the gateway, archive live messages and serve /status",
		Action: func(c *cli.Context) error {
			return withRuntime(func(ctx context.Context, cfg *config.Config, conn *db.Connection) error {
				return serve(ctx, cfg, conn)
			})
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the archive tables",
		Action: func(c *cli.Context) error {
			return withRuntime(func(ctx context.Context, cfg *config.Config, conn *db.Connection) error {
				if err := archive.NewStore(conn).Migrate(ctx); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				dlog.Info("Archive tables are up to date")
				return nil
			})
		},
	}
}

// withRuntime loads config, sets up logging and the database, and runs f until SIGINT or SIGTERM.
func withRuntime(f func(ctx context.Context, cfg *config.Config, conn *db.Connection) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	stopLogs, err := dlog.Setup(dlog.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level, RotateCron: cfg.Archive.Cron})
	if err != nil {
		return err
	}
	defer stopLogs()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, db.Config{
		Host:         cfg.DB.Host,
		Port:         cfg.DB.Port,
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Name:         cfg.DB.Name,
		Charset:      cfg.DB.Charset,
		MaxOpenConns: cfg.DB.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			dlog.Error("Could not close database", "err", err)
		}
	}()
	return f(ctx, cfg, conn)
}

func serve(ctx context.Context, cfg *config.Config, conn *db.Connection) error {
	var owner snowflake.ID
	if cfg.OwnerID != "" {
		var err error
		if owner, err = snowflake.Parse(cfg.OwnerID); err != nil {
			return fmt.Errorf("invalid OWNER_ID %q: %w", cfg.OwnerID, err)
		}
	}

	store := archive.NewStore(conn)
	downloader := custom_http.NewClient(cfg.Attachment.Timeout, cfg.Attachment.Rate, cfg.Attachment.Retries)
	options := []archiver.Option{archiver.WithConcurrency(cfg.Attachment.Concurrency)}
	if cfg.Spaces.Bucket != "" {
		spaces, err := digitalocean.NewSpaces(digitalocean.Config{
			Endpoint: cfg.Spaces.Endpoint,
			Region:   cfg.Spaces.Region,
			Bucket:   cfg.Spaces.Bucket,
			Key:      cfg.Spaces.Key,
			Secret:   cfg.Spaces.Secret,
		})
		if err != nil {
			return err
		}
		options = append(options, archiver.WithMirror(spaces))
		dlog.Info("Mirroring attachments", "bucket", cfg.Spaces.Bucket)
	}

	// The handlers need the client's REST API, the client needs the handlers as listeners.
	handlers := &platform.Handlers{}
	client, err := platform.NewClient(cfg.Token, handlers)
	if err != nil {
		return err
	}
	archivist := archiver.New(platform.NewSource(client.Rest(), platform.CachedThreads(client.Caches())), store, downloader, options...)
	*handlers = *platform.NewHandlers(ctx, archivist, store.Counts, platform.NewNotifier(client.Rest(), owner))

	if err := client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	defer client.Close(context.Background())
	if err := platform.RegisterCommands(client.Rest(), client.ApplicationID()); err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return statushttp.Serve(ctx, cfg.Port, statushttp.NewRouter(store.Counts))
	})
	group.Go(func() error {
		<-ctx.Done()
		dlog.Info("Graceful shutdown")
		return nil
	})
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
