package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/chatflow-io/chatflow/pkg/audit"
	"github.com/chatflow-io/chatflow/pkg/correlation"
	"github.com/chatflow-io/chatflow/pkg/deployer"
	"github.com/chatflow-io/chatflow/pkg/engine"
	"github.com/chatflow-io/chatflow/pkg/eventbus"
	"github.com/chatflow-io/chatflow/pkg/executors"
	"github.com/chatflow-io/chatflow/pkg/gateway"
	"github.com/chatflow-io/chatflow/pkg/log"
	"github.com/chatflow-io/chatflow/pkg/persistence"
	"github.com/chatflow-io/chatflow/pkg/persistence/memory"
	"github.com/chatflow-io/chatflow/pkg/persistence/postgresql"
)

func main() {
	cmd := &cli.Command{
		Name:                  "chatflow",
		EnableShellCompletion: true,
		Usage:                 "Deploy and run chat-bot workflows from a watched folder",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workflows-folder",
				Aliases:  []string{"f"},
				Usage:    "Folder containing SWADL workflow files",
				Required: true,
				Sources:  cli.EnvVars("WORKFLOWS_FOLDER"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL URL for the versioned workflow store (in-memory when empty)",
				Value:   "",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("chatflow")

			logger.InfoContext(ctx, "Initializing chatflow")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var (
				store persistence.Store
				err   error
			)

			if databaseURL := command.String("database-url"); databaseURL != "" {
				store, err = postgresql.NewStore(ctx, logger, databaseURL)
				if err != nil {
					return err
				}
			} else {
				store = memory.NewStore()
			}

			defer func() {
				if err := store.Close(context.Background()); err != nil {
					logger.Error("Failed to close store", "error", err)
				}
			}()

			platform := gateway.NewLogging(logger)
			trail := audit.NewLogger(logger)
			registry := correlation.NewRegistry(logger)
			execs := executors.NewRegistry(platform, logger)

			eng := engine.New(logger, registry, execs, platform, trail, nil)

			bus := eventbus.NewGoChannel(logger)
			defer func() {
				if err := bus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			if err := bus.Subscribe(ctx, eng.OnEvent); err != nil {
				return err
			}

			dep := deployer.New(logger, eng, store, nil)
			if err := dep.Watch(ctx, command.String("workflows-folder")); err != nil {
				return err
			}

			<-ctx.Done()

			logger.Info("Shutting down")

			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
