package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/dig"

	"github.com/davidbz/hearth/internal/config"
	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/http"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/retention"
	"github.com/davidbz/hearth/internal/storage/redis"
)

const shutdownTimeout = 15 * time.Second

func execute() {
	rootCmd := &cobra.Command{
		Use:           "hearth",
		Short:         "Streaming chat service with conversation memory",
		Args:          cobra.NoArgs,
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPruneCmd())
	rootCmd.AddCommand(newSessionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the expiry sweeper",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove expired conversations once and exit",
		Args:  cobra.NoArgs,
		RunE:  runPrune,
	}
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored conversation ids",
		Args:  cobra.NoArgs,
		RunE:  runSessions,
	}
}

// withContainer builds the container, runs fn against it and releases
// acquired resources afterwards.
func withContainer(fn func(container *dig.Container) error) error {
	container, err := buildContainer()
	if err != nil {
		return err
	}

	runErr := fn(container)

	closeErr := container.Invoke(func(resources *closers) error {
		return resources.Close()
	})
	return errors.Join(runErr, closeErr)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withContainer(func(container *dig.Container) error {
		return container.Invoke(func(
			server *http.Server,
			sweeper *retention.Sweeper,
			memoryCfg *config.MemoryConfig,
			client *goredis.Client,
		) error {
			logger := observability.FromContext(ctx)
			logger.Info("conversation memory ready",
				observability.String("backend", memoryCfg.Backend),
				observability.Int("window", memoryCfg.Window))

			if memoryCfg.Backend == config.BackendRedis {
				if err := redis.Ping(ctx, client); err != nil {
					logger.Warn("redis unreachable, conversations will not be remembered", observability.Error(err))
				}
			}

			cancelSweeper := sweeper.Start(ctx)
			defer cancelSweeper()

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start(ctx)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return <-errCh
		})
	})
}

func runPrune(cmd *cobra.Command, _ []string) error {
	return withContainer(func(container *dig.Container) error {
		return container.Invoke(func(sweeper *retention.Sweeper) error {
			removed, err := sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired conversations\n", removed)
			return nil
		})
	})
}

func runSessions(cmd *cobra.Command, _ []string) error {
	return withContainer(func(container *dig.Container) error {
		return container.Invoke(func(memory *domain.ChatMemory) error {
			sessions, err := memory.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			for _, session := range sessions {
				fmt.Fprintln(cmd.OutOrStdout(), session)
			}
			return nil
		})
	})
}
