package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaughan-dsouza/postagg/internal/aggregate"
	"github.com/vaughan-dsouza/postagg/internal/db"
	apperrors "github.com/vaughan-dsouza/postagg/internal/errors"
	"github.com/vaughan-dsouza/postagg/internal/handlers"
	"github.com/vaughan-dsouza/postagg/internal/logging"
	"github.com/vaughan-dsouza/postagg/internal/utils"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve GET /posts and GET /posts/alt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), c)
		},
	}
}

func runServe(ctx context.Context, c *cli) error {
	a, err := newApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}

	h := handlers.NewHandler(a.agg, c.logger)
	srv := &http.Server{
		Addr: ":" + c.cfg.Port,
		Handler: handlers.NewRouter(h, handlers.RouterOptions{
			AccessSecret: c.cfg.AccessSecret,
			Logger:       c.logger,
			Metrics:      a.metrics,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("listening", logging.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		_ = a.close(context.Background())
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	c.logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		c.logger.Error("server forced to shutdown", err)
	}
	if err := a.close(shutdownCtx); err != nil {
		c.logger.Warn("worker pool did not drain", logging.Err(err))
	}

	c.logger.Info("server exited")
	return nil
}

func newAggregateCmd(c *cli) *cobra.Command {
	var (
		strategy string
		pretty   bool
	)

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Run one aggregation and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := aggregate.ParseStrategy(strategy)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			results, err := a.agg.Aggregate(ctx, s)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(results)
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", string(aggregate.StrategyPool), "fan-out strategy: pool or group")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	return cmd
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the posts, users and comments tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.DatabaseURL == "" {
				return apperrors.NewConfigError("DATABASE_URL is required to migrate")
			}

			ctx := cmd.Context()
			conn, err := db.Connect(ctx, c.cfg.DatabaseURL, poolOptions(c.cfg))
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.Migrate(ctx, conn); err != nil {
				return err
			}
			c.logger.Info("schema up to date")
			return nil
		},
	}
}

func newTokenCmd(c *cli) *cobra.Command {
	var (
		subject string
		ttl     string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the aggregation routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.AccessSecret == "" {
				return apperrors.NewConfigError("ACCESS_SECRET is required to mint tokens")
			}

			token, exp, err := utils.GenerateToken(subject, c.cfg.AccessSecret, ttl)
			if err != nil {
				return err
			}
			c.logger.Debug("token issued",
				logging.String("subject", subject),
				logging.Int64("expires_at", exp),
			)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "postagg-client", "token subject")
	cmd.Flags().StringVar(&ttl, "ttl", "15m", "token lifetime")
	return cmd
}
