package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/boddenberg/hatacrm/internal/config"
	"github.com/boddenberg/hatacrm/internal/infra/observability"
	"github.com/boddenberg/hatacrm/internal/infra/postgres"
	"github.com/boddenberg/hatacrm/internal/infra/queue"
	"github.com/boddenberg/hatacrm/internal/infra/resilience"
	"github.com/boddenberg/hatacrm/internal/port"
	"github.com/boddenberg/hatacrm/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// env is what every command needs: validated config, a logger and metrics.
type env struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *observability.Metrics
	resilience resilience.Config
}

func loadEnv() (*env, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &env{
		cfg:     cfg,
		logger:  observability.NewLogger(cfg.LogLevel),
		metrics: observability.NewMetrics(),
		resilience: resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.RefreshMaxConcurrency,
		},
	}, nil
}

func (e *env) openDB(ctx context.Context) (*postgres.DB, error) {
	return postgres.Open(ctx, postgres.Config{
		URL:             e.cfg.DatabaseURL,
		MaxOpenConns:    e.cfg.DBMaxOpenConns,
		MaxIdleConns:    e.cfg.DBMaxIdleConns,
		ConnMaxLifetime: e.cfg.DBConnMaxLife,
	}, e.resilience, e.metrics, e.logger)
}

func (e *env) dialQueue(ctx context.Context) (*queue.Client, error) {
	if !e.cfg.AsyncRefreshEnabled() {
		return nil, errors.New("AMQP_URL is not set")
	}
	return queue.Dial(ctx, queue.Config{
		URL:      e.cfg.AMQPURL,
		Exchange: e.cfg.AMQPExchange,
		Queue:    e.cfg.AMQPQueue,
	}, e.resilience, e.metrics, e.logger)
}

// analytics builds the analytics service without a local read cache;
// publisher may be nil.
func (e *env) analytics(db *postgres.DB, publisher port.RefreshPublisher) *service.AnalyticsService {
	return service.NewAnalyticsService(db, nil, db, publisher,
		resilience.NewBulkhead(e.cfg.RefreshMaxConcurrency), e.metrics, e.logger)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply all pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.logger.Sync()
			return postgres.Migrate(e.cfg.DatabaseURL, e.logger)
		},
	}
}

// parseYears turns CLI arguments into years; no arguments means the
// current and the previous year.
func parseYears(args []string, now time.Time) ([]int, error) {
	if len(args) == 0 {
		return []int{now.Year() - 1, now.Year()}, nil
	}
	years := make([]int, 0, len(args))
	for _, a := range args {
		y, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", a)
		}
		years = append(years, y)
	}
	return years, nil
}

func refreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh [years...]",
		Short: "Recompute the analytics cache (default: current and previous year)",
		RunE: func(cmd *cobra.Command, args []string) error {
			queued, _ := cmd.Flags().GetBool("queue")

			years, err := parseYears(args, time.Now())
			if err != nil {
				return err
			}
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := e.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if queued {
				client, err := e.dialQueue(ctx)
				if err != nil {
					return err
				}
				defer client.Close()

				svc := e.analytics(db, client)
				for _, y := range years {
					accepted, err := svc.RequestRefresh(ctx, y)
					if err != nil {
						return fmt.Errorf("queue refresh %d: %w", y, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d: queued as %s\n", y, accepted.JobID)
				}
				return nil
			}

			results, err := e.analytics(db, nil).RefreshYears(ctx, years)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%d: %d keys in %dms\n", r.Year, len(r.Keys), r.DurationMs)
			}
			return nil
		},
	}
	cmd.Flags().Bool("queue", false, "publish refresh jobs to the broker instead of running them here")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume queued refresh jobs until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := e.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			client, err := e.dialQueue(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			svc := e.analytics(db, nil)
			err = client.ConsumeRefresh(ctx, svc.HandleRefreshJob)
			if errors.Is(err, context.Canceled) {
				e.logger.Info("worker stopped")
				return nil
			}
			return err
		},
	}
}
