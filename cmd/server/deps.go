package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	contactmetrics "contactlink/internal/contact/metrics"
	"contactlink/internal/contact/ports"
	"contactlink/internal/contact/service"
	contactstore "contactlink/internal/contact/store/contact"
	"contactlink/internal/contact/store/contact/migrations"
	"contactlink/internal/platform/config"
	"contactlink/internal/platform/logger"
	platformredis "contactlink/internal/platform/redis"
	audit "contactlink/pkg/platform/audit"
	"contactlink/pkg/platform/audit/publisher"
	"contactlink/pkg/platform/audit/store/kafka"
	auditmemory "contactlink/pkg/platform/audit/store/memory"
	auditpostgres "contactlink/pkg/platform/audit/store/postgres"
	"contactlink/pkg/platform/circuit"
)

const (
	dependencyTimeout = 10 * time.Second
	kafkaPartitions   = 3
)

// deps holds the long-lived resources shared by the subcommands.
type deps struct {
	cfg    *config.Config
	logger *slog.Logger

	db        *sqlx.DB
	redis     *platformredis.Client
	kafka     *kafka.Sink
	publisher *publisher.Publisher
	contacts  *service.Service

	closers []func() error
}

// loadBase reads configuration and builds the logger. Every subcommand
// starts here.
func loadBase(opts *rootOptions, logOut io.Writer) (*config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.Load(opts.EnvFiles...)
	if err != nil {
		return nil, nil, nil, err
	}
	log, syncLog, err := logger.New(cfg.Log, logOut)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, syncLog, nil
}

// connect dials the configured backing services concurrently. Unconfigured
// services are left nil.
func connect(ctx context.Context, cfg *config.Config, log *slog.Logger) (*deps, error) {
	d := &deps{cfg: cfg, logger: log}

	ctx, cancel := context.WithTimeout(ctx, dependencyTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Database.UsePostgres() {
		g.Go(func() error {
			db, err := openPostgres(gctx, cfg.Database)
			if err != nil {
				return err
			}
			d.db = db
			return nil
		})
	}
	g.Go(func() error {
		client, err := platformredis.New(gctx, cfg.Redis)
		if err != nil {
			return err
		}
		d.redis = client
		return nil
	})
	if len(cfg.Kafka.Brokers) > 0 {
		g.Go(func() error {
			sink, err := kafka.New(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, circuit.New("kafka-audit"), log)
			if err != nil {
				return err
			}
			if err := sink.EnsureTopic(gctx, kafkaPartitions, 1); err != nil {
				log.WarnContext(gctx, "kafka topic not ensured", "topic", cfg.Kafka.Topic, "error", err)
			}
			d.kafka = sink
			return nil
		})
	}

	err := g.Wait()
	// Register closers for whatever connected, even on partial failure.
	if d.db != nil {
		d.closers = append(d.closers, d.db.Close)
	}
	if d.redis != nil {
		d.closers = append(d.closers, d.redis.Close)
	}
	if d.kafka != nil {
		d.closers = append(d.closers, func() error { d.kafka.Close(); return nil })
	}
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// buildContacts wires the contact service over the configured store. Postgres
// schemas are migrated first.
func (d *deps) buildContacts(reg prometheus.Registerer) error {
	var store ports.ContactStoreTx
	if d.db != nil {
		if err := migrations.Up(d.db.DB, d.logger); err != nil {
			return err
		}
		store = contactstore.NewPostgresTxRunner(d.db,
			contactstore.WithMaxAttempts(d.cfg.Database.TxMaxAttempts),
			contactstore.WithTxTimeout(d.cfg.Database.TxTimeout),
			contactstore.WithTxLogger(d.logger),
		)
		d.logger.Info("contact store ready", "backend", "postgres")
	} else {
		store = contactstore.NewInMemory()
		d.logger.Info("contact store ready", "backend", "memory")
	}

	pubOpts := []publisher.Option{
		publisher.WithLogger(d.logger),
		publisher.WithAsyncBuffer(d.cfg.Audit.Buffer),
	}
	if d.kafka != nil {
		pubOpts = append(pubOpts, publisher.WithSinks(d.kafka))
	}
	var events audit.Store = auditmemory.NewInMemoryStore()
	if d.db != nil {
		events = auditpostgres.New(d.db.DB)
	}
	d.publisher = publisher.NewPublisher(events, pubOpts...)
	// The publisher drains before the sinks it feeds are closed.
	d.closers = append([]func() error{func() error { d.publisher.Close(); return nil }}, d.closers...)

	opts := []service.Option{
		service.WithLogger(d.logger),
		service.WithAuditPublisher(d.publisher),
		service.WithTracer(otel.Tracer("contactlink/contact")),
	}
	if reg != nil {
		opts = append(opts, service.WithMetrics(contactmetrics.New(reg)))
	}
	d.contacts = service.New(store, opts...)
	return nil
}

// Close releases resources in registration order.
func (d *deps) Close() error {
	var errs []error
	for _, c := range d.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// stderr is where subcommands log. Command output goes to stdout.
var stderr io.Writer = os.Stderr
