package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	contacthandler "contactlink/internal/contact/handler"
	"contactlink/internal/contact/seed"
	"contactlink/internal/platform/httpserver"
	"contactlink/internal/platform/metrics"
	ratelimitmetrics "contactlink/internal/ratelimit/metrics"
	ratelimitmw "contactlink/internal/ratelimit/middleware"
	"contactlink/internal/ratelimit/models"
	ratelimitsvc "contactlink/internal/ratelimit/service"
	"contactlink/internal/ratelimit/store/bucket"
	httptransport "contactlink/internal/transport/http"
	"contactlink/pkg/platform/circuit"
	"contactlink/pkg/requestcontext"
)

type serveOptions struct {
	*rootOptions
	SeedDemo bool
}

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the contactlink HTTP API.

The contact store is Postgres when DATABASE_URL is set and in-memory otherwise.
Rate limit windows live in Redis when REDIS_URL is set. Contact events are
published to Kafka when KAFKA_BROKERS is set.

Example:
  contactlink serve --seed-demo
  DATABASE_URL=postgres://localhost/contactlink contactlink serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.SeedDemo, "seed-demo", false, "import the demo contacts before serving")
	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	cfg, log, syncLog, err := loadBase(opts.rootOptions, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = syncLog() }()

	d, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			log.Error("shutdown cleanup failed", "error", cerr)
		}
	}()

	reg := metrics.NewRegistry()
	if err := d.buildContacts(reg); err != nil {
		return err
	}
	if opts.SeedDemo {
		if err := importDemo(ctx, d); err != nil {
			return err
		}
	}

	limiter, err := buildRateLimiter(d, ratelimitmetrics.New(reg))
	if err != nil {
		return err
	}

	readiness := map[string]httptransport.HealthCheck{}
	if d.db != nil {
		readiness["postgres"] = d.db.PingContext
	}
	if d.redis != nil {
		readiness["redis"] = d.redis.Health
	}
	if d.kafka != nil {
		readiness["kafka"] = d.kafka.Ping
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Contacts:       contacthandler.New(d.contacts, log),
		RateLimit:      ratelimitmw.New(limiter, log, ratelimitmw.WithDisabled(cfg.RateLimit.Disabled)),
		HTTPMetrics:    metrics.New(reg),
		MetricsHandler: metrics.Handler(reg),
		Readiness:      readiness,
	})

	log.Info("starting contactlink", "addr", cfg.Server.Addr)
	return httpserver.Run(ctx, httpserver.New(cfg.Server.Addr, router), log)
}

// buildRateLimiter prefers the Redis window store. With Redis configured,
// an in-memory store behind a breaker takes over during Redis outages.
func buildRateLimiter(d *deps, m *ratelimitmetrics.Metrics) (*ratelimitsvc.Service, error) {
	opts := []ratelimitsvc.Option{
		ratelimitsvc.WithLogger(d.logger),
		ratelimitsvc.WithMetrics(m),
		ratelimitsvc.WithAuditPublisher(d.publisher),
		ratelimitsvc.WithLimit(models.Limit{
			Requests: d.cfg.RateLimit.Requests,
			Window:   d.cfg.RateLimit.Window,
		}),
	}
	if d.redis == nil {
		return ratelimitsvc.New(bucket.NewInMemoryBucketStore(), opts...)
	}
	breaker := circuit.New("ratelimit-redis",
		circuit.WithFailureThreshold(3),
		circuit.WithCooldown(30*time.Second),
	)
	opts = append(opts, ratelimitsvc.WithFallback(bucket.NewInMemoryBucketStore(), breaker))
	return ratelimitsvc.New(bucket.NewRedisBucketStore(d.redis.Client), opts...)
}

func importDemo(ctx context.Context, d *deps) error {
	contacts, err := seed.Demo()
	if err != nil {
		return err
	}
	ctx = requestcontext.WithRequestID(ctx, "seed-demo")
	if err := d.contacts.ImportContacts(ctx, contacts); err != nil {
		return err
	}
	d.logger.Info("demo contacts imported", "count", len(contacts))
	return nil
}
