package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/frontdesk-agent/agent/agents/nlu"
	"github.com/tanpawarit/frontdesk-agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
	"github.com/tanpawarit/frontdesk-agent/agent/dispatch"
	llmx "github.com/tanpawarit/frontdesk-agent/agent/llm"
	schedulex "github.com/tanpawarit/frontdesk-agent/agent/schedule"
	"github.com/tanpawarit/frontdesk-agent/agent/transport/events"
	"github.com/tanpawarit/frontdesk-agent/agent/transport/webhook"
	configx "github.com/tanpawarit/frontdesk-agent/pkg/config"
	_ "github.com/tanpawarit/frontdesk-agent/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/frontdesk-agent/pkg/openrouter"
	qstashx "github.com/tanpawarit/frontdesk-agent/pkg/qstash"
	"github.com/tanpawarit/frontdesk-agent/pkg/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type AppConfig struct {
	ScheduleBackend  string `envconfig:"SCHEDULE_BACKEND" default:"memory"`
	NLUProvider      string `envconfig:"NLU_PROVIDER" default:"keyword"`
	VerifySignatures bool   `envconfig:"VERIFY_SIGNATURES" default:"false"`
	RateLimitEnabled bool   `envconfig:"RATE_LIMIT_ENABLED" default:"false"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("front desk agent stopped with error")
	}
	log.Info().Msg("front desk agent stopped")
}

// run owns every resource it opens, so deferred cleanup happens on both
// startup failures and shutdown.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("")
	calendarCfg := configx.MustNew[schedulex.Config]("CALENDAR")
	httpCfg := configx.MustNew[webhook.Config]("HTTP")
	dispatchCfg := configx.MustNew[dispatch.Config]("DISPATCH")
	kafkaCfg := configx.MustNew[events.Config]("KAFKA")
	otelCfg := configx.MustNew[telemetry.Config]("OTEL")

	shutdownTracing, err := telemetry.Setup(ctx, *otelCfg)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	policy, err := schedulex.NewPolicy(*calendarCfg)
	if err != nil {
		return fmt.Errorf("calendar policy: %w", err)
	}

	store, closeStore, err := openStore(ctx, appCfg.ScheduleBackend, policy)
	if err != nil {
		return fmt.Errorf("open %s schedule store: %w", appCfg.ScheduleBackend, err)
	}
	defer closeStore()

	models, err := buildRegistry(ctx, appCfg.NLUProvider)
	if err != nil {
		return fmt.Errorf("build %s nlu capabilities: %w", appCfg.NLUProvider, err)
	}

	dispatcher, err := dispatch.New(*dispatchCfg)
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}

	orch, err := orchestrator.New(store, models, dispatcher, policy)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	opts := []webhook.Option{webhook.WithTrustedProxy(httpCfg.TrustProxy)}
	if appCfg.VerifySignatures {
		qstashCfg, err := configx.New[qstashx.Config]("QSTASH")
		if err != nil {
			return err
		}
		verifier, err := qstashx.NewVerifier(*qstashCfg)
		if err != nil {
			return fmt.Errorf("qstash verifier: %w", err)
		}
		opts = append(opts, webhook.WithVerifier(verifier, httpCfg.PublicURL))
	}
	if appCfg.RateLimitEnabled {
		redisCfg, err := configx.New[webhook.RedisConfig]("REDIS")
		if err != nil {
			return err
		}
		rdb := webhook.NewRedisClient(*redisCfg)
		defer rdb.Close()
		limiter := webhook.NewRedisLimiter(rdb, redisCfg.Limit, redisCfg.Window, redisCfg.Prefix)
		opts = append(opts, webhook.WithLimiter(limiter, httpCfg.RateLimitFailOpen))
	}
	if httpCfg.BodyLimit > 0 {
		opts = append(opts, webhook.WithBodyLimitBytes(httpCfg.BodyLimit))
	}
	server := webhook.New(orch, store, policy, opts...)

	log.Info().
		Str("backend", appCfg.ScheduleBackend).
		Str("nlu", appCfg.NLUProvider).
		Str("dispatch", dispatchCfg.Provider).
		Str("calendar", policy.CalendarID).
		Bool("kafka", kafkaCfg.Enabled).
		Msg("front desk agent starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, *httpCfg)
	})
	if kafkaCfg.Enabled {
		consumer := events.New(events.NewReader(*kafkaCfg), events.NoShowHandlerFunc(orch))
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openStore selects the calendar backend once for the process lifetime.
func openStore(ctx context.Context, backend string, policy schedulex.Policy) (schedulex.Store, func(), error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		return schedulex.NewMemoryStore(policy), func() {}, nil
	case BackendPostgres:
		pgCfg, err := configx.New[schedulex.PostgresConfig]("POSTGRES")
		if err != nil {
			return nil, nil, err
		}
		store, err := schedulex.OpenPostgres(ctx, *pgCfg, policy)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown schedule backend %q", contractx.ErrValidation, backend)
	}
}

func buildRegistry(ctx context.Context, provider string) (contractx.Registry, error) {
	if strings.ToLower(strings.TrimSpace(provider)) != nlu.ProviderLLM {
		return nlu.NewRegistry(ctx, provider, llmx.Config{})
	}

	llmCfg, err := configx.New[llmx.Config]("OPENROUTER")
	if err != nil {
		return nil, err
	}
	client, err := openrouterx.NewClient(llmCfg.OpenRouterFor(llmx.CapabilityText))
	if err != nil {
		return nil, err
	}
	timeout := llmCfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := openrouterx.Ping(pingCtx, client); err != nil {
		return nil, err
	}
	return nlu.NewRegistry(ctx, provider, *llmCfg)
}
