package main

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/account-aggregator-go/internal/config"
	"github.com/boddenberg/account-aggregator-go/internal/domain"
	"github.com/boddenberg/account-aggregator-go/internal/infra/client"
	"github.com/boddenberg/account-aggregator-go/internal/infra/observability"
	"github.com/boddenberg/account-aggregator-go/internal/infra/resilience"
	"github.com/boddenberg/account-aggregator-go/internal/port"
	"github.com/boddenberg/account-aggregator-go/internal/service"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const serviceName = "account-aggregator"

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	v       *viper.Viper
	envFile string

	cfg            *config.Config
	logger         *zap.Logger
	metrics        *observability.Metrics
	shutdownTracer func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "aggregator",
		Short: "Build a deduplicated report of bank accounts and their transactions",
		Long: `aggregator logs in to an account-aggregation API, walks every page of
/accounts and of each account's /transactions, removes entries repeated
across pages, and reports every account with its transactions.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load (missing file is ignored)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("base-url", "", "remote API base URL")
	flags.String("api-variant", "", "response field naming (camel, snake)")
	flags.Int("max-pages", 0, "page ceiling per resource walk (0 = unbounded)")
	flags.Int("max-concurrency", 0, "concurrent account enrichments (0 = all at once)")

	_ = a.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = a.v.BindPFlag(config.KeyAPIBaseURL, flags.Lookup("base-url"))
	_ = a.v.BindPFlag(config.KeyAPIVariant, flags.Lookup("api-variant"))
	_ = a.v.BindPFlag(config.KeyMaxPages, flags.Lookup("max-pages"))
	_ = a.v.BindPFlag(config.KeyMaxConcurrency, flags.Lookup("max-concurrency"))

	root.AddCommand(reportCmd(a))
	root.AddCommand(serveCmd(a))

	return root
}

func (a *app) setup(_ *cobra.Command, _ []string) error {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(a.envFile)

	// --- Config ---
	a.cfg = config.Load(a.v)
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	// --- Logger ---
	a.logger = observability.NewLogger(a.cfg.LogLevel)
	a.logger.Info("configuration loaded",
		zap.String("api_base_url", a.cfg.APIBaseURL),
		zap.String("api_variant", string(a.cfg.APIVariant)),
		zap.String("log_level", a.cfg.LogLevel),
		zap.Duration("http_timeout", a.cfg.HTTPTimeout),
		zap.Int("max_pages", a.cfg.MaxPages),
		zap.Int("max_concurrency", a.cfg.MaxConcurrency),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(a.cfg.OTLPEndpoint, serviceName)
	if err != nil {
		return err
	}
	a.shutdownTracer = shutdown

	// --- Metrics ---
	a.metrics = observability.NewMetrics()
	return nil
}

func (a *app) close() {
	if a.shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTracer(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// newReporter wires the remote API clients into a Reporter.
func (a *app) newReporter(cache port.Cache[*domain.Report]) *service.Reporter {
	httpClient := &http.Client{Timeout: a.cfg.HTTPTimeout}
	fields := a.cfg.Fields()

	authClient := client.NewAuthClient(
		httpClient,
		a.cfg.APIBaseURL,
		a.cfg.Credentials,
		fields,
		resilience.NewCircuitBreaker("auth-api"),
	)
	pageClient := client.NewPageClient(httpClient, a.cfg.APIBaseURL, fields)

	return service.NewReporter(
		authClient,
		pageClient,
		service.ReporterConfig{
			MaxPages:       a.cfg.MaxPages,
			MaxConcurrency: a.cfg.MaxConcurrency,
		},
		cache,
		a.metrics,
		a.logger,
	)
}
