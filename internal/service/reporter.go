package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/account-aggregator-go/internal/domain"
	"github.com/boddenberg/account-aggregator-go/internal/infra/observability"
	"github.com/boddenberg/account-aggregator-go/internal/infra/resilience"
	"github.com/boddenberg/account-aggregator-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// FirstAccountsPage is where every account listing starts.
const FirstAccountsPage = "/accounts?page=1"

const reportCacheKey = "report"

// ReporterConfig tunes a Reporter.
type ReporterConfig struct {
	MaxPages       int // per resource walk; 0 = unbounded
	MaxConcurrency int // concurrent enrichments; 0 = all accounts at once
}

// Reporter orchestrates authentication, account listing and enrichment.
type Reporter struct {
	auth       port.Authenticator
	aggregator *Aggregator
	enricher   *Enricher
	cache      port.Cache[*domain.Report]
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewReporter creates the reporter with all dependencies injected.
// cache may be nil, in which case Latest always runs a fresh aggregation.
func NewReporter(
	auth port.Authenticator,
	fetcher port.PageFetcher,
	cfg ReporterConfig,
	cache port.Cache[*domain.Report],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Reporter {
	aggregator := NewAggregator(fetcher, cfg.MaxPages, metrics, logger)
	return &Reporter{
		auth:       auth,
		aggregator: aggregator,
		enricher:   NewEnricher(aggregator, resilience.NewBulkhead(cfg.MaxConcurrency), metrics, logger),
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
	}
}

// Authenticate logs in and exchanges the refresh token for an access token.
// When login fails the exchange is never attempted.
func Authenticate(ctx context.Context, auth port.Authenticator) (domain.AccessToken, error) {
	ctx, span := tracer.Start(ctx, "Authenticate")
	defer span.End()

	refresh, err := auth.Login(ctx)
	if err != nil {
		return "", asAuthError("login", err)
	}

	token, err := auth.Exchange(ctx, refresh)
	if err != nil {
		return "", asAuthError("token", err)
	}
	return token, nil
}

func asAuthError(step string, err error) error {
	var authErr *domain.ErrAuth
	if errors.As(err, &authErr) {
		return err
	}
	return &domain.ErrAuth{Step: step, Err: err}
}

// Run performs one complete aggregation. Only authentication failures are
// returned as errors; a failed account listing yields an empty report and
// failed enrichments yield accounts without transactions.
func (r *Reporter) Run(ctx context.Context) (*domain.Report, error) {
	// Bail out early if the caller already cancelled.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = observability.WithRunID(ctx, runID)
	logger := r.logger.With(zap.String("run_id", runID))

	ctx, span := tracer.Start(ctx, "Reporter.Run")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", runID))

	start := time.Now()
	defer func() {
		r.metrics.RecordDuration("report", time.Since(start))
	}()

	// --- Step 1: Authenticate (fatal) ---
	token, err := Authenticate(ctx, r.auth)
	if err != nil {
		logger.Error("authentication failed", zap.Error(err))
		r.metrics.IncrExternalError("auth")
		r.metrics.IncrReport("error")
		return nil, err
	}
	if exp, ok := token.ExpiresAt(); ok {
		logger.Debug("access token obtained", zap.Time("expires_at", exp))
	}

	// --- Step 2: List accounts (falls back to none) ---
	accounts := r.ListAccounts(ctx, token)

	// --- Step 3: Enrich all accounts concurrently ---
	reports := r.enricher.EnrichAll(ctx, accounts.Accounts, token)

	report := &domain.Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Accounts:    reports,
	}
	if !accounts.OK() {
		report.AccountsError = accounts.Err.Error()
	}

	r.metrics.IncrReport("success")
	logger.Info("report built",
		zap.Int("accounts", len(reports)),
		zap.Bool("accounts_fallback", !accounts.OK()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// ListAccounts aggregates every account page. On failure the result carries
// the error and an empty account list.
func (r *Reporter) ListAccounts(ctx context.Context, token domain.AccessToken) domain.AccountsResult {
	accounts, err := r.aggregator.Aggregate(ctx, domain.ResourceAccounts, token, FirstAccountsPage)
	if err != nil {
		runLogger(ctx, r.logger).Error("failed to list accounts, continuing with none", zap.Error(err))
		r.metrics.IncrExternalError(string(domain.ResourceAccounts))
		r.metrics.IncrAccountsFallback()
		return domain.AccountsFailed(err)
	}
	return domain.AccountsOK(accounts)
}

// Latest returns a cached report when one is still fresh, otherwise runs a
// new aggregation and caches it.
func (r *Reporter) Latest(ctx context.Context) (*domain.Report, error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(reportCacheKey); ok {
			r.metrics.IncrCacheHit("report")
			return cached, nil
		}
		r.metrics.IncrCacheMiss("report")
	}

	report, err := r.Run(ctx)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(reportCacheKey, report)
	}
	return report, nil
}

// Refresh runs a new aggregation and replaces the cached report, so that
// Latest keeps answering from cache. It is a no-op without a cache.
func (r *Reporter) Refresh(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	report, err := r.Run(ctx)
	if err != nil {
		return err
	}
	r.cache.Set(reportCacheKey, report)
	return nil
}
