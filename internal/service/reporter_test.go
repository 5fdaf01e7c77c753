package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/account-aggregator-go/internal/domain"
	"github.com/boddenberg/account-aggregator-go/internal/infra/cache"
	"github.com/boddenberg/account-aggregator-go/internal/infra/observability"
	"github.com/boddenberg/account-aggregator-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newReporter(auth *fakeAuth, f *fakeFetcher, cfg service.ReporterConfig) (*service.Reporter, *observability.Metrics) {
	metrics := observability.NewMetrics()
	return service.NewReporter(auth, f, cfg, nil, metrics, zap.NewNop()), metrics
}

func twoAccountBank() *fakeFetcher {
	return newFakeFetcher().
		page("/accounts?page=1", "/accounts?page=2", account(1)).
		page("/accounts?page=2", "", account(1), account(2)).
		page("/accounts/1/transactions?page=1", "/accounts/1/transactions?page=2", tx("t1", "10")).
		page("/accounts/1/transactions?page=2", "", tx("t1", "10"), tx("t2", "-4")).
		page("/accounts/2/transactions?page=1", "", tx("t9", "7"))
}

func TestRun_Success(t *testing.T) {
	auth := &fakeAuth{}
	reporter, _ := newReporter(auth, twoAccountBank(), service.ReporterConfig{})

	report, err := reporter.Run(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Empty(t, report.AccountsError)
	require.Len(t, report.Accounts, 2)

	assert.Equal(t, []string{"1"}, keysOf([]domain.Entry{report.Accounts[0].Account}, "acc_number"))
	assert.Equal(t, []string{"t1", "t2"}, keysOf(report.Accounts[0].Transactions, "id"))
	assert.Equal(t, []string{"t9"}, keysOf(report.Accounts[1].Transactions, "id"))

	assert.Equal(t, 1, auth.logins)
	assert.Equal(t, 1, auth.exchanges)
	assert.Equal(t, domain.RefreshToken("refresh-1"), auth.lastRefreshed)
}

func TestRun_OneAccountFailureIsIsolated(t *testing.T) {
	f := twoAccountBank().fail("/accounts/1/transactions?page=2", errors.New("502 from upstream"))
	reporter, metrics := newReporter(&fakeAuth{}, f, service.ReporterConfig{})

	report, err := reporter.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, report.Accounts, 2)
	assert.NotNil(t, report.Accounts[0].Transactions)
	assert.Empty(t, report.Accounts[0].Transactions)
	assert.Equal(t, []string{"t9"}, keysOf(report.Accounts[1].Transactions, "id"))
	assert.Equal(t, int64(1), metrics.Snapshot().EnrichmentFailures)
}

func TestRun_LoginFailureIsFatal(t *testing.T) {
	auth := &fakeAuth{loginErr: errors.New("401")}
	f := twoAccountBank()
	reporter, metrics := newReporter(auth, f, service.ReporterConfig{})

	report, err := reporter.Run(context.Background())

	assert.Nil(t, report)
	var authErr *domain.ErrAuth
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "login", authErr.Step)
	assert.Zero(t, auth.exchanges, "token exchange must not run after a failed login")
	assert.Zero(t, f.callCount(), "no page may be fetched after a failed login")
	assert.Equal(t, int64(1), metrics.Snapshot().FailedReports)
}

func TestRun_TokenExchangeFailureIsFatal(t *testing.T) {
	auth := &fakeAuth{exchangeErr: &domain.ErrAuth{Step: "token", Err: errors.New("invalid_grant")}}
	f := twoAccountBank()
	reporter, _ := newReporter(auth, f, service.ReporterConfig{})

	_, err := reporter.Run(context.Background())

	var authErr *domain.ErrAuth
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "token", authErr.Step)
	assert.Zero(t, f.callCount())
}

func TestRun_AccountListingFailureFallsBackToEmpty(t *testing.T) {
	f := newFakeFetcher().
		page("/accounts?page=1", "/accounts?page=2", account(1)).
		fail("/accounts?page=2", errors.New("timeout"))
	reporter, metrics := newReporter(&fakeAuth{}, f, service.ReporterConfig{})

	report, err := reporter.Run(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, report.Accounts)
	assert.Empty(t, report.Accounts)
	assert.Contains(t, report.AccountsError, "timeout")
	assert.Equal(t, int64(1), metrics.Snapshot().AccountsFallbacks)
}

func TestRun_BoundedConcurrencyKeepsAccountOrder(t *testing.T) {
	f := newFakeFetcher().page("/accounts?page=1", "", account(3), account(1), account(2))
	for _, n := range []string{"1", "2", "3"} {
		f.page("/accounts/"+n+"/transactions?page=1", "", tx("tx-"+n, "1"))
	}
	reporter, _ := newReporter(&fakeAuth{}, f, service.ReporterConfig{MaxConcurrency: 1})

	report, err := reporter.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, report.Accounts, 3)
	for i, want := range []string{"3", "1", "2"} {
		got, _ := report.Accounts[i].Account.Text("acc_number")
		assert.Equal(t, want, got)
		assert.Equal(t, []string{"tx-" + want}, keysOf(report.Accounts[i].Transactions, "id"))
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	auth := &fakeAuth{}
	reporter, _ := newReporter(auth, twoAccountBank(), service.ReporterConfig{})

	_, err := reporter.Run(ctx)

	require.Error(t, err)
	assert.Zero(t, auth.logins)
}

func TestLatest_ServesFromCache(t *testing.T) {
	f := twoAccountBank()
	metrics := observability.NewMetrics()
	reportCache := cache.New[*domain.Report](time.Minute)
	defer reportCache.Close()
	reporter := service.NewReporter(&fakeAuth{}, f, service.ReporterConfig{}, reportCache, metrics, zap.NewNop())

	first, err := reporter.Latest(context.Background())
	require.NoError(t, err)
	calls := f.callCount()

	second, err := reporter.Latest(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, calls, f.callCount())
	assert.Equal(t, int64(1), metrics.Snapshot().ReportCacheHits)
	assert.Equal(t, int64(1), metrics.Snapshot().ReportCacheMisses)
}

func TestLatest_DoesNotCacheFailures(t *testing.T) {
	auth := &fakeAuth{loginErr: errors.New("down")}
	reportCache := cache.New[*domain.Report](time.Minute)
	defer reportCache.Close()
	reporter := service.NewReporter(auth, newFakeFetcher(), service.ReporterConfig{}, reportCache, observability.NewMetrics(), zap.NewNop())

	_, err := reporter.Latest(context.Background())
	require.Error(t, err)
	_, err = reporter.Latest(context.Background())
	require.Error(t, err)

	assert.Equal(t, 2, auth.logins)
}

func TestRefresh_ReplacesCachedReport(t *testing.T) {
	f := twoAccountBank()
	reportCache := cache.New[*domain.Report](time.Minute)
	defer reportCache.Close()
	reporter := service.NewReporter(&fakeAuth{}, f, service.ReporterConfig{}, reportCache, observability.NewMetrics(), zap.NewNop())

	first, err := reporter.Latest(context.Background())
	require.NoError(t, err)

	require.NoError(t, reporter.Refresh(context.Background()))

	second, err := reporter.Latest(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRefresh_KeepsPreviousReportOnFailure(t *testing.T) {
	auth := &fakeAuth{}
	reportCache := cache.New[*domain.Report](time.Minute)
	defer reportCache.Close()
	reporter := service.NewReporter(auth, twoAccountBank(), service.ReporterConfig{}, reportCache, observability.NewMetrics(), zap.NewNop())

	first, err := reporter.Latest(context.Background())
	require.NoError(t, err)

	auth.loginErr = errors.New("down")
	require.Error(t, reporter.Refresh(context.Background()))

	cached, err := reporter.Latest(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, cached)
}

func TestRefresh_WithoutCacheIsNoop(t *testing.T) {
	auth := &fakeAuth{}
	reporter := service.NewReporter(auth, twoAccountBank(), service.ReporterConfig{}, nil, observability.NewMetrics(), zap.NewNop())

	require.NoError(t, reporter.Refresh(context.Background()))
	assert.Zero(t, auth.logins)
}

func TestTransactionsLink(t *testing.T) {
	link, err := service.TransactionsLink(account(42))
	require.NoError(t, err)
	assert.Equal(t, "/accounts/42/transactions?page=1", link)

	link, err = service.TransactionsLink(domain.Entry{"acc_number": "FR76 3000/1"})
	require.NoError(t, err)
	assert.Equal(t, "/accounts/FR76%203000%2F1/transactions?page=1", link)

	_, err = service.TransactionsLink(domain.Entry{"iban": "x"})
	assert.Error(t, err)
}

func TestEnricher_AccountWithoutNumberGetsEmptyTransactions(t *testing.T) {
	metrics := observability.NewMetrics()
	agg := service.NewAggregator(newFakeFetcher(), 0, metrics, zap.NewNop())
	enricher := service.NewEnricher(agg, nil, metrics, zap.NewNop())

	report := enricher.WithTransactions(context.Background(), domain.Entry{"name": "orphan"}, "tok")

	assert.Equal(t, "orphan", report.Account["name"])
	assert.NotNil(t, report.Transactions)
	assert.Empty(t, report.Transactions)
}
