package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/boddenberg/account-aggregator-go/internal/domain"
	"github.com/boddenberg/account-aggregator-go/internal/infra/observability"
	"github.com/boddenberg/account-aggregator-go/internal/infra/resilience"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TransactionsLink returns the first transactions page of an account.
func TransactionsLink(account domain.Entry) (string, error) {
	field := domain.ResourceAccounts.KeyField()
	accNumber, ok := account.Text(field)
	if !ok {
		return "", &domain.ErrMissingField{Field: field}
	}
	return fmt.Sprintf("/accounts/%s/transactions?page=1", url.PathEscape(accNumber)), nil
}

// Enricher attaches transactions to accounts. A failure for one account
// leaves it with an empty transaction list and never reaches the caller.
type Enricher struct {
	aggregator *Aggregator
	bulkhead   *resilience.Bulkhead
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewEnricher creates an Enricher. A nil bulkhead enriches every account
// at once.
func NewEnricher(aggregator *Aggregator, bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *Enricher {
	return &Enricher{
		aggregator: aggregator,
		bulkhead:   bulkhead,
		metrics:    metrics,
		logger:     logger,
	}
}

// WithTransactions builds the report for one account.
func (e *Enricher) WithTransactions(ctx context.Context, account domain.Entry, token domain.AccessToken) domain.AccountReport {
	link, err := TransactionsLink(account)
	if err == nil {
		var txs []domain.Entry
		txs, err = e.aggregator.Aggregate(ctx, domain.ResourceTransactions, token, link)
		if err == nil {
			return domain.NewAccountReport(account, txs)
		}
	}
	return e.fallback(ctx, account, err)
}

// EnrichAll enriches every account concurrently and waits for all of them.
// reports[i] belongs to accounts[i].
func (e *Enricher) EnrichAll(ctx context.Context, accounts []domain.Entry, token domain.AccessToken) []domain.AccountReport {
	reports := make([]domain.AccountReport, len(accounts))

	var g errgroup.Group
	for i, account := range accounts {
		i, account := i, account
		g.Go(func() error {
			if err := e.bulkhead.Acquire(ctx); err != nil {
				reports[i] = e.fallback(ctx, account, err)
				return nil
			}
			defer e.bulkhead.Release()

			reports[i] = e.WithTransactions(ctx, account, token)
			return nil
		})
	}
	_ = g.Wait()

	return reports
}

func (e *Enricher) fallback(ctx context.Context, account domain.Entry, err error) domain.AccountReport {
	accNumber, _ := account.Text(domain.ResourceAccounts.KeyField())
	runLogger(ctx, e.logger).Warn("transactions unavailable, reporting account without them",
		zap.String("acc_number", accNumber),
		zap.Error(err),
	)
	e.metrics.IncrEnrichmentFailure()
	return domain.NewAccountReport(account, []domain.Entry{})
}
