package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"github.com/boddenberg/account-aggregator-go/internal/domain"
)

// --- Fakes ---

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]*domain.Page
	errs  map[string]error
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: make(map[string]*domain.Page),
		errs:  make(map[string]error),
	}
}

func (f *fakeFetcher) page(link string, next string, entries ...domain.Entry) *fakeFetcher {
	f.pages[link] = &domain.Page{Entries: entries, Next: next}
	return f
}

func (f *fakeFetcher) fail(link string, err error) *fakeFetcher {
	f.errs[link] = err
	return f
}

func (f *fakeFetcher) FetchPage(_ context.Context, _ domain.AccessToken, resource domain.Resource, link string) (*domain.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, link)
	if err, ok := f.errs[link]; ok {
		return nil, &domain.ErrFetch{Resource: resource, Link: link, Err: err}
	}
	p, ok := f.pages[link]
	if !ok {
		return nil, &domain.ErrFetch{Resource: resource, Link: link, Err: errors.New("no such page")}
	}
	return p, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAuth struct {
	loginErr    error
	exchangeErr error

	mu            sync.Mutex
	logins        int
	exchanges     int
	lastRefreshed domain.RefreshToken
}

func (a *fakeAuth) Login(_ context.Context) (domain.RefreshToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logins++
	if a.loginErr != nil {
		return "", a.loginErr
	}
	return "refresh-1", nil
}

func (a *fakeAuth) Exchange(_ context.Context, refresh domain.RefreshToken) (domain.AccessToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exchanges++
	a.lastRefreshed = refresh
	if a.exchangeErr != nil {
		return "", a.exchangeErr
	}
	return "access-1", nil
}

// --- Entry helpers ---

func account(n int) domain.Entry {
	return domain.Entry{"acc_number": json.Number(strconv.Itoa(n)), "currency": "EUR"}
}

func tx(id string, amount string) domain.Entry {
	return domain.Entry{"id": id, "amount": json.Number(amount)}
}

func keysOf(entries []domain.Entry, field string) []string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		k, _ := e.Text(field)
		keys = append(keys, k)
	}
	return keys
}
