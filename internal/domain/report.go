package domain

import (
	"encoding/json"
	"time"
)

// ============================================================
// Reports
// ============================================================

// AccountReport is an account enriched with its transactions.
type AccountReport struct {
	Account      Entry
	Transactions []Entry
}

// NewAccountReport builds a report; a nil transaction list becomes empty.
func NewAccountReport(account Entry, transactions []Entry) AccountReport {
	if transactions == nil {
		transactions = []Entry{}
	}
	return AccountReport{Account: account, Transactions: transactions}
}

// MarshalJSON flattens the account fields and adds "transactions".
func (r AccountReport) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Account)+1)
	for k, v := range r.Account {
		out[k] = v
	}
	txs := r.Transactions
	if txs == nil {
		txs = []Entry{}
	}
	out["transactions"] = txs
	return json.Marshal(out)
}

// AccountsResult is the outcome of listing accounts. A failed listing
// still carries an empty, correctly typed account list.
type AccountsResult struct {
	Accounts []Entry
	Err      error
}

// AccountsOK wraps a successful listing.
func AccountsOK(accounts []Entry) AccountsResult {
	if accounts == nil {
		accounts = []Entry{}
	}
	return AccountsResult{Accounts: accounts}
}

// AccountsFailed wraps a failed listing.
func AccountsFailed(err error) AccountsResult {
	return AccountsResult{Accounts: []Entry{}, Err: err}
}

// OK reports whether the listing succeeded.
func (r AccountsResult) OK() bool {
	return r.Err == nil
}

// Report is the result of one aggregation run.
type Report struct {
	RunID         string          `json:"run_id"`
	GeneratedAt   time.Time       `json:"generated_at"`
	Accounts      []AccountReport `json:"accounts"`
	AccountsError string          `json:"accounts_error,omitempty"`
}
