// Package domain defines the core entities of the account aggregator.
// These models are independent of the remote API client and represent the
// canonical data structures used throughout the service.
package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ============================================================
// Credentials
// ============================================================

// Credentials identify both the API client and the end user.
type Credentials struct {
	ClientID     string
	ClientSecret string
	UserLogin    string
	UserPassword string
}

// BasicAuth returns the Authorization header value for the login call.
func (c Credentials) BasicAuth() string {
	raw := c.ClientID + ":" + c.ClientSecret
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// ============================================================
// Resources & entries
// ============================================================

// Resource names a paginated collection of the remote API.
type Resource string

const (
	ResourceAccounts     Resource = "accounts"
	ResourceTransactions Resource = "transactions"
)

// KeyField returns the natural unique key of the resource's entries.
// Unknown resources have no key field.
func (r Resource) KeyField() string {
	switch r {
	case ResourceAccounts:
		return "acc_number"
	case ResourceTransactions:
		return "id"
	}
	return ""
}

// Entry is one record of a paginated resource (an account or a transaction).
// Everything except the key field passes through unmodified.
type Entry map[string]any

// Key returns the canonical form of the value under field: its JSON
// encoding, so that the number 1 and the string "1" stay distinct.
func (e Entry) Key(field string) (string, error) {
	v, ok := e[field]
	if !ok || v == nil {
		return "", &ErrMissingField{Field: field}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode key %q: %w", field, err)
	}
	return string(b), nil
}

// Text returns the value under field in a form suitable for URL paths.
func (e Entry) Text(field string) (string, bool) {
	switch v := e[field].(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case json.Number:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// Page is one response unit of a paginated resource.
type Page struct {
	Entries []Entry
	// Next is the link to the following page; empty on the last page.
	Next string
}

// HasNext reports whether another page follows.
func (p *Page) HasNext() bool {
	return p.Next != ""
}
