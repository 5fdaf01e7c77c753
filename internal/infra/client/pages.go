package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/boddenberg/account-aggregator-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PageClient fetches single pages of paginated resources.
type PageClient struct {
	httpClient *http.Client
	baseURL    string
	fields     domain.FieldMap
}

// NewPageClient creates a new PageClient.
func NewPageClient(httpClient *http.Client, baseURL string, fields domain.FieldMap) *PageClient {
	return &PageClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		fields:     fields,
	}
}

// FetchPage issues one Bearer-authorized GET for link and decodes the page.
// Every failure is returned as *domain.ErrFetch; nothing is retried.
func (c *PageClient) FetchPage(ctx context.Context, token domain.AccessToken, resource domain.Resource, link string) (*domain.Page, error) {
	ctx, span := tracer.Start(ctx, "PageClient.FetchPage")
	defer span.End()
	span.SetAttributes(
		attribute.String("resource", string(resource)),
		attribute.String("page.link", link),
	)

	page, err := c.fetch(ctx, token, resource, link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &domain.ErrFetch{Resource: resource, Link: link, Err: err}
	}
	span.SetAttributes(attribute.Int("page.entries", len(page.Entries)))
	return page, nil
}

func (c *PageClient) fetch(ctx context.Context, token domain.AccessToken, resource domain.Resource, link string) (*domain.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolveLink(c.baseURL, link), nil)
	if err != nil {
		return nil, err
	}
	setCommonHeaders(ctx, req)
	req.Header.Set("Authorization", "Bearer "+string(token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &domain.ErrUnexpectedStatus{Service: string(resource), StatusCode: resp.StatusCode}
	}

	return decodePage(resp.Body, c.fields, resource)
}

// decodePage reads {<collection>: [...], <link>: {<next>: "..."}}.
// Numbers are kept as json.Number so entries pass through unchanged.
func decodePage(r io.Reader, fields domain.FieldMap, resource domain.Resource) (*domain.Page, error) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}

	collection := fields.Collection(resource)
	rawEntries, ok := body[collection]
	if !ok || isNull(rawEntries) {
		return nil, &domain.ErrMissingField{Field: collection}
	}
	var entries []domain.Entry
	if err := decodeNumbers(rawEntries, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}

	rawLink, ok := body[fields.Link]
	if !ok || isNull(rawLink) {
		return nil, &domain.ErrMissingField{Field: fields.Link}
	}
	var link map[string]any
	if err := json.Unmarshal(rawLink, &link); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fields.Link, err)
	}

	next, err := nextLink(link[fields.Next])
	if err != nil {
		return nil, err
	}
	return &domain.Page{Entries: entries, Next: next}, nil
}

// nextLink treats absent, null, false and "" as the end of pagination.
func nextLink(v any) (string, error) {
	switch n := v.(type) {
	case nil:
		return "", nil
	case bool:
		if !n {
			return "", nil
		}
	case string:
		return n, nil
	}
	return "", fmt.Errorf("next link has unexpected type %T", v)
}

func decodeNumbers(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
