// Package client implements the remote account-aggregation API:
// authentication and paginated resource fetches.
package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/account-aggregator-go/internal/infra/observability"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("client")

// resolveLink turns a page link into a request URL. Links are normally
// paths relative to the API root; absolute links are used as-is.
func resolveLink(baseURL, link string) string {
	if u, err := url.Parse(link); err == nil && u.IsAbs() {
		return link
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return strings.TrimRight(baseURL, "/") + link
}

// setCommonHeaders adds the headers every call to the remote API carries.
func setCommonHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if runID := observability.RunIDFromContext(ctx); runID != "" {
		req.Header.Set("X-Request-ID", runID)
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
