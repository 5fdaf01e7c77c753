package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/boddenberg/account-aggregator-go/internal/domain"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/codes"
)

const authService = "auth"

// AuthClient performs the login and token-exchange calls.
type AuthClient struct {
	httpClient *http.Client
	baseURL    string
	creds      domain.Credentials
	fields     domain.FieldMap
	cb         *gobreaker.CircuitBreaker
}

// NewAuthClient creates a new AuthClient for the given credentials.
func NewAuthClient(httpClient *http.Client, baseURL string, creds domain.Credentials, fields domain.FieldMap, cb *gobreaker.CircuitBreaker) *AuthClient {
	return &AuthClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		creds:      creds,
		fields:     fields,
		cb:         cb,
	}
}

// Login exchanges client and user credentials for a refresh token.
func (c *AuthClient) Login(ctx context.Context) (domain.RefreshToken, error) {
	ctx, span := tracer.Start(ctx, "AuthClient.Login")
	defer span.End()

	body := map[string]string{
		"user":     c.creds.UserLogin,
		"password": c.creds.UserPassword,
	}

	token, err := c.postForToken(ctx, "/login", body, c.creds.BasicAuth(), c.fields.RefreshToken)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", &domain.ErrAuth{Step: "login", Err: err}
	}
	return domain.RefreshToken(token), nil
}

// Exchange trades a refresh token for an access token.
func (c *AuthClient) Exchange(ctx context.Context, refresh domain.RefreshToken) (domain.AccessToken, error) {
	ctx, span := tracer.Start(ctx, "AuthClient.Exchange")
	defer span.End()

	body := map[string]string{
		"grant_type":          "refresh_token",
		c.fields.RefreshToken: string(refresh),
	}

	token, err := c.postForToken(ctx, "/token", body, "", c.fields.AccessToken)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", &domain.ErrAuth{Step: "token", Err: err}
	}
	return domain.AccessToken(token), nil
}

// postForToken POSTs payload as JSON and returns the string under field.
func (c *AuthClient) postForToken(ctx context.Context, path string, payload any, authorization, field string) (string, error) {
	result, err := c.cb.Execute(func() (any, error) {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, resolveLink(c.baseURL, path), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		setCommonHeaders(ctx, req)
		req.Header.Set("Content-Type", "application/json")
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if !isSuccess(resp.StatusCode) {
			return nil, &domain.ErrUnexpectedStatus{Service: authService, StatusCode: resp.StatusCode}
		}

		var fields map[string]json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", path, err)
		}

		var token string
		if raw, ok := fields[field]; ok {
			_ = json.Unmarshal(raw, &token)
		}
		if token == "" {
			return nil, &domain.ErrMissingField{Field: field}
		}
		return token, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", &domain.ErrCircuitOpen{Service: authService}
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
