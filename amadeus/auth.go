// Package amadeus is a client for the Amadeus self-service flight APIs:
// OAuth client-credentials token lifecycle, flight-offers search, and
// itinerary price metrics.
package amadeus

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dmoura/tripgraph/types"
)

const tokenPath = "/v1/security/oauth2/token"

// expiryMargin is subtracted from expires_in so a token nearing expiry is
// refreshed before the request that would have raced it.
const expiryMargin = 30 * time.Second

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenSource lazily fetches and caches an OAuth client-credentials token,
// refreshing on expiry. Safe for concurrent use: the cache is shared across
// conversations.
type TokenSource struct {
	clientID     string
	clientSecret string
	tokenURL     string
	client       *http.Client
	logger       *zap.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time

	now func() time.Time // injected for tests
}

// NewTokenSource creates a token source against the given API base URL.
func NewTokenSource(baseURL, clientID, clientSecret string, client *http.Client, logger *zap.Logger) *TokenSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     strings.TrimRight(baseURL, "/") + tokenPath,
		client:       client,
		logger:       logger,
		now:          time.Now,
	}
}

// Token returns a valid bearer token, fetching a fresh one on first use or
// after expiry.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.now().Before(ts.expiry) {
		return ts.token, nil
	}
	return ts.fetch(ctx)
}

// Invalidate drops the cached token so the next call refetches. Used when
// the API answers 401 despite a token the cache considered valid.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.token = ""
	ts.expiry = time.Time{}
}

func (ts *TokenSource) fetch(ctx context.Context) (string, error) {
	if ts.clientID == "" || ts.clientSecret == "" {
		return "", types.NewError(types.ErrAuth, "amadeus credentials not configured")
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {ts.clientID},
		"client_secret": {ts.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", types.NewError(types.ErrAuth, "build token request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", types.NewError(types.ErrAuth, "token endpoint unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return "", types.NewError(types.ErrAuth, "token endpoint rejected credentials").
			WithHTTPStatus(resp.StatusCode).
			WithBody(string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", types.NewError(types.ErrAuth, "malformed token response").WithCause(err)
	}
	if tr.AccessToken == "" {
		return "", types.NewError(types.ErrAuth, "token response missing access_token")
	}

	ts.token = tr.AccessToken
	ts.expiry = ts.now().Add(time.Duration(tr.ExpiresIn)*time.Second - expiryMargin)

	ts.logger.Debug("fetched amadeus access token",
		zap.Int("expires_in", tr.ExpiresIn),
		zap.Time("expiry", ts.expiry),
	)
	return ts.token, nil
}
