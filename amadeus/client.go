package amadeus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dmoura/tripgraph/internal/metrics"
	"github.com/dmoura/tripgraph/retry"
	"github.com/dmoura/tripgraph/types"
)

const (
	offersPath  = "/v2/shopping/flight-offers"
	metricsPath = "/v1/analytics/itinerary-price-metrics"

	defaultMaxResults = 250
)

// Config configures the Amadeus client.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	MaxRetries   int
	// RequestsPerSecond for the client-side limiter ahead of every request.
	RequestsPerSecond float64
}

// Client issues flight-offers search and price-metrics requests. Transport
// errors and 5xx responses are retried with backoff; 4xx and validation
// failures propagate immediately.
type Client struct {
	cfg     Config
	client  *http.Client
	tokens  *TokenSource
	limiter *rate.Limiter
	retryer *retry.Retryer
	logger  *zap.Logger
	metrics *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates an Amadeus client.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tokens = NewTokenSource(cfg.BaseURL, cfg.ClientID, cfg.ClientSecret, c.client, logger)
	c.retryer = retry.New(&retry.Policy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}, logger)
	return c
}

// SearchRequest parameterizes a flight-offers search.
type SearchRequest struct {
	Origin        string
	Destination   string
	DepartureDate string // YYYY-MM-DD
	ReturnDate    string // optional
	Adults        int    // defaults to 1
	Children      int
	Infants       int
	TravelClass   string // ECONOMY, PREMIUM_ECONOMY, BUSINESS, FIRST
	MaxPrice      int
	NonStop       *bool
	// IncludedAirlines and ExcludedAirlines are mutually exclusive IATA
	// carrier filters. If both are given, include wins and exclude is
	// dropped with a warning.
	IncludedAirlines []string
	ExcludedAirlines []string
	Currency         string
	MaxResults       int // defaults to 250
}

func (r *SearchRequest) validate() error {
	if r.Origin == "" || r.Destination == "" {
		return types.NewError(types.ErrInvalidRequest, "origin and destination are required")
	}
	if r.DepartureDate == "" {
		return types.NewError(types.ErrInvalidRequest, "departure date is required")
	}
	return nil
}

// SearchOffers runs a flight-offers search and returns the validated offer
// list. An empty result set is a SCHEMA error, never a silent empty slice.
func (c *Client) SearchOffers(ctx context.Context, req SearchRequest) (*OffersResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	adults := req.Adults
	if adults == 0 {
		adults = 1
	}
	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = defaultMaxResults
	}

	params := url.Values{}
	params.Set("originLocationCode", req.Origin)
	params.Set("destinationLocationCode", req.Destination)
	params.Set("departureDate", req.DepartureDate)
	params.Set("adults", strconv.Itoa(adults))
	params.Set("children", strconv.Itoa(req.Children))
	params.Set("infants", strconv.Itoa(req.Infants))
	params.Set("max", strconv.Itoa(maxResults))
	if req.ReturnDate != "" {
		params.Set("returnDate", req.ReturnDate)
	}
	if req.TravelClass != "" {
		params.Set("travelClass", req.TravelClass)
	}
	if req.MaxPrice > 0 {
		params.Set("maxPrice", strconv.Itoa(req.MaxPrice))
	}
	if req.NonStop != nil {
		params.Set("nonStop", strconv.FormatBool(*req.NonStop))
	}
	if req.Currency != "" {
		params.Set("currencyCode", req.Currency)
	}

	included, excluded := req.IncludedAirlines, req.ExcludedAirlines
	if len(included) > 0 && len(excluded) > 0 {
		c.logger.Warn("both included and excluded airline codes provided, using included",
			zap.Strings("included", included),
			zap.Strings("excluded", excluded),
		)
		excluded = nil
	}
	if len(included) > 0 {
		params.Set("includedAirlineCodes", strings.Join(included, ","))
	} else if len(excluded) > 0 {
		params.Set("excludedAirlineCodes", strings.Join(excluded, ","))
	}

	var out OffersResponse
	if err := c.get(ctx, offersPath, params, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		c.logger.Error("flight offers response failed validation", zap.Error(err))
		return nil, err
	}

	c.logger.Info("flight offers search succeeded",
		zap.String("origin", req.Origin),
		zap.String("destination", req.Destination),
		zap.Int("count", len(out.Data)),
	)
	return &out, nil
}

// MetricsRequest parameterizes a price-metrics lookup.
type MetricsRequest struct {
	Origin        string
	Destination   string
	DepartureDate string // YYYY-MM-DD
	Currency      string // defaults to EUR
	OneWay        bool
}

// PriceMetrics returns the quartile price breakdown for an itinerary.
func (c *Client) PriceMetrics(ctx context.Context, req MetricsRequest) (*MetricsResponse, error) {
	if req.Origin == "" || req.Destination == "" || req.DepartureDate == "" {
		return nil, types.NewError(types.ErrInvalidRequest,
			"origin, destination and departure date are required")
	}
	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}

	params := url.Values{}
	params.Set("originIataCode", req.Origin)
	params.Set("destinationIataCode", req.Destination)
	params.Set("departureDate", req.DepartureDate)
	params.Set("currencyCode", currency)
	params.Set("oneWay", strconv.FormatBool(req.OneWay))

	var out MetricsResponse
	if err := c.get(ctx, metricsPath, params, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		c.logger.Error("price metrics response failed validation", zap.Error(err))
		return nil, err
	}
	return &out, nil
}

// get performs one authenticated GET with rate limiting and bounded retry.
// The token is resolved inside the retry loop so an expired token picked up
// mid-backoff is refreshed rather than replayed.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + params.Encode()

	return c.retryer.Do(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return types.NewError(types.ErrTimeout, "rate limiter wait canceled").WithCause(err)
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err // AUTH errors are not retryable
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return types.NewError(types.ErrInvalidRequest, "build request").WithCause(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			c.observe(path, "transport_error", start)
			return types.NewError(types.ErrUpstreamError, "amadeus request failed").
				WithCause(err).
				WithRetryable(true)
		}
		defer resp.Body.Close()
		c.observe(path, strconv.Itoa(resp.StatusCode), start)

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return types.NewError(types.ErrUpstreamError, "read response body").
				WithCause(err).
				WithRetryable(true)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.Unmarshal(body, out); err != nil {
				return types.NewError(types.ErrSchema, "malformed amadeus response").WithCause(err)
			}
			return nil
		case resp.StatusCode == http.StatusUnauthorized:
			// Token may have been revoked server-side; refetch once via retry.
			c.tokens.Invalidate()
			return types.NewError(types.ErrAuth, "amadeus rejected token").
				WithHTTPStatus(resp.StatusCode).
				WithBody(string(body)).
				WithRetryable(true)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return types.NewError(types.ErrUpstreamError,
				fmt.Sprintf("amadeus returned %d", resp.StatusCode)).
				WithHTTPStatus(resp.StatusCode).
				WithBody(string(body)).
				WithRetryable(true)
		default:
			return types.NewError(types.ErrAPI,
				fmt.Sprintf("amadeus returned %d", resp.StatusCode)).
				WithHTTPStatus(resp.StatusCode).
				WithBody(string(body))
		}
	})
}

func (c *Client) observe(path, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveAmadeusRequest(path, status, time.Since(start))
}
