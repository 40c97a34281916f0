// Package oai harvests OAI-PMH 2.0 repositories.
package oai

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/jlicht/krikri/internal/harvest/oai"

// ClientConfig configures the OAI-PMH wire client.
type ClientConfig struct {
	// Timeout for individual requests (default: 60s).
	Timeout time.Duration

	// RateLimit requests per second. Zero disables pacing.
	RateLimit float64

	// RateBurst maximum burst size (default: 1).
	RateBurst int

	// UserAgent string (default: "krikri/1.0").
	UserAgent string

	// Transport allows injecting a custom HTTP transport.
	Transport http.RoundTripper
}

// HTTPError is a non-2xx response from the repository.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("oai: http %s", e.Status)
}

// ListArgs are the selective harvesting arguments of a list request.
type ListArgs struct {
	MetadataPrefix string
	Set            string
	From           string
	Until          string
}

func (a ListArgs) values() url.Values {
	q := url.Values{}
	if a.MetadataPrefix != "" {
		q.Set("metadataPrefix", a.MetadataPrefix)
	}
	if a.Set != "" {
		q.Set("set", a.Set)
	}
	if a.From != "" {
		q.Set("from", a.From)
	}
	if a.Until != "" {
		q.Set("until", a.Until)
	}
	return q
}

// Client issues OAI-PMH requests against a single base URL.
type Client struct {
	baseURL     *url.URL
	config      ClientConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, config ClientConfig, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parsing base url: unsupported scheme %q", u.Scheme)
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RateBurst == 0 {
		config.RateBurst = 1
	}
	if config.UserAgent == "" {
		config.UserAgent = "krikri/1.0"
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: u,
		config:  config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		rateLimiter: rate.NewLimiter(limit, config.RateBurst),
		tracer:      otel.Tracer(tracerName),
		logger:      logger,
	}, nil
}

// BaseURL returns the repository endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Identify describes the repository.
func (c *Client) Identify(ctx context.Context) (*Identify, error) {
	env, err := c.do(ctx, "Identify", url.Values{})
	if err != nil {
		return nil, err
	}
	if env.Identify == nil {
		return nil, errors.New("oai: Identify response missing body")
	}
	return env.Identify, nil
}

// ListIdentifiers returns one page of headers and the token for the next.
// Pass an empty token for the first page. A noRecordsMatch error is an empty
// final page.
func (c *Client) ListIdentifiers(ctx context.Context, args ListArgs, token string) ([]Header, string, error) {
	env, err := c.do(ctx, "ListIdentifiers", listQuery(args, token))
	if err != nil {
		if isNoRecordsMatch(err) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if env.ListIdentifiers == nil {
		return nil, "", nil
	}
	return env.ListIdentifiers.Headers, tokenOf(env.ListIdentifiers.Token), nil
}

// ListRecords returns one page of records and the token for the next.
func (c *Client) ListRecords(ctx context.Context, args ListArgs, token string) ([]Record, string, error) {
	env, err := c.do(ctx, "ListRecords", listQuery(args, token))
	if err != nil {
		if isNoRecordsMatch(err) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if env.ListRecords == nil {
		return nil, "", nil
	}
	return env.ListRecords.Records, tokenOf(env.ListRecords.Token), nil
}

// GetRecord fetches a single record.
func (c *Client) GetRecord(ctx context.Context, identifier, metadataPrefix string) (*Record, error) {
	q := url.Values{}
	q.Set("identifier", identifier)
	q.Set("metadataPrefix", metadataPrefix)
	env, err := c.do(ctx, "GetRecord", q)
	if err != nil {
		return nil, err
	}
	if env.GetRecord == nil {
		return nil, errors.New("oai: GetRecord response missing body")
	}
	return &env.GetRecord.Record, nil
}

// listQuery builds list arguments. A resumption token is exclusive with the
// selective harvesting arguments.
func listQuery(args ListArgs, token string) url.Values {
	if token != "" {
		q := url.Values{}
		q.Set("resumptionToken", token)
		return q
	}
	return args.values()
}

func isNoRecordsMatch(err error) bool {
	var perr *ProtocolError
	return errors.As(err, &perr) && perr.Code == CodeNoRecordsMatch
}

func (c *Client) do(ctx context.Context, verb string, q url.Values) (*envelope, error) {
	ctx, span := c.tracer.Start(ctx, "oai."+verb, trace.WithAttributes(
		attribute.String("oai.verb", verb),
		attribute.String("oai.base_url", c.baseURL.String()),
		attribute.Bool("oai.resumption", q.Has("resumptionToken")),
	))
	defer span.End()

	env, err := c.doOnce(ctx, verb, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return env, nil
}

func (c *Client) doOnce(ctx context.Context, verb string, q url.Values) (*envelope, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q.Set("verb", verb)
	u := *c.baseURL
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "text/xml, application/xml")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	c.logger.Debug("oai request",
		"verb", verb,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(started),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var env envelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", verb, err)
	}
	if err := env.err(); err != nil {
		return nil, err
	}
	return &env, nil
}
