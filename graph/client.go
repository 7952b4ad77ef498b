package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	userAgent      = "onedrive-upload/1.0"
)

// Client is an HTTP client for the Microsoft Graph API.
// Requests are throttled by a token-bucket limiter and are never retried:
// an upload body is a stream and cannot be replayed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient sets the client whose Timeout and Transport are used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit allows rps requests per second with the given burst.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a Graph API client.
// baseURL is typically DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 0),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// authorizedClient returns an http.Client that adds the bearer token to every request.
func (c *Client) authorizedClient(accessToken string) *http.Client {
	return &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   c.httpClient.Transport,
		},
	}
}

// UploadContent stores r as filename in the root of the user's drive with a single PUT,
// replacing any existing file of that name. size may be -1 when unknown.
//
// A non-2xx response is returned as *GraphError carrying the remote status and body.
// Any other error means the request did not complete.
func (c *Client) UploadContent(ctx context.Context, accessToken, filename string, r io.Reader, size int64) (*Item, error) {
	path, err := UploadPath(filename)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("name", filename).
		Int64("size", size).
		Msg("simple upload")

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("graph: waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("graph: creating upload request: %w", err)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.authorizedClient(accessToken).Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("upload request failed")
		return nil, fmt.Errorf("graph: upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if sentinel := classifyStatus(resp.StatusCode); sentinel != nil {
		errBody, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message
		graphErr := &GraphError{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get("request-id"),
			Message:    string(errBody),
			Err:        sentinel,
		}
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("request_id", graphErr.RequestID).
			Msg("upload rejected")
		return nil, graphErr
	}

	var dir driveItemResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&dir); decErr != nil {
		// The file is stored; only the metadata is unusable.
		c.logger.Debug().Err(decErr).Msg("decoding upload response")
		return &Item{Name: filename, Size: size}, nil
	}

	item := dir.toItem()
	return &item, nil
}
