// Package api implements the client for the remote media API: paginated
// feed fetches, the category listing, single-item lookup and raw media
// downloads.
//
// The client applies a token-bucket rate limit to outgoing requests
// (golang.org/x/time/rate), attaches a correlation id per request, and
// distinguishes three failure classes for callers:
//
//   - transport failures are returned unchanged (no retry at this layer);
//   - undecodable payloads become *WrongServerResponseError;
//   - non-2xx statuses become *StatusError, carrying the HTTP code.
//
// Application-level errors that arrive inside a 200 payload (a non-empty
// errorMessage field) are not interpreted here; the service layer owns that
// check.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/gfycat/feedcore/internal/domain"
	"github.com/gfycat/feedcore/internal/feedid"
)

const requestIDHeader = "X-Request-ID"

// StatusError reports a non-2xx response from the remote host.
type StatusError struct {
	Code int
	URL  string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("api: %s returned status %d", e.URL, e.Code)
}

// WrongServerResponseError reports a payload that could not be decoded into
// the expected shape.
type WrongServerResponseError struct {
	URL   string
	Cause error
}

// Error implements error.
func (e *WrongServerResponseError) Error() string {
	return fmt.Sprintf("api: malformed response from %s: %v", e.URL, e.Cause)
}

// Unwrap returns the decoding error.
func (e *WrongServerResponseError) Unwrap() error { return e.Cause }

// Client talks to the remote media API. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. "https://api.gfycat.com/v1".
	BaseURL string
	// RequestsPerSecond caps outgoing request rate; zero disables the cap.
	RequestsPerSecond float64
	// Burst is the rate limiter burst size; values <= 0 are coerced to 1.
	Burst int
	// Timeout bounds each request; zero means 30s.
	Timeout time.Duration
}

// NewClient constructs a Client.
func NewClient(opts Options, log zerolog.Logger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    opts.BaseURL,
		limiter:    limiter,
		log:        log.With().Str("component", "api-client").Logger(),
	}
}

// FetchPage requests the first page of the feed named by id.
func (c *Client) FetchPage(ctx context.Context, id feedid.Identifier, count int) (*domain.GfycatList, error) {
	return c.fetchFeed(ctx, id, "", count)
}

// FetchMore requests the page following digest for the feed named by id.
func (c *Client) FetchMore(ctx context.Context, id feedid.Identifier, digest string, count int) (*domain.GfycatList, error) {
	return c.fetchFeed(ctx, id, digest, count)
}

func (c *Client) fetchFeed(ctx context.Context, id feedid.Identifier, digest string, count int) (*domain.GfycatList, error) {
	pub, ok := id.(feedid.Public)
	if !ok {
		return nil, fmt.Errorf("api: feed %q has no remote endpoint", id.Serialize())
	}
	path, query := pub.RequestPath()
	query.Set("count", strconv.Itoa(count))
	if digest != "" {
		query.Set("cursor", digest)
	}

	var list domain.GfycatList
	if err := c.getJSON(ctx, path, query, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Categories requests the curated category listing for localeTag.
func (c *Client) Categories(ctx context.Context, localeTag language.Tag) (*domain.CategoriesList, error) {
	query := url.Values{}
	if localeTag != language.Und {
		base, _ := localeTag.Base()
		query.Set("locale", base.String())
	}

	var list domain.CategoriesList
	if err := c.getJSON(ctx, "reactions/populated", query, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// OneGfycat requests the full record of a single item.
func (c *Client) OneGfycat(ctx context.Context, gfyID string) (*domain.Gfycat, error) {
	var payload struct {
		GfyItem domain.Gfycat `json:"gfyItem"`
	}
	if err := c.getJSON(ctx, "gfycats/"+url.PathEscape(gfyID), nil, &payload); err != nil {
		return nil, err
	}
	return &payload.GfyItem, nil
}

// DownloadMedia streams the resource at rawURL. The caller owns the
// returned body. A non-2xx status yields *StatusError with the code, which
// callers use to recognize forbidden (403) content.
func (c *Client) DownloadMedia(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	return resp.Body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	fullURL := c.baseURL + "/" + path
	if encoded := query.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("request_id", requestID).
		Str("url", fullURL).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, URL: fullURL}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &WrongServerResponseError{URL: fullURL, Cause: err}
	}
	return nil
}
