package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/nucheck/internal/model"
)

// DefaultEndpoint is the public W3C Nu HTML Checker.
const DefaultEndpoint = "https://validator.w3.org/nu/"

// contentType is sent with every submission. Markup is always submitted as
// UTF-8; the markup package converts other charsets before it gets here.
const contentType = "text/html; charset=UTF-8"

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 32 * 1024 * 1024

// response is the subset of the out=json schema that nucheck uses.
type response struct {
	URL      string                    `json:"url,omitempty"`
	Messages []model.ValidationMessage `json:"messages"`
}

// Client submits markup to a Nu HTML Checker instance.
//
// The client never retries; a failed attempt stays failed.
type Client struct {
	// endpoint is the checker URL with out=json already set.
	endpoint string

	// httpClient performs the requests.
	httpClient *http.Client

	// userAgent is sent as the User-Agent header.
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout sets an overall request timeout. Zero keeps the transport
// defaults, which is also the default behavior.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient = &http.Client{Timeout: d, Transport: cl.httpClient.Transport}
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// NewClient creates a client for the checker at endpoint.
// The endpoint must be an absolute http or https URL.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	u, err := endpointURL(endpoint)
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint:   u,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// endpointURL validates endpoint and sets out=json, keeping any other
// query parameters.
func endpointURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidEndpoint
	}
	q := u.Query()
	q.Set("out", "json")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Validate submits markup and returns the checker's messages.
//
// A non-2xx status yields *RequestError; an undecodable body yields
// *ParseError. Transport failures are returned wrapped.
func (c *Client) Validate(ctx context.Context, markup string) ([]model.ValidationMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to create validator request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("validator request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // Best effort drain
		return nil, &RequestError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read validator response: %w", err)
	}

	return decode(body)
}

// decode parses an out=json body.
func decode(body []byte) ([]model.ValidationMessage, error) {
	var r response
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&r); err != nil {
		return nil, &ParseError{Err: err}
	}
	if r.Messages == nil {
		return make([]model.ValidationMessage, 0), nil
	}
	return r.Messages, nil
}
