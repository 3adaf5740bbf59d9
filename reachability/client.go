package reachability

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// maxBodySize caps how much of a health response body is decoded.
const maxBodySize = 1 << 20

// RequestOptions are the per-request settings handed to an HTTPClient.
type RequestOptions struct {
	// Timeout bounds the request. Implementations are trusted to enforce it.
	Timeout time.Duration
}

// Response is the part of an HTTP response a probe looks at.
type Response struct {
	StatusCode int
	// Data is the decoded JSON body, or nil if the body was not JSON.
	Data any
}

// HTTPClient is the capability a probe needs from an HTTP stack.
// Callers substitute their own stack by implementing it.
type HTTPClient interface {
	Get(ctx context.Context, url string, opts RequestOptions) (*Response, error)
}

// ClientFunc adapts a function to HTTPClient.
type ClientFunc func(ctx context.Context, url string, opts RequestOptions) (*Response, error)

// Get calls f.
func (f ClientFunc) Get(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
	return f(ctx, url, opts)
}

// stdClient is the built-in HTTPClient on top of net/http.
type stdClient struct {
	client *http.Client
}

// StdClient wraps an *http.Client. Each Get arms a deadline of
// opts.Timeout on the request context and releases it once the response
// has been read. A nil client uses a client from NewHTTPClient.
func StdClient(client *http.Client) HTTPClient {
	if client == nil {
		client, _ = NewHTTPClient()
	}
	return &stdClient{client: client}
}

// Get sends a GET request and decodes the body as JSON. Decode errors are
// ignored: the status code is all that matters to the caller.
func (c *stdClient) Get(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("http create request: %w", err)
	}
	req.Header.Set("User-Agent", "reachability/"+Version)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var data any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&data); err != nil {
		data = nil
	}

	return &Response{StatusCode: resp.StatusCode, Data: data}, nil
}

// TransportOption configures NewHTTPClient.
type TransportOption func(*transportConfig)

type transportConfig struct {
	tlsSkipVerify bool
	http2         bool
}

// WithTLSSkipVerify disables certificate verification.
func WithTLSSkipVerify(skip bool) TransportOption {
	return func(c *transportConfig) {
		c.tlsSkipVerify = skip
	}
}

// WithHTTP2 enables HTTP/2 negotiation over TLS on the transport.
func WithHTTP2(enabled bool) TransportOption {
	return func(c *transportConfig) {
		c.http2 = enabled
	}
}

// NewHTTPClient builds the *http.Client used by the built-in transport.
// It carries no client-level timeout; deadlines are set per request.
func NewHTTPClient(opts ...TransportOption) (*http.Client, error) {
	var cfg transportConfig
	for _, o := range opts {
		o(&cfg)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.tlsSkipVerify, //nolint:gosec // configurable by user
			MinVersion:         tls.VersionTLS12,
		},
	}
	if cfg.http2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("configure http2: %w", err)
		}
	}

	return &http.Client{Transport: transport}, nil
}
