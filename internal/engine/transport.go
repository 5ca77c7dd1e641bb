package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request describes one outbound request.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// Response is what a Transport produces for one attempt. Duration is
// valid even when the accompanying error is non-nil.
type Response struct {
	Status   int
	Body     []byte
	Duration time.Duration
}

// Transport performs one HTTP call. The engine is agnostic to whether
// the implementation goes directly to the target or through an
// intermediary that forwards the request; both satisfy this contract
// and engine behavior is identical either way.
type Transport interface {
	Send(ctx context.Context, req *Request) (Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (Response, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, req *Request) (Response, error) {
	return f(ctx, req)
}

// HTTPTransport sends requests with a shared net/http client.
//
// An optional proxy URL routes requests through an outbound HTTP proxy.
// Timeouts are not applied here; the dispatcher bounds each call with a
// context deadline.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport, optionally routed through
// proxyURL (empty for direct calls).
func NewHTTPTransport(proxyURL string) (*HTTPTransport, error) {
	transport := &http.Transport{
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &HTTPTransport{client: &http.Client{Transport: transport}}, nil
}

// Send performs the request and reads the full body. The returned
// duration covers connection, transfer, and body read.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (Response, error) {
	var bodyReader io.Reader
	if req.Body != "" {
		bodyReader = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return Response{}, err
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Response{Duration: time.Since(start)}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		return Response{Status: resp.StatusCode, Duration: duration}, err
	}

	return Response{Status: resp.StatusCode, Body: body, Duration: duration}, nil
}
