package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPClient guards an http.Client with a circuit breaker and a per-call timeout.
// Each call is a single attempt; failed calls are reported to the caller as-is.
type HTTPClient struct {
	Client  *http.Client
	Breaker *Breaker
	Timeout time.Duration
}

// NewInstrumentedClient returns an http.Client whose transport emits OpenTelemetry spans.
func NewInstrumentedClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Do executes req. 5xx responses count as breaker failures but are still returned
// to the caller so the body can be inspected. The caller closes the response body.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	if cl.Breaker != nil && !cl.Breaker.Allow(ctx) {
		return nil, ErrOpenCircuit
	}
	if cl.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cl.Timeout)
		resp, err := cl.Client.Do(req.WithContext(ctx))
		cl.report(ctx, resp, err)
		if err != nil {
			cancel()
			return nil, err
		}
		resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	resp, err := cl.Client.Do(req.WithContext(ctx))
	cl.report(ctx, resp, err)
	return resp, err
}

func (cl HTTPClient) report(ctx context.Context, resp *http.Response, err error) {
	if cl.Breaker == nil {
		return
	}
	cl.Breaker.Report(ctx, err == nil && resp.StatusCode < http.StatusInternalServerError)
}

// cancelOnClose releases the per-call timeout once the body has been consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
