// Package client talks to a remote inference server over its JSON
// protocol and presents it behind the same Engine interface a local
// backend implements.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/go-neuriplo/internal/inference"
	"github.com/example/go-neuriplo/internal/protocol"
)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
}

func defaultOptions() options {
	return options{
		timeout: 60 * time.Second,
	}
}

// Option configures the client.
type Option func(*options)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// Client is a remote engine. Construction probes the server and caches
// its model metadata; after that, Infer round-trips blobs over HTTP.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	meta         inference.Metadata
	modelPath    string
	gpuAvailable bool
	tracker      inference.Tracker
}

// New connects to host:port, verifies health, and fetches model
// metadata. A server that cannot be reached fails construction.
func New(ctx context.Context, host string, port int, optFns ...Option) (*Client, error) {
	return NewFromURL(ctx, fmt.Sprintf("http://%s:%d", host, port), optFns...)
}

// NewFromURL is New for callers that already hold a base URL, mainly
// tests against httptest servers.
func NewFromURL(ctx context.Context, baseURL string, optFns ...Option) (*Client, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	httpClient := opts.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.timeout}
	}

	c := &Client{baseURL: baseURL, httpClient: httpClient}

	var health protocol.HealthResponse
	if err := c.getJSON(ctx, "/health", &health); err != nil {
		return nil, fmt.Errorf("server unreachable at %s: %w", c.baseURL, err)
	}

	c.modelPath = health.ModelPath
	c.gpuAvailable = health.GPUAvailable

	var meta inference.Metadata
	if err := c.getJSON(ctx, "/model_info", &meta); err != nil {
		return nil, fmt.Errorf("fetch model info: %w", err)
	}

	c.meta = meta

	return c, nil
}

func (c *Client) Metadata() (inference.Metadata, error) {
	if c.meta.Empty() {
		return inference.Metadata{}, inference.ErrNoMetadata
	}

	return c.meta, nil
}

// Infer sends the first input buffer to the server and decodes the
// typed outputs. The blob's shape and element type come from the cached
// metadata, so the buffer must match the resolved input exactly.
func (c *Client) Infer(ctx context.Context, inputs [][]byte) ([]inference.Output, error) {
	declared := c.meta.Inputs()
	if len(declared) == 0 {
		return nil, &inference.ExecutionError{Err: inference.ErrNoMetadata}
	}

	if len(inputs) != 1 {
		return nil, &inference.ExecutionError{
			Err: fmt.Errorf("remote protocol carries exactly one input, got %d buffers", len(inputs)),
		}
	}

	in := declared[0]
	blob := protocol.NewBlob(inputs[0], in.FullShape(), in.DType)

	body, err := json.Marshal(protocol.InferRequest{InputBlob: blob})
	if err != nil {
		return nil, &inference.ExecutionError{Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/infer", bytes.NewReader(body))
	if err != nil {
		return nil, &inference.ExecutionError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &inference.ExecutionError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &inference.ExecutionError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &inference.ExecutionError{Err: errors.New(remoteError(resp.StatusCode, payload))}
	}

	var inferResp protocol.InferResponse
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&inferResp); err != nil {
		return nil, &inference.ExecutionError{Err: fmt.Errorf("decode response: %w", err)}
	}

	outputs, err := protocol.DecodeOutputs(inferResp.Outputs)
	if err != nil {
		return nil, &inference.ExecutionError{Err: err}
	}

	c.tracker.Observe(time.Duration(inferResp.InferenceTimeMS * float64(time.Millisecond)))

	return outputs, nil
}

// ServerStats fetches the server-side aggregate counters.
func (c *Client) ServerStats(ctx context.Context) (protocol.StatsResponse, error) {
	var stats protocol.StatsResponse
	if err := c.getJSON(ctx, "/stats", &stats); err != nil {
		return protocol.StatsResponse{}, err
	}

	return stats, nil
}

func (c *Client) Stats() inference.Stats {
	return c.tracker.Stats()
}

func (c *Client) GPUAvailable() bool {
	return c.gpuAvailable
}

func (c *Client) ModelPath() string {
	return c.modelPath
}

func (c *Client) BatchSize() int64 {
	inputs := c.meta.Inputs()
	if len(inputs) == 0 {
		return 1
	}

	return inputs[0].BatchSize
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return errors.New(remoteError(resp.StatusCode, payload))
	}

	return json.Unmarshal(payload, out)
}

// remoteError extracts the server's {"error": ...} message when present.
func remoteError(status int, payload []byte) string {
	var errResp protocol.ErrorResponse
	if err := json.Unmarshal(payload, &errResp); err == nil && errResp.Error != "" {
		return fmt.Sprintf("server returned %d: %s", status, errResp.Error)
	}

	return fmt.Sprintf("server returned %d", status)
}

// ---------------------------------------------------------------------------
// One-shot helpers for the CLI
// ---------------------------------------------------------------------------

// Probe fetches /health without constructing a full client.
func Probe(ctx context.Context, host string, port int) (protocol.HealthResponse, error) {
	c := &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	var health protocol.HealthResponse
	if err := c.getJSON(ctx, "/health", &health); err != nil {
		return protocol.HealthResponse{}, err
	}

	return health, nil
}

// FetchStats fetches /stats without constructing a full client.
func FetchStats(ctx context.Context, host string, port int) (protocol.StatsResponse, error) {
	c := &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	var stats protocol.StatsResponse
	if err := c.getJSON(ctx, "/stats", &stats); err != nil {
		return protocol.StatsResponse{}, err
	}

	return stats, nil
}

var _ inference.Engine = (*Client)(nil)
