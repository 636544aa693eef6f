package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"opsmap/internal/domain"
)

// maxErrorBody caps how much of an error response is kept in the message
const maxErrorBody = 512

// Client is the HTTP client for the network data API and the optimizer.
//
// Network endpoints are GET {NetworkURL}/network and
// POST {NetworkURL}/upload-network. The optimizer endpoint is
// POST {OptimizerURL}/pareto, where OptimizerURL defaults to NetworkURL.
type Client struct {
	NetworkURL   string
	OptimizerURL string
	HTTPClient   *http.Client

	group singleflight.Group
}

var (
	_ NetworkProvider = (*Client)(nil)
	_ Optimizer       = (*Client)(nil)
	_ Uploader        = (*Client)(nil)
)

// NewClient creates a client with the given request timeout
func NewClient(networkURL, optimizerURL string, timeout time.Duration) *Client {
	if optimizerURL == "" {
		optimizerURL = networkURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		NetworkURL:   strings.TrimSuffix(networkURL, "/"),
		OptimizerURL: strings.TrimSuffix(optimizerURL, "/"),
		HTTPClient:   &http.Client{Timeout: timeout},
	}
}

// FetchNetwork retrieves the current topology. Concurrent callers share one
// request. The shared request is bounded by the client timeout rather than
// by any one caller's context; a cancelled caller returns early on its own.
func (c *Client) FetchNetwork(ctx context.Context) (*domain.Network, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan("network", func() (interface{}, error) {
		network := domain.NewNetwork()
		if err := c.do(shared, http.MethodGet, c.NetworkURL+"/network", nil, "", network); err != nil {
			return nil, err
		}
		if network.Nodes == nil {
			network.Nodes = make([]domain.Node, 0)
		}
		if network.Edges == nil {
			network.Edges = make([]domain.Edge, 0)
		}
		return network, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Network), nil
	}
}

// Pareto requests the congestion-optimal and delay-optimal solutions
func (c *Client) Pareto(ctx context.Context, req domain.OptimizeRequest) (*domain.ParetoResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp domain.ParetoResponse
	if err := c.do(ctx, http.MethodPost, c.OptimizerURL+"/pareto", bytes.NewReader(body), "application/json", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadNetwork sends a network file as multipart field "file"
func (c *Client) UploadNetwork(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	var result UploadResult
	if err := c.do(ctx, http.MethodPost, c.NetworkURL+"/upload-network", &buf, mw.FormDataContentType(), &result); err != nil {
		return nil, err
	}
	// A fresh upload supersedes any in-flight fetch
	c.group.Forget("network")
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(text)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, url, err)
	}
	return nil
}
