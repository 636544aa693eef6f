package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"opsmap/internal/domain"
)

// ErrStatus is wrapped by every StatusError
var ErrStatus = errors.New("provider returned an error status")

// NetworkProvider supplies topology snapshots
type NetworkProvider interface {
	FetchNetwork(ctx context.Context) (*domain.Network, error)
}

// Uploader replaces the provider's network with an uploaded file
type Uploader interface {
	UploadNetwork(ctx context.Context, filename string, r io.Reader) (*UploadResult, error)
}

// Optimizer computes the Pareto endpoints for a request
type Optimizer interface {
	Pareto(ctx context.Context, req domain.OptimizeRequest) (*domain.ParetoResponse, error)
}

// UploadResult is the provider's acknowledgement of an uploaded network
type UploadResult struct {
	Status string `json:"status"`
	Nodes  int    `json:"nodes"`
	Edges  int    `json:"edges"`
}

// StatusError is a non-2xx provider response
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s failed: %d %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// FetchAll fetches the network and the optimization results concurrently.
// Either failure cancels the other request.
func FetchAll(ctx context.Context, np NetworkProvider, opt Optimizer, req domain.OptimizeRequest) (*domain.Network, *domain.ParetoResponse, error) {
	var (
		network  *domain.Network
		solution *domain.ParetoResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := np.FetchNetwork(gctx)
		if err != nil {
			return err
		}
		network = n
		return nil
	})
	g.Go(func() error {
		s, err := opt.Pareto(gctx, req)
		if err != nil {
			return err
		}
		solution = s
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return network, solution, nil
}
