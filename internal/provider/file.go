package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"opsmap/internal/codec"
	"opsmap/internal/domain"
	"opsmap/internal/watcher"
)

// FileProvider serves the network from a local file in any supported
// codec format
type FileProvider struct {
	path     string
	debounce time.Duration
}

var (
	_ NetworkProvider = (*FileProvider)(nil)
	_ Uploader        = (*FileProvider)(nil)
)

// NewFileProvider creates a provider for path. The format follows the
// file extension.
func NewFileProvider(path string) (*FileProvider, error) {
	if _, err := codec.ForPath(path); err != nil {
		return nil, err
	}
	return &FileProvider{path: path, debounce: watcher.DefaultDebounce}, nil
}

// WithDebounce sets the reload debounce used by Watch
func (p *FileProvider) WithDebounce(d time.Duration) *FileProvider {
	if d > 0 {
		p.debounce = d
	}
	return p
}

// Path returns the backing file
func (p *FileProvider) Path() string {
	return p.path
}

// FetchNetwork reads and parses the file
func (p *FileProvider) FetchNetwork(ctx context.Context) (*domain.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := codec.ForPath(p.path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open network file: %w", err)
	}
	defer f.Close()

	network, err := c.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p.path, err)
	}
	return network, nil
}

// UploadNetwork parses the upload by its filename and replaces the backing
// file, converting between formats when they differ
func (p *FileProvider) UploadNetwork(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	in, err := codec.ForPath(filename)
	if err != nil {
		return nil, err
	}
	network, err := in.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := codec.ForPath(p.path)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := out.Export(network, &buf); err != nil {
		return nil, err
	}

	// Write then rename so a watcher never sees a half-written file
	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write network file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write network file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return nil, fmt.Errorf("failed to replace network file: %w", err)
	}

	return &UploadResult{Status: "ok", Nodes: len(network.Nodes), Edges: len(network.Edges)}, nil
}

// Watch calls onChange after the file changes on disk. It blocks until ctx
// is cancelled.
func (p *FileProvider) Watch(ctx context.Context, onChange func()) error {
	w := watcher.New(p.path, func(string) { onChange() }).WithDebounce(p.debounce)
	return w.Watch(ctx)
}
