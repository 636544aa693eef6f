package codec

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"opsmap/internal/domain"
)

// ErrUnsupportedFormat is returned for unknown format names or extensions
var ErrUnsupportedFormat = errors.New("unsupported format")

// Importer interface for importing network snapshots from various formats
type Importer interface {
	Parse(r io.Reader) (*domain.Network, error)
	Format() string
}

// Exporter interface for exporting network snapshots to various formats
type Exporter interface {
	Export(network *domain.Network, w io.Writer) error
	Format() string
}

// Codec both imports and exports
type Codec interface {
	Importer
	Exporter
}

// ForFormat returns the codec for a format name
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	case "xlsx", "excel":
		return NewXLSXCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ForPath picks a codec from a file extension
func ForPath(path string) (Codec, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil, fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, path)
	}
	return ForFormat(ext)
}
