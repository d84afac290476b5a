// Package storage provides read access to model artifacts (classifier
// weight files, label tables) kept on local disk or in an S3-compatible
// object store.
//
// Artifacts are addressed by URI:
//
//	/var/lib/ecosight/head.yaml       local file
//	file:///var/lib/ecosight/head.yaml
//	s3://models/ecosight/head.msgpack  object in bucket "models"
//
// Use [Resolve] to turn a URI into a Store and a path within it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
)

// Store is a read-only, path-addressed artifact store.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type Store interface {
	// Open opens the named artifact for reading.
	// The caller must close the returned ReadCloser when done.
	// If the artifact does not exist, an error wrapping os.ErrNotExist is
	// returned.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists reports whether the named artifact exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// MaxArtifactSize bounds ReadFile.
const MaxArtifactSize = 256 << 20

var (
	// ErrInvalidPath is returned for paths that escape the store root.
	ErrInvalidPath = errors.New("storage: invalid path")

	// ErrTooLarge is returned by ReadFile for artifacts over MaxArtifactSize.
	ErrTooLarge = errors.New("storage: artifact too large")
)

// ReadFile reads a whole artifact into memory.
func ReadFile(ctx context.Context, s Store, path string) ([]byte, error) {
	rc, err := s.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxArtifactSize+1))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	if len(data) > MaxArtifactSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, path)
	}
	return data, nil
}

// Resolve maps an artifact URI to a store and the path of the artifact
// inside it. S3 URIs use a client built from cfg.
func Resolve(uri string, cfg S3Config) (Store, string, error) {
	if uri == "" {
		return nil, "", fmt.Errorf("%w: empty uri", ErrInvalidPath)
	}
	if !strings.Contains(uri, "://") {
		return resolveLocal(uri)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, "", fmt.Errorf("storage: parse %q: %w", uri, err)
	}
	switch u.Scheme {
	case "file":
		return resolveLocal(u.Path)
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, "", fmt.Errorf("%w: %q needs bucket and key", ErrInvalidPath, uri)
		}
		return NewS3(NewS3Client(cfg), u.Host, ""), key, nil
	default:
		return nil, "", fmt.Errorf("storage: unsupported scheme %q", u.Scheme)
	}
}

// URI names path inside s as a file:// or s3:// URI, the form Resolve
// accepts. Stores of other types return path unchanged.
func URI(s Store, path string) string {
	switch st := s.(type) {
	case *Local:
		full := filepath.Join(st.Root(), filepath.FromSlash(path))
		return "file://" + filepath.ToSlash(full)
	case *S3Store:
		return "s3://" + st.Bucket() + "/" + st.key(path)
	}
	return path
}

func resolveLocal(path string) (Store, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	l, err := NewLocal(filepath.Dir(abs))
	if err != nil {
		return nil, "", err
	}
	return l, filepath.Base(abs), nil
}
