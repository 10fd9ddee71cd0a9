package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"storygraph/internal/config"
)

type Driver string

const (
	DriverFS Driver = "fs"
	DriverS3 Driver = "s3"
)

const (
	extJSON = ".json"
	extZstd = ".json.zst"
)

var ErrNotFound = errors.New("snapshot not found")

type Info struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store holds exported plot documents as opaque blobs addressed by key.
type Store interface {
	Driver() Driver
	Put(ctx context.Context, key string, r io.Reader) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Info, error)
}

var now = time.Now

// Open builds the snapshot store named by cfg.Driver.
func Open(ctx context.Context, cfg config.SnapshotConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFS, "":
		return NewFS(cfg.Root)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown snapshot driver %q", cfg.Driver)
	}
}

// Key returns the object key for a snapshot of plot taken at t.
func Key(plot string, t time.Time, compress bool) string {
	ext := extJSON
	if compress {
		ext = extZstd
	}
	return path.Join(slug(plot), t.UTC().Format("20060102T150405.000000000Z")+ext)
}

// Export writes doc under a fresh key for plot, zstd-compressed when asked.
func Export(ctx context.Context, s Store, plot string, doc []byte, compress bool) (Info, error) {
	if strings.TrimSpace(plot) == "" {
		return Info{}, fmt.Errorf("exporting snapshot: plot name is required")
	}
	body := doc
	if compress {
		var err error
		body, err = compressDocument(doc)
		if err != nil {
			return Info{}, fmt.Errorf("exporting snapshot: %w", err)
		}
	}
	info, err := s.Put(ctx, Key(plot, now(), compress), bytes.NewReader(body))
	if err != nil {
		return Info{}, fmt.Errorf("exporting snapshot: %w", err)
	}
	return info, nil
}

// Import reads the document stored under key, decompressing .zst blobs.
func Import(ctx context.Context, s Store, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("importing snapshot %s: %w", key, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if strings.HasSuffix(key, ".zst") {
		decoder, err := zstd.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer decoder.Close()
		r = decoder
	}

	doc, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("importing snapshot %s: %w", key, err)
	}
	return doc, nil
}

// Latest returns the newest snapshot of plot, or ErrNotFound.
func Latest(ctx context.Context, s Store, plot string) (Info, error) {
	infos, err := s.List(ctx, slug(plot)+"/")
	if err != nil {
		return Info{}, err
	}
	if len(infos) == 0 {
		return Info{}, fmt.Errorf("%s: %w", plot, ErrNotFound)
	}
	// Keys embed a sortable timestamp and List returns them sorted.
	return infos[len(infos)-1], nil
}

func compressDocument(doc []byte) ([]byte, error) {
	var compressed bytes.Buffer
	encoder, err := zstd.NewWriter(&compressed)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	if _, err := encoder.Write(doc); err != nil {
		encoder.Close()
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}
	return compressed.Bytes(), nil
}

// slug maps a plot name to a key prefix. Names that do not survive the
// mapping intact get a hash of the lowercased name appended.
func slug(name string) string {
	canonical := strings.ToLower(strings.TrimSpace(name))
	s := asciiSlug(canonical)
	if s == canonical {
		return s
	}
	sum := fmt.Sprintf("%016x", xxhash.Sum64String(canonical))[:8]
	if s == "" {
		return sum
	}
	return s + "-" + sum
}

func asciiSlug(canonical string) string {
	var b strings.Builder
	dash := false
	for _, r := range canonical {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
