package bundle

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

const (
	// BundleFileName matches the artifact name of the original deployment so
	// existing MODEL_DIR layouts keep working.
	BundleFileName = "model_bundle.pkl"
	// MetaFileName is the optional human-readable sidecar.
	MetaFileName = "model_meta.json"
)

// ErrBundleUnavailable signals that no bundle artifact exists yet.
var ErrBundleUnavailable = errors.New("bundle: model not loaded")

// Store persists and serves the bundle artifact. Loads are cached in process
// memory keyed by the file's modification time: reads are lock-free via an
// atomic pointer, and only the reload path takes the mutex. A reader racing a
// reload observes either the old or the new bundle, never a partial one.
type Store struct {
	dir string

	mu     sync.Mutex
	cached atomic.Pointer[cachedBundle]
}

type cachedBundle struct {
	bundle  *Bundle
	modTime time.Time
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the bundle artifact path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, BundleFileName)
}

// SaveOptions control serialization of the artifact.
type SaveOptions struct {
	Compress bool
	SaveMeta bool
}

// Save writes the bundle to a temporary file in the same directory and renames
// it into place, so concurrent readers only ever observe complete artifacts.
func (s *Store) Save(b *Bundle, opts SaveOptions) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, BundleFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp bundle: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := encodeBundle(tmp, b, opts.Compress); err != nil {
		tmp.Close()
		return fmt.Errorf("encode bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp bundle: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		return fmt.Errorf("publish bundle: %w", err)
	}

	if opts.SaveMeta {
		if err := s.writeMetaSidecar(b); err != nil {
			// The artifact itself is already published; the sidecar is a
			// convenience copy.
			log.Warn().Err(err).Msg("bundle: failed to write meta sidecar")
		}
	}

	return nil
}

// Load returns the current bundle, reloading from disk only when the file's
// modification time changed since the cached decode.
func (s *Store) Load() (*Bundle, error) {
	info, err := os.Stat(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBundleUnavailable
		}
		return nil, fmt.Errorf("stat bundle: %w", err)
	}

	if c := s.cached.Load(); c != nil && c.modTime.Equal(info.ModTime()) {
		return c.bundle, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have reloaded while we waited for the lock.
	if c := s.cached.Load(); c != nil && c.modTime.Equal(info.ModTime()) {
		return c.bundle, nil
	}

	b, err := s.readBundle()
	if err != nil {
		return nil, err
	}
	s.cached.Store(&cachedBundle{bundle: b, modTime: info.ModTime()})
	log.Info().
		Int("groups", len(b.Groups)).
		Int("features", len(b.FeatureColumns)).
		Time("created_at", b.Meta.CreatedAt).
		Msg("bundle: loaded model artifact")
	return b, nil
}

// ModTime reports the artifact's modification time, zero when absent.
func (s *Store) ModTime() time.Time {
	info, err := os.Stat(s.Path())
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func (s *Store) readBundle() (*Bundle, error) {
	f, err := os.Open(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBundleUnavailable
		}
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	var r io.Reader = f

	// Sniff the gzip magic so compressed and plain artifacts both load.
	var magic [2]byte
	n, err := io.ReadFull(f, magic[:])
	if err != nil && n == 0 {
		return nil, fmt.Errorf("read bundle header: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek bundle: %w", err)
	}
	if magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open compressed bundle: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var b Bundle
	if err := gob.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &b, nil
}

func encodeBundle(w io.Writer, b *Bundle, compress bool) error {
	if compress {
		gz := gzip.NewWriter(w)
		if err := gob.NewEncoder(gz).Encode(b); err != nil {
			gz.Close()
			return err
		}
		return gz.Close()
	}
	return gob.NewEncoder(w).Encode(b)
}

func (s *Store) writeMetaSidecar(b *Bundle) error {
	payload, err := json.MarshalIndent(b.Meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, MetaFileName), payload, 0644)
}
