package roster

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// Rejection records why a roster image was excluded from the mapping.
type Rejection struct {
	File   string
	Reason string
}

// Store loads and caches the roster. A rebuild happens only when the
// directory fingerprint changes (or the store was marked dirty) and
// completes into a fresh Roster that replaces the old one atomically;
// readers always see a full mapping.
type Store struct {
	dir       string
	model     string
	encoder   Encoder
	cacheFile string
	progress  bool
	logger    zerolog.Logger

	dirty atomic.Bool

	mu         sync.RWMutex
	current    *Roster
	rejections []Rejection
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCacheFile persists loaded encodings to path so a restart with an
// unchanged roster skips re-encoding.
func WithCacheFile(path string) StoreOption {
	return func(s *Store) { s.cacheFile = path }
}

// WithProgress renders a progress bar while images are encoded.
func WithProgress() StoreOption {
	return func(s *Store) { s.progress = true }
}

// WithLogger overrides the package logger.
func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a roster store over dir. The model is handed to the
// encoder unchanged ("fast" or "accurate").
func NewStore(dir, model string, encoder Encoder, opts ...StoreOption) *Store {
	s := &Store{
		dir:     dir,
		model:   model,
		encoder: encoder,
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the current roster, rebuilding it when the directory
// fingerprint changed since the last successful load. Concurrent calls
// during a rebuild never observe a partial mapping.
func (s *Store) Get(ctx context.Context) (*Roster, error) {
	fp, err := Fingerprint(s.dir)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()
	if current != nil && current.Fingerprint() == fp && !s.dirty.Load() {
		return current, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have finished the rebuild while we waited.
	if s.current != nil && s.current.Fingerprint() == fp && !s.dirty.Load() {
		return s.current, nil
	}

	if cached := s.loadCache(fp); cached != nil {
		s.current = cached
		s.rejections = nil
		s.dirty.Store(false)
		s.logger.Info().Int("identities", cached.Len()).Msg("roster loaded from cache")
		return cached, nil
	}

	roster, rejections, err := s.load(ctx, fp)
	if err != nil {
		return nil, err
	}

	s.current = roster
	s.rejections = rejections
	s.dirty.Store(false)
	s.saveCache(roster)

	s.logger.Info().
		Int("identities", roster.Len()).
		Int("rejected", len(rejections)).
		Msg("roster loaded")
	return roster, nil
}

// MarkDirty forces a rebuild on the next Get even if the fingerprint is
// unchanged. Used by the directory watcher.
func (s *Store) MarkDirty() {
	s.dirty.Store(true)
}

// Rejections returns the files excluded during the last full load.
func (s *Store) Rejections() []Rejection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rejection, len(s.rejections))
	copy(out, s.rejections)
	return out
}

// load reads every roster image, encodes it and builds a fresh mapping.
// Files with zero or more than one detectable face are rejected
// individually; a directory with no loadable faces yields an empty
// roster, not an error.
func (s *Store) load(ctx context.Context, fingerprint uint64) (*Roster, []Rejection, error) {
	files, err := listImages(s.dir)
	if err != nil {
		return nil, nil, err
	}

	var bar *progressbar.ProgressBar
	if s.progress && len(files) > 0 {
		bar = progressbar.Default(int64(len(files)), "loading roster")
	}

	encodings := make(map[string][]float32, len(files))
	var rejections []Rejection

	reject := func(file, reason string) {
		rejections = append(rejections, Rejection{File: file, Reason: reason})
		s.logger.Warn().Str("file", file).Str("reason", reason).Msg("roster image rejected")
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if bar != nil {
			_ = bar.Add(1)
		}

		id := strings.TrimSuffix(f.name, filepath.Ext(f.name))

		data, err := os.ReadFile(f.path)
		if err != nil {
			reject(f.name, "unreadable: "+err.Error())
			continue
		}

		prepared, err := prepareImage(data)
		if err != nil {
			reject(f.name, "undecodable: "+err.Error())
			continue
		}

		faces, err := s.encoder.EncodeFaces(ctx, prepared, s.model)
		if err != nil {
			reject(f.name, "encoding failed: "+err.Error())
			continue
		}
		switch len(faces) {
		case 0:
			reject(f.name, "no face detected")
			continue
		case 1:
			encodings[id] = faces[0].Embedding
		default:
			reject(f.name, "multiple faces detected")
			continue
		}
	}

	return NewRoster(encodings, fingerprint), rejections, nil
}
