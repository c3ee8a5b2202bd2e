package roster

import (
	"encoding/gob"
	"os"
	"path/filepath"
)

// cachePayload is the on-disk representation of a loaded roster.
type cachePayload struct {
	Fingerprint uint64
	Encodings   map[string][]float32
}

// loadCache returns the cached roster when the cache file exists and
// matches the current fingerprint, nil otherwise. A corrupt cache is
// ignored; the roster is simply rebuilt from the images.
func (s *Store) loadCache(fingerprint uint64) *Roster {
	if s.cacheFile == "" {
		return nil
	}

	f, err := os.Open(s.cacheFile)
	if err != nil {
		return nil
	}
	defer f.Close()

	var payload cachePayload
	if err := gob.NewDecoder(f).Decode(&payload); err != nil {
		s.logger.Warn().Err(err).Str("file", s.cacheFile).Msg("ignoring corrupt roster cache")
		return nil
	}
	if payload.Fingerprint != fingerprint {
		return nil
	}
	return NewRoster(payload.Encodings, payload.Fingerprint)
}

// saveCache writes the roster to the cache file via a temp file and
// rename, so a crash never leaves a truncated cache behind. Failures
// are logged, never fatal.
func (s *Store) saveCache(r *Roster) {
	if s.cacheFile == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.cacheFile), 0o755); err != nil {
		s.logger.Warn().Err(err).Msg("failed to create roster cache directory")
		return
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.cacheFile), "roster-*.gob")
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to create roster cache temp file")
		return
	}
	defer os.Remove(tmp.Name())

	payload := cachePayload{Fingerprint: r.Fingerprint(), Encodings: r.encodings}
	if err := gob.NewEncoder(tmp).Encode(payload); err != nil {
		tmp.Close()
		s.logger.Warn().Err(err).Msg("failed to write roster cache")
		return
	}
	if err := tmp.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to close roster cache temp file")
		return
	}
	if err := os.Rename(tmp.Name(), s.cacheFile); err != nil {
		s.logger.Warn().Err(err).Msg("failed to move roster cache into place")
	}
}
