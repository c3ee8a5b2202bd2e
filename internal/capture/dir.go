package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// imageExtensions lists the file types a DirSource will pick up.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
}

// DirSource replays image files from a directory as a frame stream, in
// filename order. Used for offline processing and tests; the interval
// paces delivery like a real camera would.
type DirSource struct {
	paths    []string
	interval time.Duration

	mu     sync.Mutex
	next   int
	closed bool
}

// OpenDir builds a source over the image files in dir. An empty
// directory yields an immediate end of stream, not an error.
func OpenDir(dir string, interval time.Duration) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &CaptureError{Err: fmt.Errorf("read frame directory: %w", err)}
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	return &DirSource{paths: paths, interval: interval}, nil
}

func (s *DirSource) Next(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	if s.closed || s.next >= len(s.paths) {
		s.mu.Unlock()
		return Frame{}, ErrEndOfStream
	}
	path := s.paths[s.next]
	s.next++
	seq := s.next
	s.mu.Unlock()

	if s.interval > 0 {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-time.After(s.interval):
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Frame{}, &CaptureError{Err: fmt.Errorf("read frame %s: %w", path, err)}
	}

	return Frame{Data: data, Seq: seq, Taken: time.Now()}, nil
}

// Close stops the stream; subsequent Next calls return ErrEndOfStream.
func (s *DirSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
