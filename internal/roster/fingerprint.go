package roster

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// imageExtensions lists the roster image types the loader accepts.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
}

// LoadError means the roster directory itself is unusable. Individual
// unreadable files are skipped, never wrapped in a LoadError.
type LoadError struct {
	Dir string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("roster directory %s: %v", e.Dir, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Fingerprint aggregates (filename, size, mtime) of every roster image
// in dir into a single value. Any file added, removed, renamed or
// rewritten changes the fingerprint.
func Fingerprint(dir string) (uint64, error) {
	files, err := listImages(dir)
	if err != nil {
		return 0, err
	}

	h := fnv.New64a()
	for _, f := range files {
		fmt.Fprintf(h, "%s|%d|%d\n", f.name, f.size, f.mtimeNano)
	}
	return h.Sum64(), nil
}

type imageFile struct {
	name      string
	path      string
	size      int64
	mtimeNano int64
}

// listImages returns the roster image files in dir, sorted by name.
func listImages(dir string) ([]imageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{Dir: dir, Err: err}
	}

	var files []imageFile
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// The file vanished between ReadDir and Stat; treat it as absent.
			continue
		}
		files = append(files, imageFile{
			name:      entry.Name(),
			path:      filepath.Join(dir, entry.Name()),
			size:      info.Size(),
			mtimeNano: info.ModTime().UnixNano(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}
