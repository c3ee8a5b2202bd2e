package roster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// stubEncoder returns one face per image unless a per-image override
// says otherwise (keyed by raw image bytes).
type stubEncoder struct {
	mu        sync.Mutex
	calls     int
	overrides map[string][]Face
}

func (s *stubEncoder) EncodeFaces(_ context.Context, data []byte, _ string) ([]Face, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.overrides != nil {
		if faces, ok := s.overrides[string(data)]; ok {
			return faces, nil
		}
	}
	return []Face{{Embedding: []float32{float32(len(data))}, DetScore: 0.99}}, nil
}

func (s *stubEncoder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// writePNG writes a small solid-color PNG and returns its bytes.
func writePNG(t *testing.T, dir, name string, c color.Color, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := range size {
		for y := range size {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return buf.Bytes()
}

func TestGet_LoadsRosterFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "alice.png", color.RGBA{R: 255, A: 255}, 4)
	writePNG(t, dir, "bob.png", color.RGBA{G: 255, A: 255}, 5)

	s := NewStore(dir, "fast", &stubEncoder{})
	r, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if r.Len() != 2 {
		t.Fatalf("expected 2 identities, got %d", r.Len())
	}
	ids := r.IDs()
	if ids[0] != "alice" || ids[1] != "bob" {
		t.Errorf("unexpected ids: %v", ids)
	}
	if _, ok := r.Encoding("alice"); !ok {
		t.Error("missing encoding for alice")
	}
}

func TestGet_CacheIdempotence(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "alice.png", color.RGBA{R: 255, A: 255}, 4)
	enc := &stubEncoder{}
	s := NewStore(dir, "fast", enc)
	ctx := context.Background()

	first, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	second, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}

	if first != second {
		t.Error("unchanged roster must return the same snapshot")
	}
	if first.Fingerprint() != second.Fingerprint() {
		t.Error("fingerprints differ for unchanged roster")
	}
	if enc.callCount() != 1 {
		t.Errorf("expected 1 encode call, got %d", enc.callCount())
	}
}

func TestGet_FileAdditionTriggersOneRebuild(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "alice.png", color.RGBA{R: 255, A: 255}, 4)
	enc := &stubEncoder{}
	s := NewStore(dir, "fast", enc)
	ctx := context.Background()

	first, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	writePNG(t, dir, "bob.png", color.RGBA{G: 255, A: 255}, 5)

	second, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("Get after addition: %v", err)
	}
	if second.Fingerprint() == first.Fingerprint() {
		t.Error("fingerprint unchanged after file addition")
	}
	if second.Len() != 2 {
		t.Errorf("expected 2 identities after addition, got %d", second.Len())
	}
	// One call per image per rebuild: 1 (initial) + 2 (rebuild).
	if enc.callCount() != 3 {
		t.Errorf("expected 3 encode calls, got %d", enc.callCount())
	}

	// No further change, no further rebuild.
	if _, err := s.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if enc.callCount() != 3 {
		t.Errorf("rebuild happened without a change, %d calls", enc.callCount())
	}
}

func TestGet_CorruptImageSkipped(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "alice.png", color.RGBA{R: 255, A: 255}, 4)
	writePNG(t, dir, "bob.png", color.RGBA{G: 255, A: 255}, 5)
	if err := os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(dir, "fast", &stubEncoder{})
	r, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if r.Len() != 2 {
		t.Errorf("expected 2 identities, got %d", r.Len())
	}
	rejections := s.Rejections()
	if len(rejections) != 1 || rejections[0].File != "broken.jpg" {
		t.Errorf("unexpected rejections: %+v", rejections)
	}
}

func TestGet_FaceCountRejections(t *testing.T) {
	dir := t.TempDir()
	noFace := writePNG(t, dir, "empty-room.png", color.RGBA{B: 255, A: 255}, 4)
	twoFaces := writePNG(t, dir, "group-shot.png", color.RGBA{R: 128, A: 255}, 5)
	writePNG(t, dir, "carol.png", color.RGBA{G: 128, A: 255}, 6)

	enc := &stubEncoder{overrides: map[string][]Face{
		string(noFace): {},
		string(twoFaces): {
			{Embedding: []float32{1}},
			{Embedding: []float32{2}},
		},
	}}

	s := NewStore(dir, "fast", enc)
	r, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if r.Len() != 1 {
		t.Fatalf("expected only carol, got %v", r.IDs())
	}
	if len(s.Rejections()) != 2 {
		t.Errorf("expected 2 rejections, got %+v", s.Rejections())
	}
}

func TestGet_EmptyDirectoryYieldsEmptyRoster(t *testing.T) {
	s := NewStore(t.TempDir(), "fast", &stubEncoder{})
	r, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("empty directory must not fail: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("expected empty roster, got %d", r.Len())
	}
}

func TestGet_MissingDirectoryIsLoadError(t *testing.T) {
	s := NewStore("/nonexistent/roster", "fast", &stubEncoder{})
	_, err := s.Get(context.Background())
	var le *LoadError
	if !errors.As(err, &le) {
		t.Errorf("expected *LoadError, got %v", err)
	}
}

func TestGet_DiskCacheSkipsReencoding(t *testing.T) {
	dir := t.TempDir()
	cache := filepath.Join(t.TempDir(), "roster.gob")
	writePNG(t, dir, "alice.png", color.RGBA{R: 255, A: 255}, 4)

	first := &stubEncoder{}
	s1 := NewStore(dir, "fast", first, WithCacheFile(cache))
	r1, err := s1.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// A fresh store with the same cache file must not touch the encoder.
	second := &stubEncoder{}
	s2 := NewStore(dir, "fast", second, WithCacheFile(cache))
	r2, err := s2.Get(context.Background())
	if err != nil {
		t.Fatalf("Get from cache: %v", err)
	}

	if second.callCount() != 0 {
		t.Errorf("encoder called %d times despite warm cache", second.callCount())
	}
	if r2.Len() != r1.Len() || r2.Fingerprint() != r1.Fingerprint() {
		t.Errorf("cache returned different roster: %v vs %v", r2.IDs(), r1.IDs())
	}
}

func TestMarkDirty_ForcesRebuild(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "alice.png", color.RGBA{R: 255, A: 255}, 4)
	enc := &stubEncoder{}
	s := NewStore(dir, "fast", enc)
	ctx := context.Background()

	if _, err := s.Get(ctx); err != nil {
		t.Fatal(err)
	}
	s.MarkDirty()
	if _, err := s.Get(ctx); err != nil {
		t.Fatal(err)
	}

	if enc.callCount() != 2 {
		t.Errorf("expected rebuild after MarkDirty, got %d calls", enc.callCount())
	}
}
