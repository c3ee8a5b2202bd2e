package capture

import (
	"context"
	"sync"
)

// Sampler wraps a Source and forwards only every Nth frame downstream.
// Skipped frames are still delivered to the optional OnSkip hook so a
// live preview can render them without paying for detection.
type Sampler struct {
	src    Source
	stride int
	onSkip func(Frame)

	mu     sync.Mutex
	count  int
	closed bool
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithSkipHook registers a callback invoked for frames the stride policy
// drops. The callback must not retain the frame's Data slice.
func WithSkipHook(fn func(Frame)) SamplerOption {
	return func(s *Sampler) { s.onSkip = fn }
}

// NewSampler creates a sampler forwarding every stride-th frame. A
// stride below 1 is treated as 1 (every frame forwarded).
func NewSampler(src Source, stride int, opts ...SamplerOption) *Sampler {
	if stride < 1 {
		stride = 1
	}
	s := &Sampler{src: src, stride: stride}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the next frame selected by the stride policy. It
// propagates ErrEndOfStream and *CaptureError from the source unchanged
// and returns the context error promptly on cancellation.
func (s *Sampler) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}

		frame, err := s.src.Next(ctx)
		if err != nil {
			return Frame{}, err
		}

		s.mu.Lock()
		s.count++
		selected := s.count%s.stride == 0
		s.mu.Unlock()

		if selected {
			return frame, nil
		}
		if s.onSkip != nil {
			s.onSkip(frame)
		}
	}
}

// Seen returns how many frames have been pulled from the source,
// including skipped ones.
func (s *Sampler) Seen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close releases the underlying source. Safe to call more than once;
// only the first call reaches the source.
func (s *Sampler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.src.Close()
}
