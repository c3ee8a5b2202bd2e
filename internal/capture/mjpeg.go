package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"sync"
	"time"
)

// MJPEGSource reads frames from an MJPEG-over-HTTP camera stream
// (multipart/x-mixed-replace). It owns the HTTP response body for the
// duration of the session and releases it on Close.
type MJPEGSource struct {
	url    string
	resp   *http.Response
	reader *multipart.Reader

	mu     sync.Mutex
	seq    int
	closed bool
}

// OpenMJPEG connects to the camera stream at url. The context bounds the
// connection handshake, not the stream lifetime.
func OpenMJPEG(ctx context.Context, url string) (*MJPEGSource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}

	// No client timeout: the body is a never-ending stream.
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		return nil, &CaptureError{Err: fmt.Errorf("connect to camera %s: %w", url, err)}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &CaptureError{Err: fmt.Errorf("camera %s returned status %d", url, resp.StatusCode)}
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		resp.Body.Close()
		return nil, &CaptureError{Err: fmt.Errorf("camera %s is not an MJPEG stream (content-type %q)", url, resp.Header.Get("Content-Type"))}
	}

	return &MJPEGSource{
		url:    url,
		resp:   resp,
		reader: multipart.NewReader(resp.Body, params["boundary"]),
	}, nil
}

// Next reads the next JPEG part from the stream. Cancelling ctx closes
// the stream so the blocked read returns within one network round trip.
func (s *MJPEGSource) Next(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Frame{}, ErrEndOfStream
	}
	s.mu.Unlock()

	// Unblock the part read when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-done:
		}
	}()

	part, err := s.reader.NextPart()
	if err != nil {
		if ctx.Err() != nil || s.isClosed() {
			return Frame{}, ErrEndOfStream
		}
		if errors.Is(err, io.EOF) {
			return Frame{}, ErrEndOfStream
		}
		return Frame{}, &CaptureError{Err: fmt.Errorf("read stream part: %w", err)}
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		if ctx.Err() != nil || s.isClosed() {
			return Frame{}, ErrEndOfStream
		}
		return Frame{}, &CaptureError{Err: fmt.Errorf("read frame body: %w", err)}
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	return Frame{Data: data, Seq: seq, Taken: time.Now()}, nil
}

func (s *MJPEGSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the stream connection. Idempotent.
func (s *MJPEGSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.resp.Body.Close()
}
