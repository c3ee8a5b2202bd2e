// Package capture acquires frames from a video source and applies the
// frame-stride policy that bounds how much work reaches face detection.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEndOfStream signals that the source is exhausted or was explicitly
// stopped. It is a normal termination, not a failure.
var ErrEndOfStream = errors.New("end of stream")

// CaptureError wraps a device failure, distinct from a normal end of
// stream. The engine treats it as a forced session close.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture failure: %v", e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Frame is a single captured still, kept in its source encoding (JPEG
// for MJPEG cameras).
type Frame struct {
	Data  []byte
	Seq   int
	Taken time.Time
}

// Source delivers frames from a capture device. Next blocks until a
// frame is available and honors context cancellation; it returns
// ErrEndOfStream on normal termination and *CaptureError on device
// failure. Close releases the device handle and is idempotent.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}
