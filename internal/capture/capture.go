package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoDevice         = errors.New("no camera matches the constraints")
	ErrInUse            = errors.New("camera is in use by another application")
	ErrTimeout          = errors.New("camera did not start in time")
	ErrClosed           = errors.New("camera session is closed")
)

type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
	FacingAny         Facing = ""
)

type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

// DefaultConstraints asks for the rear camera first and then for any camera.
var DefaultConstraints = []Constraints{
	{Facing: FacingEnvironment, Width: 1920, Height: 1080},
	{Facing: FacingAny},
}

type Frame struct {
	ContentType string
	Data        []byte
}

// Stream is an open, exclusively held camera.
type Stream interface {
	Capture(ctx context.Context) (Frame, error)
	Close() error
}

// Device opens streams. Open returns ErrNoDevice when nothing satisfies c, so
// the caller can relax the constraints.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Acquirer opens a camera session with fallback constraints and a start-up
// deadline.
type Acquirer struct {
	Device      Device
	Constraints []Constraints
	Timeout     time.Duration
	Logger      *zap.Logger
}

func (a *Acquirer) Acquire(ctx context.Context) (*Session, error) {
	constraints := a.Constraints
	if len(constraints) == 0 {
		constraints = DefaultConstraints
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error = ErrNoDevice
	for _, c := range constraints {
		stream, err := openWithTimeout(ctx, a.Device, c, timeout)
		if err == nil {
			logger.Info("camera acquired", zap.String("facing", string(c.Facing)))
			return &Session{stream: stream, Constraints: c}, nil
		}
		if !errors.Is(err, ErrNoDevice) {
			return nil, err
		}
		logger.Debug("camera constraints not satisfied", zap.String("facing", string(c.Facing)))
		lastErr = err
	}
	return nil, lastErr
}

// Retry is Acquire invoked again after the user resolved the failure, for
// example by granting permission or closing the other application.
func (a *Acquirer) Retry(ctx context.Context) (*Session, error) {
	return a.Acquire(ctx)
}

type openResult struct {
	stream Stream
	err    error
}

// openWithTimeout releases a stream that arrives after the deadline.
func openWithTimeout(ctx context.Context, dev Device, c Constraints, timeout time.Duration) (Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan openResult, 1)
	go func() {
		stream, err := dev.Open(ctx, c)
		done <- openResult{stream: stream, err: err}
	}()

	select {
	case res := <-done:
		return res.stream, res.err
	case <-ctx.Done():
		go func() {
			if res := <-done; res.stream != nil {
				_ = res.stream.Close()
			}
		}()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// Session owns an acquired stream until Close. Close is idempotent.
type Session struct {
	Constraints Constraints

	mu       sync.Mutex
	stream   Stream
	closed   bool
	once     sync.Once
	closeErr error
}

func (s *Session) Capture(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Frame{}, ErrClosed
	}
	frame, err := s.stream.Capture(ctx)
	if err != nil {
		return Frame{}, fmt.Errorf("capture frame: %w", err)
	}
	if len(frame.Data) == 0 {
		return Frame{}, errors.New("capture frame: empty image")
	}
	if frame.ContentType == "" {
		frame.ContentType = "image/jpeg"
	}
	return frame, nil
}

func (s *Session) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		s.closeErr = s.stream.Close()
	})
	return s.closeErr
}

// WithStream acquires a camera, runs fn and releases the camera on every
// exit path, including a panic in fn.
func WithStream(ctx context.Context, a *Acquirer, fn func(*Session) error) (err error) {
	session, err := a.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(session)
}

// CaptureOnce takes a single frame and releases the camera.
func CaptureOnce(ctx context.Context, a *Acquirer) (Frame, error) {
	var frame Frame
	err := WithStream(ctx, a, func(s *Session) error {
		var err error
		frame, err = s.Capture(ctx)
		return err
	})
	return frame, err
}
