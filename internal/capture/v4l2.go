package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
)

// V4L2Device opens Linux video devices and grabs frames through ffmpeg.
// Paths maps a facing to a device node; FacingAny tries every path.
type V4L2Device struct {
	Paths  map[Facing]string
	FFmpeg string
}

func (d *V4L2Device) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var candidates []string
	if c.Facing == FacingAny {
		for _, facing := range []Facing{FacingEnvironment, FacingUser, FacingAny} {
			if path := d.Paths[facing]; path != "" {
				candidates = append(candidates, path)
			}
		}
	} else if path := d.Paths[c.Facing]; path != "" {
		candidates = append(candidates, path)
	}

	var lastErr error = ErrNoDevice
	for _, path := range candidates {
		stream, err := d.openPath(path, c)
		if err == nil {
			return stream, nil
		}
		if !errors.Is(err, ErrNoDevice) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (d *V4L2Device) openPath(path string, c Constraints) (Stream, error) {
	file, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		return nil, ErrNoDevice
	case errors.Is(err, fs.ErrPermission):
		return nil, ErrPermissionDenied
	case errors.Is(err, syscall.EBUSY):
		return nil, ErrInUse
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	ffmpeg := d.FFmpeg
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &v4l2Stream{file: file, path: path, ffmpeg: ffmpeg, constraints: c}, nil
}

type v4l2Stream struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	ffmpeg      string
	constraints Constraints
}

func (s *v4l2Stream) Capture(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return Frame{}, ErrClosed
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-f", "v4l2"}
	if s.constraints.Width > 0 && s.constraints.Height > 0 {
		args = append(args, "-video_size", strconv.Itoa(s.constraints.Width)+"x"+strconv.Itoa(s.constraints.Height))
	}
	args = append(args, "-i", s.path, "-frames:v", "1", "-f", "image2", "-vcodec", "mjpeg", "-")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.ffmpeg, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Frame{}, fmt.Errorf("%s: %w: %s", s.ffmpeg, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return Frame{ContentType: "image/jpeg", Data: stdout.Bytes()}, nil
}

func (s *v4l2Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
