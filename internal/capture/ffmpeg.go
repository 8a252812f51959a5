// Package capture provides the audio input adapters: an ffmpeg-based
// push-to-talk capture, a portaudio capture, and a voice-activated listener.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"murmur/internal/domain"
	"murmur/internal/ports"
)

// FFmpegConfig controls the ffmpeg capture process.
type FFmpegConfig struct {
	Command     string
	InputFormat string
	Device      string
	SampleRate  int
	Channels    int
}

func (c *FFmpegConfig) applyDefaults() {
	if c.Command == "" {
		c.Command = "ffmpeg"
	}
	if c.InputFormat == "" {
		c.InputFormat = "pulse"
	}
	if c.Device == "" {
		c.Device = "default"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
}

// FFmpegCapture records microphone PCM through an ffmpeg child process, one
// process per recording. Opening the device only verifies the binary is
// reachable; the process is spawned on Start and reaped on Stop/Cancel.
type FFmpegCapture struct {
	cfg FFmpegConfig

	mu      sync.Mutex
	state   domain.RecorderState
	session *ffmpegSession
}

func NewFFmpegCapture(cfg FFmpegConfig) *FFmpegCapture {
	cfg.applyDefaults()
	return &FFmpegCapture{cfg: cfg, state: domain.StateIdle}
}

func (c *FFmpegCapture) OpenDevice(_ context.Context, params ports.SessionParams, _ ports.StatusFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.InSession() {
		return nil
	}
	if _, err := exec.LookPath(c.cfg.Command); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	if params.DeviceID != "" {
		c.cfg.Device = params.DeviceID
	}
	c.state = domain.StateSession
	return nil
}

func (c *FFmpegCapture) Start(ctx context.Context, _ string, _ ports.StatusFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateSession {
		return errors.New("no open session to record in")
	}

	session, err := startFFmpeg(ctx, c.cfg)
	if err != nil {
		return err
	}
	c.session = session
	c.state = domain.StateSessionRecording
	return nil
}

func (c *FFmpegCapture) Stop(_ context.Context, _ ports.StatusFunc) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateSessionRecording || c.session == nil {
		return nil, errors.New("no active recording")
	}

	pcm, err := c.session.finalize()
	c.session = nil
	c.state = domain.StateSession
	if err != nil {
		return nil, err
	}
	return encodeWav(pcmFromLE(pcm), c.cfg.SampleRate, c.cfg.Channels)
}

func (c *FFmpegCapture) Cancel(_ context.Context, _ ports.StatusFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateSessionRecording || c.session == nil {
		return errors.New("no active recording")
	}

	_, err := c.session.finalize()
	c.session = nil
	c.state = domain.StateSession
	return err
}

func (c *FFmpegCapture) CloseDevice(_ context.Context, _ ports.StatusFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		_, _ = c.session.finalize()
		c.session = nil
	}
	c.state = domain.StateIdle
	return nil
}

func (c *FFmpegCapture) State() domain.RecorderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

type ffmpegSession struct {
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	process *os.Process
	waitErr <-chan error

	mu       sync.Mutex
	pcm      bytes.Buffer
	readDone chan struct{}

	stopOnce sync.Once
	stopErr  error
}

func startFFmpeg(ctx context.Context, cfg FFmpegConfig) (*ffmpegSession, error) {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.Device,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimSpaceSafe(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	s := &ffmpegSession{
		stdout:   stdout,
		stderr:   &stderr,
		process:  cmd.Process,
		waitErr:  waitErr,
		readDone: make(chan struct{}),
	}
	go s.drain()
	return s, nil
}

func (s *ffmpegSession) drain() {
	defer close(s.readDone)
	chunk := make([]byte, 32*1024)
	for {
		n, err := s.stdout.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.pcm.Write(chunk[:n])
			s.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// finalize stops the process and returns everything captured so far.
func (s *ffmpegSession) finalize() ([]byte, error) {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		<-s.readDone
		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimSpaceSafe(s.stderr.String()))
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pcm.Bytes(), s.stopErr
}

// normalizeStopErr ignores the non-zero exit ffmpeg reports when interrupted.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
