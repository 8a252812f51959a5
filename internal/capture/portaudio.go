package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"murmur/internal/domain"
	"murmur/internal/ports"
)

const (
	framesPerBuffer = 1024
	// minSamples pads very short recordings with silence; speech models
	// reject audio under ~100ms.
	minSamplesMs = 200
)

// PortAudioConfig controls the portaudio capture stream.
type PortAudioConfig struct {
	SampleRate int
	Channels   int
}

func (c *PortAudioConfig) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
}

// PortAudioCapture records from the default input device through portaudio.
// The stream is held open for the whole session; Start/Stop only toggle the
// accumulation loop, which keeps re-record latency low.
type PortAudioCapture struct {
	cfg PortAudioConfig

	mu      sync.Mutex
	state   domain.RecorderState
	stream  *portaudio.Stream
	buffer  []float32
	samples []float32
	running bool
	done    chan struct{}
}

func NewPortAudioCapture(cfg PortAudioConfig) *PortAudioCapture {
	cfg.applyDefaults()
	return &PortAudioCapture{
		cfg:    cfg,
		state:  domain.StateIdle,
		buffer: make([]float32, framesPerBuffer*cfg.Channels),
	}
}

func (c *PortAudioCapture) OpenDevice(_ context.Context, _ ports.SessionParams, _ ports.StatusFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.InSession() {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	stream, err := portaudio.OpenDefaultStream(
		c.cfg.Channels,
		0,
		float64(c.cfg.SampleRate),
		framesPerBuffer,
		c.buffer,
	)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	c.stream = stream
	c.state = domain.StateSession
	return nil
}

func (c *PortAudioCapture) Start(_ context.Context, _ string, _ ports.StatusFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateSession || c.stream == nil {
		return errors.New("no open session to record in")
	}

	c.samples = make([]float32, 0, c.cfg.SampleRate*30)
	c.done = make(chan struct{})
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	c.running = true
	c.state = domain.StateSessionRecording
	go c.recordLoop(c.done)
	return nil
}

func (c *PortAudioCapture) recordLoop(done chan struct{}) {
	defer close(done)
	for {
		c.mu.Lock()
		running := c.running
		stream := c.stream
		c.mu.Unlock()
		if !running || stream == nil {
			return
		}

		available, err := stream.AvailableToRead()
		if err != nil || available == 0 {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err := stream.Read(); err != nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		c.mu.Lock()
		if c.running {
			c.samples = append(c.samples, c.buffer...)
		}
		c.mu.Unlock()
	}
}

func (c *PortAudioCapture) Stop(_ context.Context, _ ports.StatusFunc) ([]byte, error) {
	samples, err := c.drainRecording()
	if err != nil {
		return nil, err
	}
	min := c.cfg.SampleRate * minSamplesMs / 1000
	if len(samples) < min {
		samples = append(samples, make([]float32, min-len(samples))...)
	}
	return encodeWav(floatToPCM(samples), c.cfg.SampleRate, c.cfg.Channels)
}

func (c *PortAudioCapture) Cancel(_ context.Context, _ ports.StatusFunc) error {
	_, err := c.drainRecording()
	return err
}

// drainRecording stops the accumulation loop and hands back the samples,
// leaving the stream open for the next recording.
func (c *PortAudioCapture) drainRecording() ([]float32, error) {
	c.mu.Lock()
	if c.state != domain.StateSessionRecording {
		c.mu.Unlock()
		return nil, errors.New("no active recording")
	}
	c.running = false
	samples := c.samples
	c.samples = nil
	done := c.done
	stream := c.stream
	c.state = domain.StateSession
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}
	if stream != nil {
		if err := stream.Stop(); err != nil {
			return samples, fmt.Errorf("failed to stop input stream: %w", err)
		}
	}
	return samples, nil
}

func (c *PortAudioCapture) CloseDevice(_ context.Context, _ ports.StatusFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == domain.StateIdle {
		return nil
	}
	c.running = false
	var err error
	if c.stream != nil {
		err = c.stream.Close()
		c.stream = nil
	}
	if termErr := portaudio.Terminate(); err == nil {
		err = termErr
	}
	c.state = domain.StateIdle
	if err != nil {
		return fmt.Errorf("failed to release input device: %w", err)
	}
	return nil
}

func (c *PortAudioCapture) State() domain.RecorderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
