package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"murmur/internal/domain"
	"murmur/internal/logging"
	"murmur/internal/ports"
)

// VadConfig tunes the energy-based endpoint detector.
type VadConfig struct {
	SampleRate int
	Channels   int
	// SpeechThreshold is the RMS level above which a frame counts as speech.
	SpeechThreshold float64
	// MinSilence is how long the signal must stay below the threshold before
	// the current segment is finalized.
	MinSilence time.Duration
	// MaxSegment force-finalizes a segment that never goes silent.
	MaxSegment time.Duration
}

func (c *VadConfig) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.SpeechThreshold <= 0 {
		c.SpeechThreshold = 0.015
	}
	if c.MinSilence <= 0 {
		c.MinSilence = 700 * time.Millisecond
	}
	if c.MaxSegment <= 0 {
		c.MaxSegment = 30 * time.Second
	}
}

// detector is the endpointing state machine. It is not safe for concurrent
// use; the listener feeds it from a single goroutine.
type detector struct {
	cfg VadConfig

	active         bool
	silenceSamples int
	segment        []float32
}

func newDetector(cfg VadConfig) *detector {
	cfg.applyDefaults()
	return &detector{cfg: cfg}
}

// feed consumes one frame and returns any segments it finalized.
func (d *detector) feed(frame []float32) [][]float32 {
	var segments [][]float32

	if rms(frame) >= d.cfg.SpeechThreshold {
		d.active = true
		d.silenceSamples = 0
		d.segment = append(d.segment, frame...)
	} else if d.active {
		d.segment = append(d.segment, frame...)
		d.silenceSamples += len(frame) / d.cfg.Channels
		if d.silenceSamples >= d.samplesFor(d.cfg.MinSilence) {
			segments = append(segments, d.take())
		}
	}

	if d.active && len(d.segment)/d.cfg.Channels >= d.samplesFor(d.cfg.MaxSegment) {
		segments = append(segments, d.take())
	}
	return segments
}

// flush finalizes a segment still in progress, used at stop time.
func (d *detector) flush() []float32 {
	if !d.active || len(d.segment) == 0 {
		return nil
	}
	return d.take()
}

func (d *detector) take() []float32 {
	segment := d.segment
	d.segment = nil
	d.active = false
	d.silenceSamples = 0
	return segment
}

func (d *detector) samplesFor(dur time.Duration) int {
	return int(float64(d.cfg.SampleRate) * dur.Seconds())
}

func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// VadListener continuously reads the default input device and emits one WAV
// artifact per detected speech segment.
type VadListener struct {
	cfg VadConfig
	log zerolog.Logger

	mu        sync.Mutex
	state     domain.RecorderState
	stream    *portaudio.Stream
	buffer    []float32
	onSegment ports.SegmentFunc
	running   bool
	done      chan struct{}
}

func NewVadListener(cfg VadConfig) *VadListener {
	cfg.applyDefaults()
	return &VadListener{
		cfg:    cfg,
		log:    logging.WithComponent("vad-capture"),
		state:  domain.StateIdle,
		buffer: make([]float32, framesPerBuffer*cfg.Channels),
	}
}

func (l *VadListener) Open(_ context.Context, _ ports.SessionParams, onSegment ports.SegmentFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.InSession() {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	stream, err := portaudio.OpenDefaultStream(
		l.cfg.Channels,
		0,
		float64(l.cfg.SampleRate),
		framesPerBuffer,
		l.buffer,
	)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	l.stream = stream
	l.onSegment = onSegment
	l.state = domain.StateSession
	return nil
}

func (l *VadListener) Start(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != domain.StateSession || l.stream == nil {
		return errors.New("no open session to listen in")
	}
	if err := l.stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	l.running = true
	l.done = make(chan struct{})
	l.state = domain.StateSessionRecording
	go l.listenLoop(l.done)
	return nil
}

func (l *VadListener) listenLoop(done chan struct{}) {
	defer close(done)
	det := newDetector(l.cfg)

	for {
		l.mu.Lock()
		running := l.running
		stream := l.stream
		l.mu.Unlock()
		if !running || stream == nil {
			l.emit(det.flush())
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

		frame := make([]float32, len(l.buffer))
		copy(frame, l.buffer)
		for _, segment := range det.feed(frame) {
			l.emit(segment)
		}
	}
}

func (l *VadListener) emit(segment []float32) {
	if len(segment) == 0 {
		return
	}
	audio, err := encodeWav(floatToPCM(segment), l.cfg.SampleRate, l.cfg.Channels)
	if err != nil {
		l.log.Warn().Err(err).Msg("could not encode speech segment")
		return
	}

	l.mu.Lock()
	onSegment := l.onSegment
	l.mu.Unlock()
	if onSegment != nil {
		onSegment(audio)
	}
}

func (l *VadListener) Stop(_ context.Context) error {
	l.mu.Lock()
	if l.state != domain.StateSessionRecording {
		l.mu.Unlock()
		return errors.New("not listening")
	}
	l.running = false
	done := l.done
	stream := l.stream
	l.state = domain.StateSession
	l.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}
	if stream != nil {
		if err := stream.Stop(); err != nil {
			return fmt.Errorf("failed to stop input stream: %w", err)
		}
	}
	return nil
}

func (l *VadListener) Close(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == domain.StateIdle {
		return nil
	}
	l.running = false
	var err error
	if l.stream != nil {
		err = l.stream.Close()
		l.stream = nil
	}
	if termErr := portaudio.Terminate(); err == nil {
		err = termErr
	}
	l.state = domain.StateIdle
	if err != nil {
		return fmt.Errorf("failed to release input device: %w", err)
	}
	return nil
}

func (l *VadListener) State() domain.RecorderState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
