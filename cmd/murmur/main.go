// Command murmur is a headless dictation daemon driven from stdin.
//
// Commands: record, stop, cancel, toggle, vad start, vad stop, status, quit.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"murmur/internal/bootstrap"
	"murmur/internal/config"
	"murmur/internal/domain"
	"murmur/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "murmur:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	services, err := bootstrap.Build(consoleEventSink{log: logging.WithComponent("events")})
	if err != nil {
		return err
	}
	defer services.Close()

	log := logging.WithComponent("main")
	log.Info().
		Str("backend", services.Config.Recording.Backend).
		Str("service", services.Config.Transcription.Service).
		Msg("murmur ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(strings.ToLower(scanner.Text()))
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return shutdown(services)
		case line, ok := <-lines:
			if !ok {
				return shutdown(services)
			}
			switch line {
			case "", "#":
			case "record":
				if err := services.Coordinator.Record(ctx); err != nil {
					log.Error().Err(err).Msg("record failed")
				}
			case "stop":
				if _, err := services.Coordinator.Stop(ctx); err != nil {
					log.Error().Err(err).Msg("stop failed")
				}
			case "cancel":
				if err := services.Coordinator.Cancel(ctx); err != nil {
					log.Error().Err(err).Msg("cancel failed")
				}
			case "toggle":
				if err := services.Coordinator.Toggle(ctx); err != nil {
					log.Error().Err(err).Msg("toggle failed")
				}
			case "vad start", "vad":
				if err := services.Vad.Start(ctx); err != nil {
					log.Error().Err(err).Msg("vad start failed")
				}
			case "vad stop":
				if err := services.Vad.Stop(ctx); err != nil {
					log.Error().Err(err).Msg("vad stop failed")
				}
			case "status":
				fmt.Printf("session: %s\nvad: %s\n", services.Sessions.State(), services.Vad.State())
			case "quit", "exit":
				return shutdown(services)
			default:
				fmt.Println("commands: record, stop, cancel, toggle, vad start, vad stop, status, quit")
			}
		}
	}
}

// shutdown tears open sessions down and waits for in-flight voice-activated
// segments before exiting.
func shutdown(services bootstrap.Services) error {
	ctx := context.Background()
	if services.Sessions.State() != domain.StateIdle {
		_ = services.Sessions.CloseSession(ctx, nil)
	}
	if services.Vad.State() != domain.StateIdle {
		_ = services.Vad.Close(ctx)
	}
	services.Vad.Wait()
	return nil
}

// consoleEventSink surfaces core events on the structured log.
type consoleEventSink struct {
	log zerolog.Logger
}

func (s consoleEventSink) RecorderStateChanged(state domain.RecorderState) {
	s.log.Info().Str("state", string(state)).Msg("recorder state changed")
}

func (s consoleEventSink) Status(phase string) {
	s.log.Debug().Str("phase", phase).Msg("status")
}

func (s consoleEventSink) TranscriptReady(recordingID, text string) {
	s.log.Info().Str("recordingId", recordingID).Int("chars", len(text)).Msg("transcript ready")
}

func (s consoleEventSink) Delivered(status domain.DeliveryStatus) {
	s.log.Info().Str("delivery", string(status)).Msg("delivered")
}

func (s consoleEventSink) Warning(code domain.ErrorCode, detail string) {
	s.log.Warn().Str("code", string(code)).Msg(detail)
}

func (s consoleEventSink) Error(code domain.ErrorCode, detail string) {
	s.log.Error().Str("code", string(code)).Msg(detail)
}
