// Package output delivers final text to the desktop: clipboard writes and
// simulated paste keystrokes at the active cursor.
package output

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

// SystemClipboard writes through the platform clipboard.
type SystemClipboard struct{}

func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{}
}

func (*SystemClipboard) SetText(_ context.Context, text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

// KeystrokeWriter inserts text at the active cursor by staging it on the
// clipboard and sending the platform paste chord. The previous clipboard
// contents are restored afterwards.
type KeystrokeWriter struct{}

func NewKeystrokeWriter() *KeystrokeWriter {
	return &KeystrokeWriter{}
}

func (*KeystrokeWriter) WriteAtCursor(_ context.Context, text string) error {
	previous, restorable := readClipboard()

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to stage text on clipboard: %w", err)
	}
	// Give the clipboard owner a moment before the paste chord fires.
	time.Sleep(80 * time.Millisecond)

	if err := sendPasteChord(); err != nil {
		return fmt.Errorf("failed to send paste keystroke: %w", err)
	}

	if restorable {
		time.Sleep(120 * time.Millisecond)
		_ = clipboard.WriteAll(previous)
	}
	return nil
}

func readClipboard() (string, bool) {
	previous, err := clipboard.ReadAll()
	return previous, err == nil
}

func sendPasteChord() error {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return err
	}
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	kb.SetKeys(keybd_event.VK_V)
	return kb.Launching()
}
