package capture

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// encodeWav wraps raw PCM samples in a WAV container. The encoder needs a
// seekable writer to patch the header, so the payload goes through a temp
// file.
func encodeWav(samples []int16, sampleRate, channels int) ([]byte, error) {
	f, err := os.CreateTemp("", "murmur-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create wav scratch file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()
		return nil, fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to finalize wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	return os.ReadFile(path)
}

// floatToPCM converts normalized float32 samples to 16-bit PCM, clamping
// out-of-range values instead of letting them wrap.
func floatToPCM(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		switch {
		case s > 1:
			out[i] = 32767
		case s < -1:
			out[i] = -32768
		default:
			out[i] = int16(s * 32767)
		}
	}
	return out
}

// pcmFromLE reassembles little-endian s16le bytes into samples. A trailing
// odd byte is dropped.
func pcmFromLE(raw []byte) []int16 {
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
	}
	return out
}
