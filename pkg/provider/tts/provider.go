// Package tts defines the Provider interface for text-to-speech backends.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Speech rate multipliers settable through the "speak slower/faster/normal"
// instant commands. Values outside this set are clamped by callers.
const (
	SpeedSlow   = 0.75
	SpeedNormal = 1.0
	SpeedFast   = 1.25
)

// ClampSpeed snaps an arbitrary multiplier to the nearest supported rate.
func ClampSpeed(speed float64) float64 {
	switch {
	case speed <= (SpeedSlow+SpeedNormal)/2:
		return SpeedSlow
	case speed >= (SpeedNormal+SpeedFast)/2:
		return SpeedFast
	default:
		return SpeedNormal
	}
}

// Audio is a synthesized audio clip.
type Audio struct {
	// PCM is 16-bit signed little-endian mono audio data.
	PCM []byte

	// SampleRate in Hz.
	SampleRate int
}

// Provider is the abstraction over any text-to-speech backend.
//
// Synthesize must respect ctx cancellation and deadlines. speed is a
// multiplicative rate factor; implementations clamp unsupported values to
// their nearest supported rate.
type Provider interface {
	// Synthesize converts text to speech audio at the given rate multiplier.
	Synthesize(ctx context.Context, text string, speed float64) (Audio, error)
}
