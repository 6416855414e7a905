// Package vad defines the Engine interface for voice-activity-detection
// backends.
//
// A VAD engine wraps a frame-level speech classifier (an energy detector, a
// WebRTC-style spectral model, or an ML model) and surfaces it as a stateful
// per-stream session. The turn detector consumes a Session's per-frame
// decisions and layers its own debounce and trailing-silence state machine on
// top, so classifiers stay simple and stateless where possible.
//
// VAD is synchronous by design: ProcessFrame returns immediately with a
// decision, making it suitable for the low-latency capture loop.
//
// Implementations must be safe for concurrent use across different sessions.
// A single Session should not be shared across goroutines.
package vad

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// PCM frames passed to ProcessFrame.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds. Most
	// classifiers operate on fixed frame sizes (10, 20, or 30 ms).
	// ProcessFrame returns an error if the supplied frame does not match.
	FrameSizeMs int

	// SpeechThreshold is the probability above which a frame is classified
	// as speech. Range: [0.0, 1.0]. Typical: 0.5.
	SpeechThreshold float64
}

// Decision is the classification result for a single audio frame.
type Decision struct {
	// Speech reports whether the frame contains voice.
	Speech bool

	// Probability is the speech probability score (0.0–1.0).
	Probability float64
}

// Session is an active VAD session for a single audio stream. Each session
// maintains its own smoothing state; Reset clears that state without closing
// the session.
type Session interface {
	// ProcessFrame classifies a single frame of raw little-endian 16-bit PCM
	// at the configured SampleRate and FrameSizeMs. Returns an error if the
	// frame size is wrong or the classifier fails internally.
	//
	// Called synchronously in the capture loop; it must not block.
	ProcessFrame(frame []byte) (Decision, error)

	// Reset clears accumulated state. Use when the audio stream is
	// interrupted or restarted.
	Reset()

	// Close releases session resources. Calling Close more than once is safe.
	Close() error
}

// Engine is the factory for VAD sessions, implemented by each backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a session with the given configuration. Returns an
	// error if the configuration is invalid (unsupported sample rate, frame
	// size, or threshold out of range).
	NewSession(cfg Config) (Session, error)
}
