// Package piper provides a TTS provider backed by a local piper HTTP server.
//
// piper synthesizes speech offline from ONNX voice models and exposes a
// simple HTTP API when run with --http-server: POST / with the UTF-8 text
// body returns raw 16-bit PCM. The rate multiplier is mapped onto piper's
// length_scale parameter (inverse relationship: faster speech means a
// smaller length scale).
package piper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/tts"
)

const (
	defaultSampleRate = 22050
	defaultTimeout    = 20 * time.Second

	// maxAudioBytes caps a single synthesis response (~2 minutes of audio).
	maxAudioBytes = 8 << 20
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithSampleRate declares the sample rate of the configured piper voice
// model. Defaults to 22050 Hz (the rate of most medium-quality voices).
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider implements tts.Provider against a piper HTTP server.
type Provider struct {
	baseURL    string
	sampleRate int
	client     *http.Client
}

// New creates a Provider pointed at the piper server at baseURL
// (e.g., "http://localhost:5000").
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("piper: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		sampleRate: defaultSampleRate,
		client:     &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, speed float64) (tts.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return tts.Audio{SampleRate: p.sampleRate}, nil
	}

	speed = tts.ClampSpeed(speed)
	// piper's length_scale stretches phoneme durations, so rate and scale
	// are inverse: 1.25x speech uses a 0.8 length scale.
	lengthScale := 1.0 / speed

	q := url.Values{}
	q.Set("length_scale", strconv.FormatFloat(lengthScale, 'f', 2, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/?"+q.Encode(), strings.NewReader(text))
	if err != nil {
		return tts.Audio{}, fmt.Errorf("piper: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := p.client.Do(req)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("piper: synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return tts.Audio{}, fmt.Errorf("piper: server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	pcm, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return tts.Audio{}, fmt.Errorf("piper: read audio: %w", err)
	}

	return tts.Audio{PCM: pcm, SampleRate: p.sampleRate}, nil
}
