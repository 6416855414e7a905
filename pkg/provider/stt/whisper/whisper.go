// Package whisper provides a local whisper.cpp-backed STT provider.
//
// It talks to a running whisper-server binary, which exposes a REST API at
// POST /inference accepting a multipart WAV upload. whisper.cpp is a batch
// engine, which matches the assistant's discrete-utterance design exactly:
// each completed utterance becomes one inference request.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8090", whisper.WithLanguage("en"))
//	tr, err := p.Transcribe(ctx, utterance)
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/stt"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

const (
	// bitsPerSample is fixed at 16 for the signed little-endian PCM audio
	// that whisper.cpp expects.
	bitsPerSample = 16

	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the BCP-47 language code sent to the whisper.cpp server
// (e.g., "en", "de", "ar"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient replaces the default HTTP client. Useful for tests and for
// custom timeout or proxy configuration.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider implements stt.Provider against a whisper.cpp server.
type Provider struct {
	baseURL  string
	language string
	client   *http.Client
}

// New creates a Provider pointed at the whisper-server at baseURL
// (e.g., "http://localhost:8090").
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("whisper: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: defaultLanguage,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// inferenceResponse mirrors the whisper-server JSON response body.
type inferenceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Transcribe implements stt.Provider. It wraps the utterance PCM in a WAV
// container and submits it as a single batch inference request.
func (p *Provider) Transcribe(ctx context.Context, u types.Utterance) (stt.Transcript, error) {
	if len(u.PCM) == 0 {
		return stt.Transcript{Language: p.language}, nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: build request: %w", err)
	}
	if _, err := fw.Write(pcmToWAV(u.PCM, u.SampleRate)); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: build request: %w", err)
	}
	if err := mw.WriteField("language", p.language); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: build request: %w", err)
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: build request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/inference", &body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: inference request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return stt.Transcript{}, fmt.Errorf("whisper: server returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var ir inferenceResponse
	if err := json.Unmarshal(raw, &ir); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: decode response: %w", err)
	}
	if ir.Error != "" {
		return stt.Transcript{}, fmt.Errorf("whisper: server error: %s", ir.Error)
	}

	return stt.Transcript{
		Text:     strings.TrimSpace(ir.Text),
		Language: p.language,
	}, nil
}

// pcmToWAV wraps raw 16-bit mono PCM in a minimal RIFF/WAVE container.
func pcmToWAV(pcm []byte, sampleRate int) []byte {
	const headerSize = 44
	dataLen := len(pcm)
	buf := make([]byte, headerSize+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	byteRate := sampleRate * bitsPerSample / 8
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(bitsPerSample/8))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[headerSize:], pcm)

	return buf
}
