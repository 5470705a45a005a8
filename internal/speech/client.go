package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-trainer/internal/ai"
)

const (
	sttPath = "/stt"
	ttsPath = "/tts"

	defaultTimeout = 10 * time.Second
)

// Client talks to a speech backend exposing /stt and /tts endpoints.
// Transcription uploads WAV audio as multipart form data and receives
// JSON; synthesis posts JSON and receives raw audio bytes.
type Client struct {
	HTTPClient *http.Client

	baseURL string
	token   string
	logger  *zap.Logger
}

func New(baseURL, token string, logger *zap.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("speech base url is required")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		token:      token,
		logger:     logger,
	}, nil
}

type transcription struct {
	Text string `json:"text"`
}

// Transcribe sends WAV audio to the speech backend and returns the
// recognized text.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("no audio to transcribe")
	}

	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	part, err := w.CreateFormFile("audio", "input.wav")
	if err != nil {
		return "", err
	}

	if _, err = io.Copy(part, bytes.NewReader(audio)); err != nil {
		return "", err
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sttPath, &b)
	if err != nil {
		return "", err
	}

	c.setHeaders(req)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.request(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status from stt: %s", resp.Status)
	}

	var result transcription
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding stt response: %w", err)
	}

	text := strings.TrimSpace(result.Text)

	c.logger.Debug("transcribed audio",
		zap.Int("audio bytes", len(audio)),
		zap.Int("text length", len(text)),
	)

	if text == "" {
		return "", ai.ErrEmptyResult
	}

	return text, nil
}

// Synthesize converts text into spoken audio and returns the raw bytes.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("no text to synthesize")
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ttsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.request(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status from tts: %s", resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading tts response: %w", err)
	}

	if len(audio) == 0 {
		return nil, fmt.Errorf("tts returned no audio")
	}

	c.logger.Debug("synthesized speech", zap.Int("audio bytes", len(audio)))

	return audio, nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
}
