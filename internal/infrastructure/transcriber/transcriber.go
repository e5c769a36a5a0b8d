package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/hilthontt/whisperroom/internal/infrastructure/logging"
	"github.com/hilthontt/whisperroom/internal/infrastructure/metrics"
	"github.com/hilthontt/whisperroom/internal/infrastructure/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// ErrUpstream covers every way the engine call can fail: connection
// errors, timeouts, non-2xx statuses, and unparseable responses. Callers
// never retry; a failed clip is simply reported to its submitter.
var ErrUpstream = errors.New("transcription engine failure")

// Provider converts one audio clip to text.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// WhisperClient talks to the speech-to-text engine over HTTP: one
// multipart POST per clip, JSON {"text": ...} back.
type WhisperClient struct {
	endpoint string
	client   *http.Client
	logger   logging.Logger
	tracer   trace.Tracer
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

const maxResponseBytes = 1 << 20

func NewWhisperClient(cfg Config, logger logging.Logger) *WhisperClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &WhisperClient{
		endpoint: cfg.Endpoint,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
		tracer: tracing.GetTracer("transcriber"),
	}
}

func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "transcriber.Transcribe")
	defer span.End()

	if filename == "" {
		filename = "clip.wav"
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.ObserveTranscribeDuration(time.Since(start))
	if err != nil {
		c.logger.Error(logging.Transcription, logging.ExternalService, "engine call failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return "", fmt.Errorf("%w: unexpected status %d", ErrUpstream, resp.StatusCode)
	}

	var out transcriptionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}

	return out.Text, nil
}
