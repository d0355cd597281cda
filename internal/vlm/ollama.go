package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/raysh454/miru/internal/logging"
)

// OllamaSession talks to a locally running Ollama server. Ollama queues
// concurrent requests itself, so no client-side serialization is needed.
type OllamaSession struct {
	baseURL    string
	model      string
	temp       float64
	timeout    time.Duration
	httpClient *http.Client
	logger     logging.Logger
}

// NewOllamaSession creates a Session over a local Ollama REST endpoint.
func NewOllamaSession(cfg *Config, logger logging.Logger) *OllamaSession {
	base := cfg.BaseURL
	if base == "" {
		base = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "moondream"
	}
	return &OllamaSession{
		baseURL:    base,
		model:      model,
		temp:       cfg.Temperature,
		timeout:    cfg.RequestTimeout,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// generateRequest is the JSON body sent to /api/generate.
type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// generateResponse is the JSON body returned by /api/generate (non-streaming).
type generateResponse struct {
	Model         string `json:"model"`
	Response      string `json:"response"`
	TotalDuration int64  `json:"total_duration"` // nanoseconds
	EvalCount     int    `json:"eval_count"`
}

func (s *OllamaSession) Model() string { return s.model }

func (s *OllamaSession) Infer(ctx context.Context, image []byte, prompt string) (string, error) {
	if s.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
	}

	req := generateRequest{
		Model:  s.model,
		Prompt: prompt,
		Images: []string{base64.StdEncoding.EncodeToString(image)},
		Stream: false,
		Options: map[string]any{
			"temperature": s.temp,
			// Cap output tokens: visual assertions need short answers and
			// small models can loop on long generations otherwise.
			"num_predict": 256,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrInference, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrInference, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrInference, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ollama returned %d: %s", ErrInference, resp.StatusCode, trimStderr(string(respBody)))
	}

	var gen generateResponse
	if err := json.Unmarshal(respBody, &gen); err != nil {
		return "", fmt.Errorf("%w: unmarshal response: %v", ErrInference, err)
	}

	if s.logger != nil {
		s.logger.Debug("ollama inference complete",
			logging.Field{Key: "model", Value: gen.Model},
			logging.Field{Key: "eval_count", Value: gen.EvalCount},
			logging.Field{Key: "elapsed", Value: time.Since(start).String()})
	}
	return gen.Response, nil
}

func (s *OllamaSession) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// classifyTransportError maps HTTP client failures onto the session error
// taxonomy: deadline or net timeouts become ErrInferenceTimeout, everything
// else a transport-level ErrInference.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrInference, err)
}
