package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"floorvis/internal/imaging"
	"floorvis/internal/infra"
)

// Options configures the generation client.
type Options struct {
	BaseURL        string        // proxy base URL, e.g. https://floors.example.com
	APIKey         string        // optional shared secret sent as X-API-Key
	Model          string        // optional model override, server default when empty
	HTTPClient     *http.Client  // defaults to a client without its own timeout
	Logger         *infra.Logger // defaults to a discard logger
	Normalizer     *imaging.Normalizer
	MaxAttempts    int           // retry ceiling, default 3
	BaseDelay      time.Duration // rate-limit backoff base, default 2s
	RetryDelay     time.Duration // fixed delay for transport retries, default 1s
	AttemptTimeout time.Duration // wall-clock budget per attempt, default 60s
	MaxImageChars  int           // base64 payload ceiling, default 7,000,000
}

// Client turns a captured photo and a style description into an edited
// image by calling the generation proxy, tolerating transient upstream
// failures. All retry state is call-local, so a single Client is safe for
// concurrent use.
type Client struct {
	baseURL        string
	apiKey         string
	model          string
	httpClient     *http.Client
	logger         *infra.Logger
	normalizer     *imaging.Normalizer
	maxAttempts    int
	baseDelay      time.Duration
	retryDelay     time.Duration
	attemptTimeout time.Duration
	maxImageChars  int
}

type generateRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Prompt      string `json:"prompt"`
	Model       string `json:"model,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

type envelopeResponse struct {
	Candidates []struct {
		Content struct {
			Parts []envelopePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type envelopePart struct {
	Text       string `json:"text,omitempty"`
	InlineData *struct {
		MimeType string `json:"mimeType,omitempty"`
		Data     string `json:"data,omitempty"`
	} `json:"inlineData,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewClient constructs a generation client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Per-attempt deadlines come from the request context, so the
		// transport itself carries no timeout.
		httpClient = &http.Client{}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	normalizer := opts.Normalizer
	if normalizer == nil {
		normalizer = imaging.NewNormalizer(imaging.Options{Logger: logger})
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	attemptTimeout := opts.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = 60 * time.Second
	}
	maxImageChars := opts.MaxImageChars
	if maxImageChars <= 0 {
		maxImageChars = 7_000_000
	}
	return &Client{
		baseURL:        baseURL,
		apiKey:         strings.TrimSpace(opts.APIKey),
		model:          strings.TrimSpace(opts.Model),
		httpClient:     httpClient,
		logger:         logger,
		normalizer:     normalizer,
		maxAttempts:    maxAttempts,
		baseDelay:      baseDelay,
		retryDelay:     retryDelay,
		attemptTimeout: attemptTimeout,
		maxImageChars:  maxImageChars,
	}, nil
}

// Generate runs the full pipeline: normalize the captured photo, compose
// the edit instruction, call the proxy with bounded retries and map the
// outcome to an edited-image data URL. Failures come back as a
// *GenerateError whose Error() is the user-facing reason.
func (c *Client) Generate(ctx context.Context, imageDataURL, style string) (string, error) {
	normalized := c.normalizer.Normalize(ctx, imageDataURL)
	mimeType, payload, err := imaging.SplitDataURL(normalized)
	if err != nil {
		return "", &GenerateError{Reason: msgGenerateFailed, Err: fmt.Errorf("split data url: %w", err)}
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	if len(payload) > c.maxImageChars {
		return "", &GenerateError{Reason: msgImageTooLarge, Err: ErrImageTooLarge}
	}

	body, err := json.Marshal(generateRequest{
		ImageBase64: payload,
		Prompt:      BuildInstruction(style),
		Model:       c.model,
		MimeType:    mimeType,
	})
	if err != nil {
		return "", &GenerateError{Reason: msgGenerateFailed, Err: fmt.Errorf("marshal request: %w", err)}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		result, err := c.attempt(ctx, body)
		if err == nil {
			c.logger.Debug().
				Int("attempt", attempt+1).
				Str("model", c.model).
				Msg("genclient: received edited image")
			return result, nil
		}
		lastErr = err

		if !retryable(err) || attempt == c.maxAttempts-1 {
			break
		}

		delay := c.retryDelay
		var rateLimit *RateLimitError
		if errors.As(err, &rateLimit) {
			delay = c.baseDelay << attempt
		}
		c.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("genclient: attempt failed, retrying")
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	return "", &GenerateError{Reason: userMessage(lastErr), Err: lastErr}
}

// attempt performs one proxy call under its own wall-clock budget and
// classifies the outcome into the typed error taxonomy.
func (c *Client) attempt(ctx context.Context, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.classifyTransport(ctx, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		var detail errorResponse
		_ = json.Unmarshal(raw, &detail)
		return "", &RateLimitError{StatusCode: resp.StatusCode, Message: detail.Error}
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error != "" {
			return "", &UpstreamError{StatusCode: resp.StatusCode, Message: detail.Error, Details: detail.Details}
		}
		return "", &UpstreamError{StatusCode: resp.StatusCode}
	}

	return parseEnvelope(raw)
}

func (c *Client) classifyTransport(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Budget: c.attemptTimeout, Err: err}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &TransportError{Err: err}
}

// parseEnvelope applies the first-match policy over the first candidate's
// parts: an inline image part wins, then a text part counts as a model
// refusal, then the envelope is empty.
func parseEnvelope(raw []byte) (string, error) {
	var envelope envelopeResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("decode envelope: %w", ErrEmptyResponse)
	}
	if len(envelope.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	parts := envelope.Candidates[0].Content.Parts
	for _, part := range parts {
		if part.InlineData != nil && part.InlineData.Data != "" {
			return "data:image/png;base64," + part.InlineData.Data, nil
		}
	}
	for _, part := range parts {
		if text := strings.TrimSpace(part.Text); text != "" {
			return "", &RefusalError{Reason: text}
		}
	}
	return "", ErrEmptyResponse
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
