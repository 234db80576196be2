package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"floorvis/internal/imaging"
)

func photoDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return imaging.EncodeDataURL("image/png", buf.Bytes())
}

type countingServer struct {
	mu    sync.Mutex
	calls int
	times []time.Time
}

func (c *countingServer) record() {
	c.mu.Lock()
	c.calls++
	c.times = append(c.times, time.Now())
	c.mu.Unlock()
}

func (c *countingServer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *countingServer) gaps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var gaps []time.Duration
	for i := 1; i < len(c.times); i++ {
		gaps = append(gaps, c.times[i].Sub(c.times[i-1]))
	}
	return gaps
}

func newTestClient(t *testing.T, baseURL string, mutate func(*Options)) *Client {
	t.Helper()
	opts := Options{
		BaseURL:     baseURL,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		RetryDelay:  time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}
	client, err := NewClient(opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestGenerateScenarios(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantImage    string
		wantErrText  string
		wantAttempts int
	}{
		{
			name:         "inline image part returned",
			status:       http.StatusOK,
			body:         `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"QUJD"}}]}}]}`,
			wantImage:    "data:image/png;base64,QUJD",
			wantAttempts: 1,
		},
		{
			name:         "image part preferred over text",
			status:       http.StatusOK,
			body:         `{"candidates":[{"content":{"parts":[{"text":"Here is your floor"},{"inlineData":{"mimeType":"image/jpeg","data":"QUJD"}}]}}]}`,
			wantImage:    "data:image/png;base64,QUJD",
			wantAttempts: 1,
		},
		{
			name:         "rate limited until attempts exhausted",
			status:       http.StatusTooManyRequests,
			body:         `{"error":"Too many requests"}`,
			wantErrText:  "Service busy. Please try again in a moment.",
			wantAttempts: 3,
		},
		{
			name:         "text only reply surfaces refusal",
			status:       http.StatusOK,
			body:         `{"candidates":[{"content":{"parts":[{"text":"I cannot edit this image"}]}}]}`,
			wantErrText:  "I cannot edit this image",
			wantAttempts: 1,
		},
		{
			name:         "empty envelope",
			status:       http.StatusOK,
			body:         `{"candidates":[]}`,
			wantErrText:  "The model returned an empty response. Please try again.",
			wantAttempts: 1,
		},
		{
			name:         "unparsable envelope counts as empty",
			status:       http.StatusOK,
			body:         `not json`,
			wantErrText:  "The model returned an empty response. Please try again.",
			wantAttempts: 1,
		},
		{
			name:         "upstream failure relayed without retry",
			status:       http.StatusBadGateway,
			body:         `{"error":"Image generation failed","details":"internal error"}`,
			wantErrText:  "Image generation failed: internal error",
			wantAttempts: 1,
		},
		{
			name:         "quota detail softened to busy message",
			status:       http.StatusBadRequest,
			body:         `{"error":"Image generation failed","details":"Quota exceeded for quota metric"}`,
			wantErrText:  "Service busy. Please try again in a moment.",
			wantAttempts: 1,
		},
		{
			name:         "unparsable error body falls back to status",
			status:       http.StatusInternalServerError,
			body:         `boom`,
			wantErrText:  "request failed with status 500",
			wantAttempts: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			counter := &countingServer{}
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				counter.record()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL, nil)
			got, err := client.Generate(context.Background(), photoDataURL(t), "blue tile")

			if tc.wantImage != "" {
				if err != nil {
					t.Fatalf("Generate returned error: %v", err)
				}
				if got != tc.wantImage {
					t.Fatalf("result = %q, want %q", got, tc.wantImage)
				}
			} else {
				if err == nil {
					t.Fatalf("expected failure, got %q", got)
				}
				if err.Error() != tc.wantErrText {
					t.Fatalf("error = %q, want %q", err.Error(), tc.wantErrText)
				}
			}
			if counter.count() != tc.wantAttempts {
				t.Fatalf("upstream calls = %d, want %d", counter.count(), tc.wantAttempts)
			}
		})
	}
}

func TestGenerateRequestPayload(t *testing.T) {
	var (
		mu      sync.Mutex
		gotBody []byte
		gotKey  string
		gotType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotBody = body
		gotKey = r.Header.Get("X-API-Key")
		gotType = r.Header.Get("Content-Type")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"data":"QUJD"}}]}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, func(opts *Options) {
		opts.APIKey = "secret-key"
		opts.Model = "gemini-custom"
	})
	if _, err := client.Generate(context.Background(), photoDataURL(t), "blue tile"); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotKey != "secret-key" {
		t.Fatalf("X-API-Key = %q, want %q", gotKey, "secret-key")
	}
	if gotType != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", gotType)
	}

	var req generateRequest
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	if req.ImageBase64 == "" {
		t.Fatalf("imageBase64 missing from request")
	}
	if req.MimeType != "image/jpeg" {
		t.Fatalf("mimeType = %q, want image/jpeg after normalization", req.MimeType)
	}
	if req.Model != "gemini-custom" {
		t.Fatalf("model = %q, want gemini-custom", req.Model)
	}
	if !strings.Contains(req.Prompt, "blue tile") {
		t.Fatalf("prompt does not embed the style: %q", req.Prompt)
	}
	if !strings.Contains(req.Prompt, "Return only the edited image") {
		t.Fatalf("prompt is missing the image-only constraint: %q", req.Prompt)
	}
}

func TestGenerateBackoffDelaysNonDecreasing(t *testing.T) {
	counter := &countingServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter.record()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, func(opts *Options) {
		opts.BaseDelay = 50 * time.Millisecond
	})
	_, err := client.Generate(context.Background(), photoDataURL(t), "blue tile")
	if err == nil {
		t.Fatalf("expected failure after exhausted attempts")
	}

	var rateLimit *RateLimitError
	if !errors.As(err, &rateLimit) {
		t.Fatalf("expected RateLimitError cause, got %T", errors.Unwrap(err))
	}
	if counter.count() != 3 {
		t.Fatalf("upstream calls = %d, want 3", counter.count())
	}
	gaps := counter.gaps()
	if len(gaps) != 2 {
		t.Fatalf("gaps = %d, want 2", len(gaps))
	}
	if gaps[0] < 40*time.Millisecond {
		t.Fatalf("first backoff %s, want at least ~50ms", gaps[0])
	}
	if gaps[1] < gaps[0] {
		t.Fatalf("delays decreased: %s then %s", gaps[0], gaps[1])
	}
}

type scriptedTransport struct {
	mu     sync.Mutex
	calls  int
	script []func(*http.Request) (*http.Response, error)
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	return s.script[idx](req)
}

func (s *scriptedTransport) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestGenerateRetriesTransportFailureOnce(t *testing.T) {
	transport := &scriptedTransport{script: []func(*http.Request) (*http.Response, error){
		func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection reset")
		},
		func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"inlineData":{"data":"QUJD"}}]}}]}`), nil
		},
	}}

	client := newTestClient(t, "http://proxy.test", func(opts *Options) {
		opts.HTTPClient = &http.Client{Transport: transport}
	})
	got, err := client.Generate(context.Background(), photoDataURL(t), "blue tile")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got != "data:image/png;base64,QUJD" {
		t.Fatalf("result = %q", got)
	}
	if transport.count() != 2 {
		t.Fatalf("transport calls = %d, want 2", transport.count())
	}
}

func TestGenerateTransportFailurePropagatesOnFinalAttempt(t *testing.T) {
	transport := &scriptedTransport{script: []func(*http.Request) (*http.Response, error){
		func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection reset")
		},
	}}

	client := newTestClient(t, "http://proxy.test", func(opts *Options) {
		opts.HTTPClient = &http.Client{Transport: transport}
		opts.MaxAttempts = 2
	})
	_, err := client.Generate(context.Background(), photoDataURL(t), "blue tile")
	if err == nil {
		t.Fatalf("expected failure")
	}
	if err.Error() != "Image generation failed. Please try again." {
		t.Fatalf("error = %q", err.Error())
	}
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError cause")
	}
	if transport.count() != 2 {
		t.Fatalf("transport calls = %d, want 2", transport.count())
	}
}

func TestGenerateTimesOutPerAttempt(t *testing.T) {
	counter := &countingServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter.record()
		time.Sleep(150 * time.Millisecond)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, func(opts *Options) {
		opts.MaxAttempts = 2
		opts.AttemptTimeout = 30 * time.Millisecond
	})
	_, err := client.Generate(context.Background(), photoDataURL(t), "blue tile")
	if err == nil {
		t.Fatalf("expected timeout failure")
	}
	if err.Error() != "The request timed out. Please try again." {
		t.Fatalf("error = %q", err.Error())
	}
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError cause")
	}
	if counter.count() != 2 {
		t.Fatalf("upstream calls = %d, want 2", counter.count())
	}
}

func TestGenerateClassificationIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Image generation failed","details":"backend offline"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	photo := photoDataURL(t)

	_, first := client.Generate(context.Background(), photo, "blue tile")
	_, second := client.Generate(context.Background(), photo, "blue tile")
	if first == nil || second == nil {
		t.Fatalf("expected both calls to fail")
	}
	if first.Error() != second.Error() {
		t.Fatalf("classification changed between identical calls: %q vs %q", first.Error(), second.Error())
	}
}

func TestGenerateRejectsOversizedPayload(t *testing.T) {
	counter := &countingServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter.record()
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, func(opts *Options) {
		opts.MaxImageChars = 16
	})
	_, err := client.Generate(context.Background(), photoDataURL(t), "blue tile")
	if err == nil {
		t.Fatalf("expected oversized payload to fail")
	}
	if err.Error() != "The photo is too large to upload. Please try a smaller image." {
		t.Fatalf("error = %q", err.Error())
	}
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge cause")
	}
	if counter.count() != 0 {
		t.Fatalf("upstream calls = %d, want 0", counter.count())
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Options{}); !errors.Is(err, ErrMissingBaseURL) {
		t.Fatalf("err = %v, want ErrMissingBaseURL", err)
	}
}
