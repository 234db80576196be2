package genclient

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stable user-facing messages. The capture UI shows these verbatim, so the
// wording here is part of the contract with the frontend.
const (
	msgServiceBusy    = "Service busy. Please try again in a moment."
	msgTimeout        = "The request timed out. Please try again."
	msgEmptyResponse  = "The model returned an empty response. Please try again."
	msgImageTooLarge  = "The photo is too large to upload. Please try a smaller image."
	msgGenerateFailed = "Image generation failed. Please try again."
)

// ErrEmptyResponse indicates a success envelope that carried neither an
// inline image nor any text.
var ErrEmptyResponse = errors.New("genclient: empty response envelope")

// ErrImageTooLarge indicates the encoded payload exceeds the submission
// ceiling even after normalization.
var ErrImageTooLarge = errors.New("genclient: image payload exceeds size ceiling")

// ErrMissingBaseURL indicates the client was configured without a proxy URL.
var ErrMissingBaseURL = errors.New("genclient: base url is required")

// RateLimitError reports an HTTP 429 from the proxy or upstream. The retry
// loop backs off exponentially and retries these until the attempt ceiling.
type RateLimitError struct {
	StatusCode int
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("genclient: rate limited (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("genclient: rate limited (status %d)", e.StatusCode)
}

// UpstreamError reports a non-success proxy response other than a rate
// limit. These are terminal: the combined message and details become the
// user-facing reason.
type UpstreamError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("genclient: upstream failure (status %d): %s", e.StatusCode, e.Reason())
}

// Reason returns the combined message and detail text, falling back to the
// bare status code when the body was unparsable.
func (e *UpstreamError) Reason() string {
	switch {
	case e.Message != "" && e.Details != "":
		return e.Message + ": " + e.Details
	case e.Message != "":
		return e.Message
	case e.Details != "":
		return e.Details
	default:
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
}

// TimeoutError reports an attempt that exceeded its wall-clock budget.
type TimeoutError struct {
	Budget time.Duration
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("genclient: attempt timed out after %s", e.Budget)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// TransportError reports a network-level failure before any HTTP status was
// received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "genclient: transport failure: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// RefusalError carries a text-only model reply. The text is surfaced to the
// user verbatim as the failure reason.
type RefusalError struct {
	Reason string
}

func (e *RefusalError) Error() string {
	return "genclient: model declined: " + e.Reason
}

// GenerateError is the terminal failure returned by Generate. Error()
// yields the stable user-facing message; Unwrap exposes the typed cause for
// callers that branch on kind.
type GenerateError struct {
	Reason string
	Err    error
}

func (e *GenerateError) Error() string { return e.Reason }

func (e *GenerateError) Unwrap() error { return e.Err }

// retryable reports whether the retry loop may attempt the request again.
// Decisions switch on error kind only, never on provider message text.
func retryable(err error) bool {
	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return true
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return true
	}
	var transport *TransportError
	return errors.As(err, &transport)
}

// Quota markers that upstream providers embed in error text. These never
// drive retries; they only soften the displayed message when a quota
// failure arrives on a non-429 status.
var quotaMarkers = []string{"429", "quota", "rate limit", "resource_exhausted"}

func containsQuotaMarker(s string) bool {
	s = strings.ToLower(s)
	for _, marker := range quotaMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// userMessage translates a pipeline error into the short string shown to
// the end user. Raw provider payloads and stack traces never pass through.
func userMessage(err error) string {
	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return msgServiceBusy
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return msgTimeout
	}
	var refusal *RefusalError
	if errors.As(err, &refusal) {
		return refusal.Reason
	}
	if errors.Is(err, ErrEmptyResponse) {
		return msgEmptyResponse
	}
	if errors.Is(err, ErrImageTooLarge) {
		return msgImageTooLarge
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		reason := upstream.Reason()
		if containsQuotaMarker(reason) {
			return msgServiceBusy
		}
		return reason
	}
	return msgGenerateFailed
}
