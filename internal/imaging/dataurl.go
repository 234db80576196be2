package imaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDataURL indicates the payload is not a base64 data URL.
var ErrInvalidDataURL = errors.New("imaging: invalid data url")

// SplitDataURL splits a base64 data URL into its MIME type and raw base64
// payload without decoding. The wire sends the payload as-is, so callers
// that only forward bytes should prefer this over ParseDataURL.
func SplitDataURL(dataURL string) (mime, payload string, err error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", "", ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", ErrInvalidDataURL
	}
	mime, ok = strings.CutSuffix(meta, ";base64")
	if !ok || payload == "" {
		return "", "", ErrInvalidDataURL
	}
	return mime, payload, nil
}

// ParseDataURL decodes a base64 data URL into its MIME type and binary data.
func ParseDataURL(dataURL string) (string, []byte, error) {
	mime, payload, err := SplitDataURL(dataURL)
	if err != nil {
		return "", nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("imaging: decode payload: %w", err)
	}
	return mime, data, nil
}

// EncodeDataURL builds a base64 data URL from a MIME type and binary data.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
