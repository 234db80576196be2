package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"floorvis/internal/infra"
)

// Options configures the normalizer.
type Options struct {
	MaxDimension int           // longest allowed edge in pixels
	JPEGQuality  int           // re-encode quality, 1-100
	Timeout      time.Duration // decode/scale budget per image
	Logger       *infra.Logger
}

// Normalizer downsamples and recompresses captured photos so the upload
// stays well under the proxy's payload ceiling. Normalization is a
// best-effort optimization: any failure or budget overrun keeps the
// original payload instead of failing the pipeline.
type Normalizer struct {
	maxDimension int
	quality      int
	timeout      time.Duration
	logger       *infra.Logger
}

// NewNormalizer constructs a normalizer with sane defaults.
func NewNormalizer(opts Options) *Normalizer {
	maxDimension := opts.MaxDimension
	if maxDimension <= 0 {
		maxDimension = 1024
	}
	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Normalizer{
		maxDimension: maxDimension,
		quality:      quality,
		timeout:      timeout,
		logger:       logger,
	}
}

// Normalize re-encodes the data URL as a JPEG whose longer edge is at most
// the configured maximum dimension, preserving aspect ratio. The original
// payload is returned unchanged when the source cannot be decoded or the
// work exceeds its budget.
func (n *Normalizer) Normalize(ctx context.Context, dataURL string) string {
	_, data, err := ParseDataURL(dataURL)
	if err != nil {
		n.logger.Debug().Err(err).Msg("imaging: source is not a data url, keeping original payload")
		return dataURL
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if ctx.Err() != nil {
		return dataURL
	}

	type outcome struct {
		payload string
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		payload, err := n.normalizeBytes(data)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case <-ctx.Done():
		n.logger.Debug().
			Dur("budget", n.timeout).
			Msg("imaging: normalization budget exceeded, keeping original payload")
		return dataURL
	case out := <-done:
		if out.err != nil {
			n.logger.Debug().Err(out.err).Msg("imaging: normalization failed, keeping original payload")
			return dataURL
		}
		return out.payload
	}
}

func (n *Normalizer) normalizeBytes(data []byte) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	targetW, targetH := fitDimensions(width, height, n.maxDimension)

	out := src
	if targetW != width || targetH != height {
		scaled := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, bounds, draw.Src, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: n.quality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return EncodeDataURL("image/jpeg", buf.Bytes()), nil
}

// fitDimensions clamps the longer edge to maxDim and floors the shorter
// edge. Integer arithmetic keeps the longer edge exact instead of drifting
// a pixel through float rounding.
func fitDimensions(width, height, maxDim int) (int, int) {
	if width <= maxDim && height <= maxDim {
		return width, height
	}
	if width >= height {
		h := height * maxDim / width
		if h < 1 {
			h = 1
		}
		return maxDim, h
	}
	w := width * maxDim / height
	if w < 1 {
		w = 1
	}
	return w, maxDim
}
