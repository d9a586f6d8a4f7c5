package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/receipts-extractor/constants"
)

// Config for the Encoder.
type Config struct {
	HeicConverter string // heif-convert | magick | sips; empty rejects HEIC input
}

// Encoded is an image re-encoded as PNG and base64 (standard alphabet, padded).
type Encoded struct {
	Base64       string
	Width        int
	Height       int
	SourceFormat string // format the input decoded as, e.g. "jpeg" or "heic"
}

// DataURL returns the payload as a data: URL suitable for an image_url content part.
func (e Encoded) DataURL() string {
	return "data:image/png;base64," + e.Base64
}

type Encoder struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Encoder)

// WithRunner replaces the command runner used for HEIC conversion.
func WithRunner(r Runner) Option {
	return func(e *Encoder) { e.runner = r }
}

func NewEncoder(cfg Config, logger *slog.Logger, opts ...Option) *Encoder {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Encoder{
		cfg:    cfg,
		runner: execRunner{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode decodes src, re-encodes it as PNG and base64-encodes the PNG bytes.
// Every failure is an *EncodingError. Nothing is written outside a temp dir.
func (e *Encoder) Encode(ctx context.Context, src Source) (Encoded, error) {
	start := time.Now()
	fail := func(err error) (Encoded, error) {
		e.logger.Warn("imaging.encode.error", "source", src.String(), "error", err)
		return Encoded{}, &EncodingError{Source: src.String(), Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	data, err := readSource(src)
	if err != nil {
		return fail(err)
	}

	heic := isHEIF(data) || constants.IsHEICExt(src.ext())
	if heic {
		data, err = convertHEICToPNG(ctx, e.runner, e.logger, e.cfg.HeicConverter, data)
		if err != nil {
			return fail(err)
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fail(fmt.Errorf("decode: %w", err))
	}
	if heic {
		format = "heic"
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fail(fmt.Errorf("png encode: %w", err))
	}

	b := img.Bounds()
	out := Encoded{
		Base64:       base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:        b.Dx(),
		Height:       b.Dy(),
		SourceFormat: format,
	}
	e.logger.Info("imaging.encode.ok",
		"source", src.String(),
		"format", format,
		"width", out.Width,
		"height", out.Height,
		"png_bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func readSource(src Source) ([]byte, error) {
	switch {
	case src.Reader != nil:
		return io.ReadAll(src.Reader)
	case src.Path != "":
		return os.ReadFile(src.Path)
	default:
		return nil, errors.New("empty image source")
	}
}
