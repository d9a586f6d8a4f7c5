package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrHEICUnsupported is returned for HEIC input when no converter is configured.
var ErrHEICUnsupported = errors.New("HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips")

var heifBrands = map[string]struct{}{
	"heic": {}, "heix": {}, "hevc": {}, "heim": {}, "heis": {},
	"mif1": {}, "msf1": {},
}

// isHEIF sniffs the ISO-BMFF "ftyp" box for a HEIF brand.
func isHEIF(b []byte) bool {
	if len(b) < 12 || !bytes.Equal(b[4:8], []byte("ftyp")) {
		return false
	}
	_, ok := heifBrands[strings.ToLower(string(b[8:12]))]
	return ok
}

// convertHEICToPNG runs the configured converter on data and returns PNG bytes.
// Input and output live in a temp dir that is removed before returning.
func convertHEICToPNG(ctx context.Context, r Runner, logger *slog.Logger, converter string, data []byte) ([]byte, error) {
	if converter == "" {
		return nil, ErrHEICUnsupported
	}

	tmpDir, err := os.MkdirTemp("", "rx-heic-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			logger.Warn("imaging.heic.cleanup_error", "dir", tmpDir, "error", err)
		}
	}()

	in := filepath.Join(tmpDir, "input.heic")
	out := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}

	switch converter {
	case "heif-convert":
		if _, errb, err := r.Run(ctx, "heif-convert", logger, in, out); err != nil {
			return nil, fmt.Errorf("heif-convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	case "magick":
		if _, errb, err := r.Run(ctx, "magick", logger, in, out); err != nil {
			return nil, fmt.Errorf("magick convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	case "sips":
		if _, errb, err := r.Run(ctx, "sips", logger, "-s", "format", "png", in, "--out", out); err != nil {
			return nil, fmt.Errorf("sips convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	default:
		return nil, fmt.Errorf("unknown HEIC converter %q: %w", converter, ErrHEICUnsupported)
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}
	logger.Debug("imaging.heic.converted", "converter", converter, "bytes", len(png))
	return png, nil
}
