package llm

import (
	"context"

	"github.com/joseph-ayodele/receipts-extractor/internal/imaging"
)

// ImageEncoder turns an image source into the base64 PNG payload sent to the model.
type ImageEncoder interface {
	Encode(ctx context.Context, src imaging.Source) (imaging.Encoded, error)
}

// Extractor is the interface the web app and batch runner depend on.
// Extract returns the model's reply text verbatim.
type Extractor interface {
	Extract(ctx context.Context, src imaging.Source) (string, error)
}
