package imaging

import "fmt"

// EncodingError means the image could not be read, decoded or re-encoded.
type EncodingError struct {
	Source string
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode image %s: %v", e.Source, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }
