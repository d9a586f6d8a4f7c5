package imaging

import (
	"io"
	"path/filepath"

	"github.com/joseph-ayodele/receipts-extractor/constants"
)

// Source is an image given either by filesystem path or as an open stream.
// When both are set, Reader wins and Path only serves as a name and extension hint.
type Source struct {
	Path   string
	Reader io.Reader
	Name   string
}

// FromPath returns a Source that reads the file at path.
func FromPath(path string) Source {
	return Source{Path: path}
}

// FromReader returns a Source backed by r. name is used in logs and errors and may carry
// the original filename, whose extension helps detect HEIC uploads.
func FromReader(r io.Reader, name string) Source {
	return Source{Reader: r, Name: name}
}

func (s Source) String() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Path != "":
		return s.Path
	default:
		return "<stream>"
	}
}

// ext returns the normalized extension of the name or path, without the dot.
func (s Source) ext() string {
	n := s.Name
	if n == "" {
		n = s.Path
	}
	return constants.NormalizeExt(filepath.Ext(n))
}
