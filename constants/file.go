package constants

import (
	"sort"
	"strings"
)

// DefaultMaxUploadBytes caps a single uploaded receipt image (10 MiB).
const DefaultMaxUploadBytes int64 = 10 << 20

// AllowedExtensions holds the image extensions accepted for extraction, lowercased sans '.'.
var AllowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"bmp":  {},
	"webp": {},
	"tif":  {},
	"tiff": {},
	"heic": {},
	"heif": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsAllowedExt reports whether ext (with or without the dot) is an accepted image extension.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// IsHEICExt reports whether ext needs an external HEIC/HEIF conversion before decoding.
func IsHEICExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "heic", "heif", "heics", "heifs":
		return true
	}
	return false
}

// AllowedExtList returns the allow-list as sorted ".ext" strings for user-facing messages.
func AllowedExtList() []string {
	out := make([]string, 0, len(AllowedExtensions))
	for ext := range AllowedExtensions {
		out = append(out, "."+ext)
	}
	sort.Strings(out)
	return out
}
