package session

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// NormalizePath canonicalizes a working path so equivalent spellings
// (trailing separators, dot segments, relative forms) key the same session.
func NormalizePath(path string) string {
	cleaned := filepath.Clean(strings.TrimSpace(path))
	if !filepath.IsAbs(cleaned) {
		if abs, err := filepath.Abs(cleaned); err == nil {
			cleaned = abs
		}
	}
	return cleaned
}

// ClientIDForPath derives a stable client id from a working path. The id is
// a truncated digest of the normalized path, so the same project directory
// always maps to the same client without any persisted counter.
func ClientIDForPath(path string) string {
	sum := sha256.Sum256([]byte(NormalizePath(path)))
	return "path-" + hex.EncodeToString(sum[:])[:16]
}
