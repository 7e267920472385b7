// Package fileid derives deterministic paper IDs from file paths for
// watched-directory ingest.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// PaperID returns a stable paper ID for the given absolute path. The same
// path always yields the same ID, so re-ingesting a changed file updates the
// existing paper instead of duplicating it. Truncated to 16 hex characters
// because paper IDs travel in URLs.
func PaperID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:])[:16]
}
