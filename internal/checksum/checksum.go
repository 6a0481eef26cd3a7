// Package checksum fingerprints stored documents so that the index can skip
// the ones that did not change.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/starford/mdchat/internal/frontmatter"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Document fingerprints a node document in its stored form, header included,
// so a metadata-only edit changes the result.
func Document(meta map[string]any, body string) string {
	return Sum([]byte(frontmatter.Serialize(meta, body)))
}
