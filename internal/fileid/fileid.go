// Package fileid derives document ids and content hashes.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	"github.com/google/uuid"
)

// namespace scopes name-based document ids to this tool.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("lexembed:document"))

// FileDocID returns a stable document id for the given absolute path, so embedding the
// same file twice yields the same chunk ids.
func FileDocID(absolutePath string) string {
	return uuid.NewSHA1(namespace, []byte(filepath.Clean(absolutePath))).String()
}

// NewDocID returns a random document id for text that has no path.
func NewDocID() string {
	return uuid.NewString()
}

// Hash returns the hex SHA-256 of content.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
