// Package sha256 digests document bodies so feed consumers can detect
// re-deliveries of identical content.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digester computes hex SHA-256 digests of document bodies.
type Digester struct{}

// New returns a SHA-256 digester.
func New() Digester {
	return Digester{}
}

// Digest returns the lowercase hex SHA-256 of body.
func (Digester) Digest(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
