package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
)

// DigestKey returns the SHA-256 hex of the canonical JSON encoding of parts.
// Map keys are encoded in sorted order, so structurally equal inputs always
// produce the same key across runs. Order of parts matters.
func DigestKey(parts ...any) (string, error) {
	canonical, err := json.Marshal(parts)
	if err != nil {
		return "", eris.Wrap(err, "cache: encode key parts")
	}
	h := sha256.Sum256(canonical)
	return fmt.Sprintf("%x", h), nil
}
