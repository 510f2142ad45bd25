package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ppiankov/imgpull/internal/model"
	"github.com/zeebo/blake3"
)

// HashFunc returns the lowercase hex digest of data
type HashFunc func(data []byte) string

// SHA256Hex hashes data with SHA-256
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BLAKE3Hex hashes data with BLAKE3-256
func BLAKE3Hex(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewHashFunc returns the hash function for a configured algorithm name
func NewHashFunc(algo string) (HashFunc, error) {
	switch algo {
	case model.HashSHA256, "":
		return SHA256Hex, nil
	case model.HashBLAKE3:
		return BLAKE3Hex, nil
	default:
		return nil, fmt.Errorf("hash: unsupported algorithm %q", algo)
	}
}
