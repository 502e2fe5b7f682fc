package rrdp

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex returns the lowercase hex encoding of the sha256 digest of data.
// Digest comparisons elsewhere are case-insensitive; this is the canonical
// form used for storage and logging.
func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
