package util

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// HashBytes computes the hex SHA256 of the given bytes
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ContentHash returns the xxHash64 of data as hex, truncated to hexLen
// characters when 0 < hexLen < 16.
func ContentHash(data []byte, hexLen int) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], xxhash.Sum64(data))
	full := hex.EncodeToString(b[:])
	if hexLen > 0 && hexLen < len(full) {
		return full[:hexLen]
	}
	return full
}

// ObjectKey builds a content-addressed storage key, sharded by the first
// two hex chars: "ab/cdef0123456789.png".
func ObjectKey(data []byte, ext string) string {
	h := ContentHash(data, 0)
	return fmt.Sprintf("%s/%s%s", h[:2], h[2:], ext)
}
