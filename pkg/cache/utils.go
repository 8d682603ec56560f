package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// GenerateKey joins prefix and id with a colon.
func GenerateKey(prefix string, id string) string {
	return prefix + ":" + id
}

// VerdictKey names a cached verdict: the artifact checksum followed by the
// feature values in their shortest exact form. A new artifact never reads an
// old artifact's verdicts.
func VerdictKey(checksum string, features ...float64) string {
	var b strings.Builder
	b.WriteString("verdict:")
	b.WriteString(checksum)
	for _, f := range features {
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return b.String()
}

// HashKey returns a 32-char hex digest of key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}
