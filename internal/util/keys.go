package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// StorageKey returns prefix+key when it fits the store's key rules. Keys longer
// than maxLen (0 = unlimited) or containing whitespace/control bytes are
// replaced by prefix + "h:" + hex(sha256(key)) so they remain addressable.
func StorageKey(prefix, key string, maxLen int) string {
	k := prefix + key
	if (maxLen <= 0 || len(k) <= maxLen) && !hasControl(key) {
		return k
	}
	sum := sha256.Sum256([]byte(key))
	return prefix + "h:" + hex.EncodeToString(sum[:])
}

func hasControl(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c <= ' ' || c == 0x7f {
			return true
		}
	}
	return false
}

// ContainsFold reports whether the lowercase form of s contains any of the
// lowercase, non-empty needles.
func ContainsFold(s string, needles []string) bool {
	ls := strings.ToLower(s)
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(ls, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
