package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashObject computes the SHA-256 of the envelope "type len\0content",
// mirroring Git's object hashing but with SHA-256.
func HashObject(objType ObjectType, data []byte) Hash {
	h := sha256.New()
	h.Write(envelopeHeader(objType, data))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// EmptyTreeHash is the hash of a tree with no entries.
var EmptyTreeHash = HashObject(TypeTree, nil)

func envelopeHeader(objType ObjectType, data []byte) []byte {
	return []byte(fmt.Sprintf("%s %d\x00", objType, len(data)))
}

// ValidHash reports whether h is a full lowercase hex SHA-256 digest.
func ValidHash(h Hash) bool {
	if len(h) != 64 {
		return false
	}
	return isLowerHex(string(h))
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
