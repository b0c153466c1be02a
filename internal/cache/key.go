package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Key derives the cache key of a scope node from the key of its parent
// scope, the node's type and its identity (start byte offset). The root
// parent key is the file path, so a key commits to the file and to every
// ancestor scope on the way down.
//
// Fields are NUL-separated so that distinct inputs never concatenate to the
// same preimage.
func Key(parent, nodeType string, identity uint32) string {
	h := sha256.New()
	h.Write([]byte(parent))
	h.Write([]byte{0})
	h.Write([]byte(nodeType))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(uint64(identity), 10)))
	return hex.EncodeToString(h.Sum(nil))
}
