package synccache

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes encoded bitmap bytes into a fixed-width hex string.
// Change detection only; no adversarial input reaches this path, so a fast
// non-cryptographic hash is the right tool.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// SharedKey is the cache partition used when a request carries no usable
// device token. Unpaired or legacy devices share one partition.
const SharedKey = "shared"

// deviceKeyLen bounds how much of a token becomes the partition key. Tokens
// are opaque and can be long (webhook URLs in legacy firmware); the prefix
// is stable per device, which is all partitioning needs.
const deviceKeyLen = 16

// DeviceKey derives a stable cache partition key from an opaque device
// token. Blank tokens map to SharedKey.
func DeviceKey(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return SharedKey
	}
	if len(token) > deviceKeyLen {
		token = token[:deviceKeyLen]
	}
	return token
}
