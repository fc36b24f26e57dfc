package service

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// AddressHasher pseudonymises client IP addresses with keyed BLAKE2b-256 so
// the per-address limit keeps working after raw addresses are scrubbed.
type AddressHasher struct {
	key []byte
}

// NewAddressHasher creates a hasher. The key must be at most 64 bytes.
func NewAddressHasher(key string) (*AddressHasher, error) {
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("ip hash key longer than %d bytes", blake2b.Size)
	}
	return &AddressHasher{key: []byte(key)}, nil
}

// Hash returns the hex digest of ip.
func (h *AddressHasher) Hash(ip string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// Key length is checked in NewAddressHasher.
		panic(err)
	}
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}
