package cryptoutils

import (
	"errors"
	"sync"
)

// ErrKeyDestroyed is returned when key material is accessed after Destroy.
var ErrKeyDestroyed = errors.New("key material has been destroyed")

// KeyMaterial is an opaque container for a symmetric key retrieved from a
// KME. The raw bytes are copied in on construction and zeroized on Destroy,
// so the transport-layer string representation never outlives the request
// that carried it. KeyMaterial is single-ownership: whoever holds the
// pointer is responsible for calling Destroy exactly once; additional
// Destroy calls are no-ops.
type KeyMaterial struct {
	mu        sync.Mutex
	buf       []byte
	destroyed bool
}

// NewKeyMaterial wraps the given key bytes. The input slice is copied; the
// caller should zeroize its own copy if it came from a sensitive source.
func NewKeyMaterial(key []byte) (*KeyMaterial, error) {
	if len(key) == 0 {
		return nil, errors.New("key material must not be empty")
	}
	buf := make([]byte, len(key))
	copy(buf, key)
	return &KeyMaterial{buf: buf}, nil
}

// Bytes returns a copy of the key bytes. The caller owns the returned slice.
func (k *KeyMaterial) Bytes() ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.destroyed {
		return nil, ErrKeyDestroyed
	}
	out := make([]byte, len(k.buf))
	copy(out, k.buf)
	return out, nil
}

// Len returns the key length in bytes, or 0 after Destroy.
func (k *KeyMaterial) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.destroyed {
		return 0
	}
	return len(k.buf)
}

// Destroy zeroizes the underlying buffer and marks the material unusable.
// Destroy is idempotent.
func (k *KeyMaterial) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.destroyed {
		return
	}
	for i := range k.buf {
		k.buf[i] = 0
	}
	k.buf = nil
	k.destroyed = true
}

// Destroyed reports whether the material has been released.
func (k *KeyMaterial) Destroyed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.destroyed
}
