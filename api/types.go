// Package api defines the ETSI GS QKD 014 wire format spoken between the
// client and a KME: request/response payloads and endpoint paths. Payload
// validation lives here so both the client and the simulator agree on what a
// well-formed message is.
package api

import (
	"errors"
	"fmt"
)

// Endpoint paths relative to a KME base URL. The path parameter is the SAE
// identifier of the peer endpoint the key is shared with.
const (
	statusPathFmt  = "/api/v1/keys/%s/status"
	encKeysPathFmt = "/api/v1/keys/%s/enc_keys"
	decKeysPathFmt = "/api/v1/keys/%s/dec_keys"
)

// StatusPath returns the status endpoint path for the given peer SAE.
func StatusPath(peerSAE string) string { return fmt.Sprintf(statusPathFmt, peerSAE) }

// EncKeysPath returns the key-request endpoint path for the given peer SAE.
func EncKeysPath(peerSAE string) string { return fmt.Sprintf(encKeysPathFmt, peerSAE) }

// DecKeysPath returns the key-lookup endpoint path for the given peer SAE.
func DecKeysPath(peerSAE string) string { return fmt.Sprintf(decKeysPathFmt, peerSAE) }

// Status is a KME's key-pool report.
type Status struct {
	// StoredKeyCount is the number of keys currently available for this
	// SAE pair.
	StoredKeyCount int `json:"stored_key_count"`

	// MaxKeyCount is the KME's pool capacity.
	MaxKeyCount int `json:"max_key_count"`

	// KeySize is the key length in bits.
	KeySize int `json:"key_size"`
}

// statusWire mirrors Status with pointer fields so that absent required
// fields are distinguishable from zero values during decoding.
type statusWire struct {
	StoredKeyCount *int `json:"stored_key_count"`
	MaxKeyCount    *int `json:"max_key_count"`
	KeySize        *int `json:"key_size"`
}

// Key is a single key entry in a key container: the identifier and the
// base64-encoded key bytes.
type Key struct {
	KeyID string `json:"key_ID"`
	Key   string `json:"key"`
}

// KeyContainer is the KME response to both enc_keys and dec_keys requests.
type KeyContainer struct {
	Keys []Key `json:"keys"`
}

// Validate checks that the container carries at least one key and that every
// entry has both an identifier and a payload. An empty container on a
// success status code is a protocol violation, not an empty result.
func (c KeyContainer) Validate() error {
	if len(c.Keys) == 0 {
		return errors.New("key container holds no keys")
	}
	for i, k := range c.Keys {
		if k.KeyID == "" {
			return fmt.Errorf("key %d is missing key_ID", i)
		}
		if k.Key == "" {
			return fmt.Errorf("key %d is missing key material", i)
		}
	}
	return nil
}

// KeyRequest is the enc_keys request body. Zero values mean the KME's
// defaults (one key, default size).
type KeyRequest struct {
	Number int `json:"number,omitempty"`
	Size   int `json:"size,omitempty"`
}

// KeyIDEntry names one requested key in a dec_keys request.
type KeyIDEntry struct {
	KeyID string `json:"key_ID"`
}

// KeyIDsRequest is the dec_keys request body.
type KeyIDsRequest struct {
	KeyIDs []KeyIDEntry `json:"key_IDs"`
}
