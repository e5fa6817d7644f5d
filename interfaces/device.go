package interfaces

import (
	"context"

	"github.com/qursa-uc3m/qkd-etsi-client/cryptoutils"
)

// SessionHandle identifies an open logical QKD session on a vendor device.
type SessionHandle string

// OpenRequest carries the parameters for establishing a logical QKD session
// in the connection-oriented protocol variant.
type OpenRequest struct {
	// SourceURI identifies the local SAE.
	SourceURI string

	// DestURI identifies the peer SAE.
	DestURI string

	// Credentials is the TLS credential bundle used by the device to
	// authenticate against its KME.
	Credentials cryptoutils.CredentialBundle
}

// Device is the narrow contract over a vendor QKD API for the
// connection-oriented protocol variant. Implementations wrap the vendor's
// open/get-key/close primitives; the client never sees vendor types.
type Device interface {
	// OpenConnect establishes a logical QKD session and returns its handle.
	OpenConnect(ctx context.Context, req OpenRequest) (SessionHandle, error)

	// GetKey retrieves key material from an open session. With a zero id it
	// returns the next available key and its identifier; with a non-zero id
	// it returns the key matching that identifier.
	GetKey(ctx context.Context, handle SessionHandle, id KeyID) (KeyID, []byte, error)

	// Close tears down the session. Closing an unknown handle is an error;
	// idempotent teardown is handled by the caller.
	Close(ctx context.Context, handle SessionHandle) error
}

// DeviceStatus is an optional capability of a Device. Vendor APIs that can
// report their key pool implement it; the client falls back to a session
// state error when the capability is absent.
type DeviceStatus interface {
	// Status reports the key pool state of an open session: stored key
	// count, maximum key count, and key size in bits.
	Status(ctx context.Context, handle SessionHandle) (stored, max, keySize int, err error)
}
