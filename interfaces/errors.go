package interfaces

import "errors"

// Error taxonomy for the QKD client. Operations wrap these sentinels with
// fmt.Errorf("...: %w", ...) so callers can classify failures with
// errors.Is while still getting diagnostic detail in logs.
var (
	// ErrConfigurationMissing indicates a required configuration value
	// (hostname, certificate path, context itself) is absent or empty.
	ErrConfigurationMissing = errors.New("required configuration missing")

	// ErrInvalidAddress indicates a KME host URI is malformed or uses an
	// unsupported scheme. Detected before any network I/O.
	ErrInvalidAddress = errors.New("invalid KME address")

	// ErrTLSHandshake indicates the mutual-TLS handshake with the KME
	// failed: certificate rejected, unknown authority, or bad keypair.
	ErrTLSHandshake = errors.New("TLS handshake failed")

	// ErrNetworkUnreachable indicates the KME could not be reached or
	// returned a server-side failure.
	ErrNetworkUnreachable = errors.New("KME unreachable")

	// ErrProtocolDecode indicates the KME response could not be decoded or
	// is missing required fields.
	ErrProtocolDecode = errors.New("malformed KME response")

	// ErrKeyNotFound indicates the KME holds no key matching the request:
	// an empty container on acquire-next, or no key for the identifier on
	// acquire-by-identifier.
	ErrKeyNotFound = errors.New("key not found")

	// ErrSessionState indicates an operation was attempted in the wrong
	// session state, such as key acquisition on a connection-oriented
	// context that has not been opened.
	ErrSessionState = errors.New("invalid session state")
)
