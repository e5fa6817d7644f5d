package kmesim

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/qursa-uc3m/qkd-etsi-client/interfaces"
)

// Device implements the vendor QKD API (the connection-oriented variant's
// open/get-key/close primitives) over an in-memory key pool. Both endpoints
// of a simulated link share one Device, so a key issued to the initiator
// resolves by identifier for the responder.
type Device struct {
	mu       sync.Mutex
	pool     *KeyPool
	sessions map[interfaces.SessionHandle]struct{}
}

// NewDevice creates a simulated device over the given pool.
func NewDevice(pool *KeyPool) *Device {
	return &Device{
		pool:     pool,
		sessions: make(map[interfaces.SessionHandle]struct{}),
	}
}

// OpenConnect establishes a logical session. The credential bundle must be
// complete; a real vendor stack would refuse the connection without it.
func (d *Device) OpenConnect(ctx context.Context, req interfaces.OpenRequest) (interfaces.SessionHandle, error) {
	if err := req.Credentials.Validate(); err != nil {
		return "", fmt.Errorf("unusable credential bundle: %w", err)
	}
	if req.SourceURI == "" {
		return "", fmt.Errorf("source URI is required")
	}

	handle := interfaces.SessionHandle(uuid.NewString())
	d.mu.Lock()
	d.sessions[handle] = struct{}{}
	d.mu.Unlock()
	return handle, nil
}

// GetKey returns the next pool key, or the key matching id when non-zero.
func (d *Device) GetKey(ctx context.Context, handle interfaces.SessionHandle, id interfaces.KeyID) (interfaces.KeyID, []byte, error) {
	if err := d.checkSession(handle); err != nil {
		return "", nil, err
	}
	if id == "" {
		return d.pool.NewKey()
	}
	key, err := d.pool.KeyByID(id)
	if err != nil {
		return "", nil, err
	}
	return id, key, nil
}

// Close tears down a session. Closing an unknown handle is an error; the
// caller's Context provides idempotent teardown on top.
func (d *Device) Close(ctx context.Context, handle interfaces.SessionHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[handle]; !ok {
		return fmt.Errorf("unknown session %s", handle)
	}
	delete(d.sessions, handle)
	return nil
}

// Status reports the pool state for an open session.
func (d *Device) Status(ctx context.Context, handle interfaces.SessionHandle) (stored, max, keySize int, err error) {
	if err := d.checkSession(handle); err != nil {
		return 0, 0, 0, err
	}
	status := d.pool.Status()
	return status.StoredKeyCount, status.MaxKeyCount, status.KeySize, nil
}

func (d *Device) checkSession(handle interfaces.SessionHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[handle]; !ok {
		return fmt.Errorf("unknown session %s", handle)
	}
	return nil
}
