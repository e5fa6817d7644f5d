package qkd

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qursa-uc3m/qkd-etsi-client/interfaces"
	"github.com/qursa-uc3m/qkd-etsi-client/kmesim"
)

// newSimDevice creates a simulated vendor device over a fresh key pool.
func newSimDevice(t *testing.T) *kmesim.Device {
	t.Helper()

	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	require.NoError(t, err)

	pool, err := kmesim.NewKeyPool(kmesim.PoolConfig{
		Seed:        seed,
		KeySizeBits: 256,
		MaxKeyCount: 100,
	})
	require.NoError(t, err)
	return kmesim.NewDevice(pool)
}

func newSessionContext(t *testing.T, role interfaces.Role, device interfaces.Device) *Context {
	t.Helper()

	qctx, err := NewContext(&Config{
		Role:           role,
		SourceURI:      "sae-1",
		DestURI:        "sae-2",
		Variant:        interfaces.VariantConnectionOriented,
		Device:         device,
		CACertPath:     "/tmp/ca.crt",
		ClientCertPath: "/tmp/client.crt",
		ClientKeyPath:  "/tmp/client.key",
	})
	require.NoError(t, err)
	t.Cleanup(qctx.Destroy)
	require.NoError(t, qctx.InitCertificates())
	return qctx
}

func TestSessionLifecycle(t *testing.T) {
	qctx := newSessionContext(t, interfaces.RoleInitiator, newSimDevice(t))
	ctx := context.Background()

	assert.False(t, qctx.IsConnected())

	require.NoError(t, qctx.Open(ctx))
	assert.True(t, qctx.IsConnected())

	// Reopening an open session is not a defined transition.
	assert.ErrorIs(t, qctx.Open(ctx), interfaces.ErrSessionState)

	require.NoError(t, qctx.GetStatus(ctx))
	status := qctx.Status()
	assert.Equal(t, 100, status.StoredKeyCount)
	assert.Equal(t, 100, status.MaxKeyCount)
	assert.Equal(t, 256, status.KeySize)

	require.NoError(t, qctx.GetKey(ctx))
	key, err := qctx.Key()
	require.NoError(t, err)
	assert.Equal(t, 32, key.Len())

	require.NoError(t, qctx.Close(ctx))
	assert.False(t, qctx.IsConnected())

	// Closing an already-closed session is an idempotent success.
	require.NoError(t, qctx.Close(ctx))
}

func TestSession_RequiresOpen(t *testing.T) {
	qctx := newSessionContext(t, interfaces.RoleInitiator, newSimDevice(t))
	ctx := context.Background()

	assert.ErrorIs(t, qctx.GetKey(ctx), interfaces.ErrSessionState)
	assert.ErrorIs(t, qctx.GetKeyWithID(ctx, "some-id"), interfaces.ErrSessionState)
	assert.ErrorIs(t, qctx.GetStatus(ctx), interfaces.ErrSessionState)
}

func TestSession_KeyAgreement(t *testing.T) {
	// Both endpoints of the simulated link share one device, as they would
	// share one QKD channel.
	device := newSimDevice(t)
	initiator := newSessionContext(t, interfaces.RoleInitiator, device)
	responder := newSessionContext(t, interfaces.RoleResponder, device)
	ctx := context.Background()

	require.NoError(t, initiator.Open(ctx))
	require.NoError(t, responder.Open(ctx))

	// Initiator pulls a fresh key and announces its identifier out-of-band.
	require.NoError(t, initiator.GetKey(ctx))
	keyID := initiator.LastKeyID()
	require.NotEmpty(t, keyID)

	// Responder resolves the identifier and ends up with the same bytes.
	require.NoError(t, responder.GetKeyWithID(ctx, keyID))

	initiatorKey, err := initiator.Key()
	require.NoError(t, err)
	responderKey, err := responder.Key()
	require.NoError(t, err)

	initiatorBytes, err := initiatorKey.Bytes()
	require.NoError(t, err)
	responderBytes, err := responderKey.Bytes()
	require.NoError(t, err)
	assert.Equal(t, initiatorBytes, responderBytes)

	require.NoError(t, initiator.Close(ctx))
	require.NoError(t, responder.Close(ctx))
}

func TestSession_UnknownKeyID(t *testing.T) {
	qctx := newSessionContext(t, interfaces.RoleResponder, newSimDevice(t))
	ctx := context.Background()

	require.NoError(t, qctx.Open(ctx))

	err := qctx.GetKeyWithID(ctx, "never-issued")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	_, err = qctx.Key()
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestDestroy_AbandonsSession(t *testing.T) {
	device := newSimDevice(t)
	qctx := newSessionContext(t, interfaces.RoleInitiator, device)

	require.NoError(t, qctx.Open(context.Background()))
	require.NoError(t, qctx.GetKey(context.Background()))
	key, err := qctx.Key()
	require.NoError(t, err)

	qctx.Destroy()
	assert.False(t, qctx.IsConnected())
	assert.True(t, key.Destroyed())
}
