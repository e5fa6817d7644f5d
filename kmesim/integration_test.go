package kmesim

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qursa-uc3m/qkd-etsi-client/interfaces"
	"github.com/qursa-uc3m/qkd-etsi-client/qkd"
)

// TestClientAgainstSimulator drives the full stateless flow: the initiator
// pulls a fresh key from the simulated KME and the responder resolves the
// announced identifier against the same key pool.
func TestClientAgainstSimulator(t *testing.T) {
	pool, err := NewKeyPool(PoolConfig{Seed: testSeed(), KeySizeBits: 256, MaxKeyCount: 100})
	require.NoError(t, err)

	srv, err := New(&HTTPServerConfig{
		Log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		DrainDuration: time.Millisecond,
	}, pool)
	require.NoError(t, err)

	// One TLS endpoint stands in for both KMEs; they share the pool the
	// way paired KMEs share quantum-derived material.
	kme := httptest.NewTLSServer(srv.Handler())
	defer kme.Close()

	initiator, err := qkd.NewContext(&qkd.Config{
		Role:          interfaces.RoleInitiator,
		SourceURI:     "sae-1",
		DestURI:       "sae-2",
		MasterKMEHost: kme.URL,
		HTTPClient:    kme.Client(),
	})
	require.NoError(t, err)
	defer initiator.Destroy()

	responder, err := qkd.NewContext(&qkd.Config{
		Role:         interfaces.RoleResponder,
		SourceURI:    "sae-2",
		DestURI:      "sae-1",
		SlaveKMEHost: kme.URL,
		HTTPClient:   kme.Client(),
	})
	require.NoError(t, err)
	defer responder.Destroy()

	ctx := context.Background()

	require.NoError(t, initiator.GetStatus(ctx))
	assert.Equal(t, 100, initiator.Status().StoredKeyCount)

	require.NoError(t, initiator.GetKey(ctx))
	keyID := initiator.LastKeyID()
	require.NotEmpty(t, keyID)

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
	assert.Len(t, initiatorBytes, 32)

	// Key issuance is visible in the pool status.
	require.NoError(t, initiator.GetStatus(ctx))
	assert.Equal(t, 99, initiator.Status().StoredKeyCount)
}
