package kmesim

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qursa-uc3m/qkd-etsi-client/api"
)

func newTestServer(t *testing.T, maxKeys int) *Server {
	t.Helper()

	pool, err := NewKeyPool(PoolConfig{Seed: testSeed(), KeySizeBits: 256, MaxKeyCount: maxKeys})
	require.NoError(t, err)

	srv, err := New(&HTTPServerConfig{
		Log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		DrainDuration: time.Millisecond,
	}, pool)
	require.NoError(t, err)
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path string, body []byte) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w.Result()
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t, 100)

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/keys/sae-2/status", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	status, err := api.DecodeStatus(body)
	require.NoError(t, err)
	assert.Equal(t, api.Status{StoredKeyCount: 100, MaxKeyCount: 100, KeySize: 256}, status)
}

func TestHandleEncKeys_Get(t *testing.T) {
	srv := newTestServer(t, 100)

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/keys/sae-2/enc_keys", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	container, err := api.DecodeKeyContainer(body)
	require.NoError(t, err)
	assert.Len(t, container.Keys, 1)
}

func TestHandleEncKeys_PostNumber(t *testing.T) {
	srv := newTestServer(t, 100)

	reqBody, err := json.Marshal(api.KeyRequest{Number: 3})
	require.NoError(t, err)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/keys/sae-2/enc_keys", reqBody)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	container, err := api.DecodeKeyContainer(body)
	require.NoError(t, err)
	assert.Len(t, container.Keys, 3)
}

func TestHandleEncKeys_UnsupportedSize(t *testing.T) {
	srv := newTestServer(t, 100)

	reqBody, err := json.Marshal(api.KeyRequest{Size: 512})
	require.NoError(t, err)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/keys/sae-2/enc_keys", reqBody)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleEncKeys_Exhausted(t *testing.T) {
	srv := newTestServer(t, 1)

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/keys/sae-2/enc_keys", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/api/v1/keys/sae-2/enc_keys", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandleDecKeys_Roundtrip(t *testing.T) {
	srv := newTestServer(t, 100)

	// Issue a key first.
	resp := doRequest(t, srv, http.MethodGet, "/api/v1/keys/sae-2/enc_keys", nil)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	issued, err := api.DecodeKeyContainer(body)
	require.NoError(t, err)

	// Resolve it by identifier as the responder would.
	reqBody, err := json.Marshal(api.KeyIDsRequest{
		KeyIDs: []api.KeyIDEntry{{KeyID: issued.Keys[0].KeyID}},
	})
	require.NoError(t, err)

	resp = doRequest(t, srv, http.MethodPost, "/api/v1/keys/sae-1/dec_keys", reqBody)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	resolved, err := api.DecodeKeyContainer(body)
	require.NoError(t, err)
	assert.Equal(t, issued.Keys[0], resolved.Keys[0])
}

func TestHandleDecKeys_UnknownID(t *testing.T) {
	srv := newTestServer(t, 100)

	reqBody, err := json.Marshal(api.KeyIDsRequest{
		KeyIDs: []api.KeyIDEntry{{KeyID: "never-issued"}},
	})
	require.NoError(t, err)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/keys/sae-1/dec_keys", reqBody)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleDecKeys_BadRequest(t *testing.T) {
	srv := newTestServer(t, 100)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/keys/sae-1/dec_keys", []byte(`not json`))
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodPost, "/api/v1/keys/sae-1/dec_keys", []byte(`{"key_IDs":[]}`))
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReadinessAndDrain(t *testing.T) {
	srv := newTestServer(t, 100)

	resp := doRequest(t, srv, http.MethodGet, "/readyz", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/drain", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/readyz", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/undrain", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/readyz", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
