// Package kmeclient implements the stateless ETSI GS QKD 014 client: a
// mutual-TLS HTTP channel to one KME over which status queries and key
// retrievals are issued as independent REST calls.
package kmeclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/qursa-uc3m/qkd-etsi-client/api"
	"github.com/qursa-uc3m/qkd-etsi-client/cryptoutils"
	"github.com/qursa-uc3m/qkd-etsi-client/interfaces"
)

// DefaultTimeout bounds each KME call when the configuration does not
// specify one. KMEs can be slow; the client must never hang indefinitely.
const DefaultTimeout = 10 * time.Second

// ClientConfig configures a KME client.
type ClientConfig struct {
	// KMEHost is the base URL of the KME, e.g. "https://kme1.example.com".
	// Only the https scheme is accepted.
	KMEHost string

	// Credentials is the mutual-TLS credential bundle. Required unless
	// HTTPClient is set.
	Credentials cryptoutils.CredentialBundle

	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the TLS transport built from Credentials.
	// This is primarily for testing against httptest servers.
	HTTPClient *http.Client
}

// Client is a reusable channel to one KME. It is safe for sequential reuse
// across calls; callers needing concurrency create one client per goroutine.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient validates the KME address, builds the mutual-TLS transport from
// the credential bundle, and returns a ready-to-use channel. The address is
// checked before any network I/O: a missing host or a scheme other than
// https fails immediately.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.KMEHost == "" {
		return nil, fmt.Errorf("no KME host configured: %w", interfaces.ErrConfigurationMissing)
	}

	baseURL, err := url.Parse(cfg.KMEHost)
	if err != nil {
		return nil, fmt.Errorf("could not parse KME host %q: %w", cfg.KMEHost, interfaces.ErrInvalidAddress)
	}
	if baseURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q for KME host %q: %w", baseURL.Scheme, cfg.KMEHost, interfaces.ErrInvalidAddress)
	}
	if baseURL.Host == "" {
		return nil, fmt.Errorf("KME host %q has no host component: %w", cfg.KMEHost, interfaces.ErrInvalidAddress)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if err := cfg.Credentials.Validate(); err != nil {
			return nil, fmt.Errorf("unusable credential bundle: %v: %w", err, interfaces.ErrConfigurationMissing)
		}
		tlsConfig, err := cfg.Credentials.TLSConfig()
		if err != nil {
			return nil, fmt.Errorf("could not build TLS configuration: %v: %w", err, interfaces.ErrTLSHandshake)
		}
		httpClient = &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		}
	}
	// Never mutate a caller-supplied client in place.
	clientCopy := *httpClient
	clientCopy.Timeout = timeout

	return &Client{baseURL: baseURL, httpClient: &clientCopy}, nil
}

// Status queries the KME's key-pool status for the given peer SAE.
func (c *Client) Status(ctx context.Context, peerSAE string) (api.Status, error) {
	if peerSAE == "" {
		return api.Status{}, fmt.Errorf("no peer SAE configured: %w", interfaces.ErrConfigurationMissing)
	}

	body, err := c.do(ctx, http.MethodGet, api.StatusPath(peerSAE), nil)
	if err != nil {
		return api.Status{}, err
	}

	status, err := api.DecodeStatus(body)
	if err != nil {
		return api.Status{}, fmt.Errorf("%v: %w", err, interfaces.ErrProtocolDecode)
	}
	return status, nil
}

// GetKey requests fresh key material from the KME (the enc_keys endpoint).
// A zero-valued request asks for the KME's defaults via GET; otherwise the
// request parameters are POSTed.
func (c *Client) GetKey(ctx context.Context, peerSAE string, req api.KeyRequest) (api.KeyContainer, error) {
	if peerSAE == "" {
		return api.KeyContainer{}, fmt.Errorf("no peer SAE configured: %w", interfaces.ErrConfigurationMissing)
	}

	var body []byte
	var err error
	if req == (api.KeyRequest{}) {
		body, err = c.do(ctx, http.MethodGet, api.EncKeysPath(peerSAE), nil)
	} else {
		body, err = c.do(ctx, http.MethodPost, api.EncKeysPath(peerSAE), req)
	}
	if err != nil {
		return api.KeyContainer{}, err
	}

	container, err := api.DecodeKeyContainer(body)
	if err != nil {
		return api.KeyContainer{}, fmt.Errorf("%v: %w", err, interfaces.ErrProtocolDecode)
	}
	return container, nil
}

// GetKeyWithIDs resolves key identifiers learned out-of-band against the KME
// (the dec_keys endpoint).
func (c *Client) GetKeyWithIDs(ctx context.Context, peerSAE string, ids []interfaces.KeyID) (api.KeyContainer, error) {
	if peerSAE == "" {
		return api.KeyContainer{}, fmt.Errorf("no peer SAE configured: %w", interfaces.ErrConfigurationMissing)
	}
	if len(ids) == 0 {
		return api.KeyContainer{}, fmt.Errorf("no key identifiers supplied: %w", interfaces.ErrConfigurationMissing)
	}

	req := api.KeyIDsRequest{}
	for _, id := range ids {
		req.KeyIDs = append(req.KeyIDs, api.KeyIDEntry{KeyID: id.String()})
	}

	body, err := c.do(ctx, http.MethodPost, api.DecKeysPath(peerSAE), req)
	if err != nil {
		return api.KeyContainer{}, err
	}

	container, err := api.DecodeKeyContainer(body)
	if err != nil {
		return api.KeyContainer{}, fmt.Errorf("%v: %w", err, interfaces.ErrProtocolDecode)
	}
	return container, nil
}

// do executes one request against the KME and returns the response body on
// a 200 status. Transport and status failures are classified into the error
// taxonomy.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	reqURL := *c.baseURL
	reqURL.Path = path

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("could not encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read KME response: %v: %w", err, interfaces.ErrNetworkUnreachable)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatusError(resp.StatusCode, body)
	}
	return body, nil
}

func classifyTransportError(err error) error {
	var certVerifyErr *tls.CertificateVerificationError
	var recordErr tls.RecordHeaderError
	var unknownAuthErr x509.UnknownAuthorityError
	var certInvalidErr x509.CertificateInvalidError
	var hostnameErr x509.HostnameError
	switch {
	case errors.As(err, &certVerifyErr),
		errors.As(err, &recordErr),
		errors.As(err, &unknownAuthErr),
		errors.As(err, &certInvalidErr),
		errors.As(err, &hostnameErr):
		return fmt.Errorf("could not complete TLS handshake with KME: %v: %w", err, interfaces.ErrTLSHandshake)
	default:
		return fmt.Errorf("could not reach KME: %v: %w", err, interfaces.ErrNetworkUnreachable)
	}
}

func classifyStatusError(statusCode int, body []byte) error {
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("KME returned 404: %s: %w", body, interfaces.ErrKeyNotFound)
	case http.StatusBadRequest:
		return fmt.Errorf("KME rejected request: %s: %w", body, interfaces.ErrProtocolDecode)
	default:
		return fmt.Errorf("KME returned %d: %s: %w", statusCode, body, interfaces.ErrNetworkUnreachable)
	}
}
