package qkd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/qursa-uc3m/qkd-etsi-client/api"
	"github.com/qursa-uc3m/qkd-etsi-client/cryptoutils"
	"github.com/qursa-uc3m/qkd-etsi-client/interfaces"
	"github.com/qursa-uc3m/qkd-etsi-client/kmeclient"
)

// Config carries everything a Context needs, resolved by the caller up
// front. Components never read ambient process state; environment parsing
// happens only at the CLI edge. The credential paths for the two roles come
// from disjoint configuration sources, so an initiator config never carries
// responder credentials and vice versa.
type Config struct {
	// Role selects the endpoint's side of the link.
	Role interfaces.Role

	// SourceURI identifies this endpoint's SAE.
	SourceURI string

	// DestURI identifies the peer SAE. Used as the path parameter of KME
	// requests; falls back to SourceURI when unset.
	DestURI string

	// MasterKMEHost is the initiator's KME base URL.
	MasterKMEHost string

	// SlaveKMEHost is the responder's KME base URL.
	SlaveKMEHost string

	// CACertPath, ClientCertPath and ClientKeyPath are the role-specific
	// TLS credential paths. All three are required before any network
	// operation.
	CACertPath     string
	ClientCertPath string
	ClientKeyPath  string

	// Timeout bounds every KME call. Defaults to kmeclient.DefaultTimeout.
	Timeout time.Duration

	// Variant selects the wire protocol. Defaults to stateless (ETSI 014).
	Variant interfaces.Variant

	// Device is the vendor QKD API for the connection-oriented variant.
	Device interfaces.Device

	// HTTPClient overrides the mutual-TLS transport for the stateless
	// variant. Primarily for testing.
	HTTPClient *http.Client

	// Log receives diagnostic records. Defaults to a discarding logger.
	Log *slog.Logger
}

// Context is one endpoint of a QKD link. It threads role, hosts,
// credentials, session state and the currently held key through all client
// operations. A Context is used by a single logical caller at a time.
type Context struct {
	role      interfaces.Role
	sourceURI string
	destURI   string

	masterKMEHost string
	slaveKMEHost  string

	credentialPaths [3]string
	credentials     cryptoutils.CredentialBundle
	provisioned     bool

	timeout    time.Duration
	httpClient *http.Client
	client     *kmeclient.Client

	variant   interfaces.Variant
	device    interfaces.Device
	handle    interfaces.SessionHandle
	connected bool

	status    api.Status
	key       *cryptoutils.KeyMaterial
	lastKeyID interfaces.KeyID

	destroyed bool
	log       *slog.Logger
}

// NewContext creates an empty Context for the given configuration. No
// credential validation or network I/O happens here; InitCertificates must
// run before any KME operation.
func NewContext(cfg *Config) (*Context, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil configuration: %w", interfaces.ErrConfigurationMissing)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = kmeclient.DefaultTimeout
	}

	log := cfg.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Context{
		role:            cfg.Role,
		sourceURI:       cfg.SourceURI,
		destURI:         cfg.DestURI,
		masterKMEHost:   cfg.MasterKMEHost,
		slaveKMEHost:    cfg.SlaveKMEHost,
		credentialPaths: [3]string{cfg.CACertPath, cfg.ClientCertPath, cfg.ClientKeyPath},
		timeout:         timeout,
		httpClient:      cfg.HTTPClient,
		variant:         cfg.Variant,
		device:          cfg.Device,
		log:             log.With("role", cfg.Role.String(), "variant", cfg.Variant.String()),
	}, nil
}

// InitCertificates resolves and validates the TLS credential bundle for this
// endpoint's role. The bundle is populated atomically: if any of the three
// paths is missing the Context's credentials stay unset.
func (c *Context) InitCertificates() error {
	if c == nil {
		return fmt.Errorf("nil QKD context: %w", interfaces.ErrConfigurationMissing)
	}
	if c.destroyed {
		return fmt.Errorf("context has been destroyed: %w", interfaces.ErrSessionState)
	}

	bundle, err := cryptoutils.NewCredentialBundle(c.credentialPaths[0], c.credentialPaths[1], c.credentialPaths[2])
	if err != nil {
		return fmt.Errorf("%v: %w", err, interfaces.ErrConfigurationMissing)
	}

	c.credentials = bundle
	c.provisioned = true
	c.client = nil // force transport rebuild with the new bundle
	c.log.Debug("credentials provisioned", "ca", bundle.CACertPath)
	return nil
}

// Credentials returns the provisioned credential bundle, or an error if
// InitCertificates has not succeeded yet.
func (c *Context) Credentials() (cryptoutils.CredentialBundle, error) {
	if c == nil || !c.provisioned {
		return cryptoutils.CredentialBundle{}, fmt.Errorf("credentials not provisioned: %w", interfaces.ErrConfigurationMissing)
	}
	return c.credentials, nil
}

// Role returns the endpoint's role.
func (c *Context) Role() interfaces.Role { return c.role }

// Status returns the most recently observed KME status. The value is stale
// until GetStatus succeeds.
func (c *Context) Status() api.Status { return c.status }

// LastKeyID returns the identifier of the most recently retrieved key
// (initiator) or the identifier last used for lookup (responder).
func (c *Context) LastKeyID() interfaces.KeyID { return c.lastKeyID }

// IsConnected reports whether a connection-oriented session is open.
func (c *Context) IsConnected() bool { return c != nil && c.connected }

// Key returns the currently held key material. The Context retains
// ownership; the material is released on Destroy or when a new retrieval
// replaces it.
func (c *Context) Key() (*cryptoutils.KeyMaterial, error) {
	if c == nil {
		return nil, fmt.Errorf("nil QKD context: %w", interfaces.ErrConfigurationMissing)
	}
	if c.key == nil {
		return nil, fmt.Errorf("no key has been retrieved: %w", interfaces.ErrKeyNotFound)
	}
	return c.key, nil
}

// Destroy releases the Context: held key material is zeroized and an open
// connection-oriented session is abandoned. Destroy is idempotent, so
// teardown paths can call it unconditionally.
func (c *Context) Destroy() {
	if c == nil || c.destroyed {
		return
	}
	c.destroyed = true

	if c.connected && c.device != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.device.Close(ctx, c.handle); err != nil {
			c.log.Warn("could not close QKD session during teardown", "err", err)
		}
	}
	c.connected = false
	c.handle = ""

	if c.key != nil {
		c.key.Destroy()
		c.key = nil
	}
	c.sourceURI = ""
	c.destURI = ""
	c.credentials = cryptoutils.CredentialBundle{}
	c.client = nil
}

// kmeHost returns the KME base URL for this endpoint's role. The initiator
// only ever contacts the master KME, the responder the slave KME.
func (c *Context) kmeHost() (string, error) {
	var host string
	switch c.role {
	case interfaces.RoleInitiator:
		host = c.masterKMEHost
	case interfaces.RoleResponder:
		host = c.slaveKMEHost
	}
	if host == "" {
		return "", fmt.Errorf("no KME host configured for role %s: %w", c.role, interfaces.ErrConfigurationMissing)
	}
	return host, nil
}

// peerSAE returns the SAE identifier used as the KME request path parameter.
func (c *Context) peerSAE() string {
	if c.destURI != "" {
		return c.destURI
	}
	return c.sourceURI
}

// statelessClient returns the cached KME channel, establishing it on first
// use. Establishing validates the host address and credential bundle before
// any network I/O.
func (c *Context) statelessClient() (*kmeclient.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	if !c.provisioned && c.httpClient == nil {
		return nil, fmt.Errorf("credentials not provisioned: %w", interfaces.ErrConfigurationMissing)
	}

	host, err := c.kmeHost()
	if err != nil {
		return nil, err
	}

	client, err := kmeclient.NewClient(kmeclient.ClientConfig{
		KMEHost:     host,
		Credentials: c.credentials,
		Timeout:     c.timeout,
		HTTPClient:  c.httpClient,
	})
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// guard bundles the precondition checks shared by all network operations.
func (c *Context) guard() error {
	if c == nil {
		return fmt.Errorf("nil QKD context: %w", interfaces.ErrConfigurationMissing)
	}
	if c.destroyed {
		return fmt.Errorf("context has been destroyed: %w", interfaces.ErrSessionState)
	}
	return nil
}
