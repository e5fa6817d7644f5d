package qkd

import (
	"context"
	"fmt"

	"github.com/qursa-uc3m/qkd-etsi-client/interfaces"
)

// Open establishes the logical QKD session for the connection-oriented
// variant, taking the Context from Closed to Open. It fails without side
// effects if credentials have not been provisioned, the variant is
// stateless, or the session is already open.
func (c *Context) Open(ctx context.Context) error {
	if err := c.guard(); err != nil {
		return err
	}
	if c.variant != interfaces.VariantConnectionOriented {
		return fmt.Errorf("open is only valid for the connection-oriented variant: %w", interfaces.ErrSessionState)
	}
	if c.connected {
		return fmt.Errorf("session is already open: %w", interfaces.ErrSessionState)
	}
	if c.device == nil {
		return fmt.Errorf("no vendor device configured: %w", interfaces.ErrConfigurationMissing)
	}
	if err := c.credentials.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, interfaces.ErrConfigurationMissing)
	}

	handle, err := c.device.OpenConnect(ctx, interfaces.OpenRequest{
		SourceURI:   c.sourceURI,
		DestURI:     c.destURI,
		Credentials: c.credentials,
	})
	if err != nil {
		return fmt.Errorf("could not negotiate QKD session: %v: %w", err, interfaces.ErrNetworkUnreachable)
	}

	c.handle = handle
	c.connected = true
	c.log.Debug("QKD session opened", "handle", string(handle))
	return nil
}

// Close tears the session down, taking the Context from Open to Closed.
// Closing an already-closed session is an idempotent success, so teardown
// paths never have to track whether Open ran. The session is considered
// abandoned even when the underlying close fails: the connected flag drops
// in every case.
func (c *Context) Close(ctx context.Context) error {
	if err := c.guard(); err != nil {
		return err
	}
	if c.variant != interfaces.VariantConnectionOriented {
		return fmt.Errorf("close is only valid for the connection-oriented variant: %w", interfaces.ErrSessionState)
	}
	if !c.connected {
		return nil
	}

	handle := c.handle
	c.connected = false
	c.handle = ""

	if err := c.device.Close(ctx, handle); err != nil {
		return fmt.Errorf("could not close QKD session: %v: %w", err, interfaces.ErrNetworkUnreachable)
	}
	c.log.Debug("QKD session closed", "handle", string(handle))
	return nil
}
