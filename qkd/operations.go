package qkd

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/qursa-uc3m/qkd-etsi-client/api"
	"github.com/qursa-uc3m/qkd-etsi-client/cryptoutils"
	"github.com/qursa-uc3m/qkd-etsi-client/interfaces"
)

// GetStatus queries the KME's key-pool status and records it in the
// Context. On any failure the previously observed status is left untouched.
func (c *Context) GetStatus(ctx context.Context) error {
	if err := c.guard(); err != nil {
		return err
	}

	if c.variant == interfaces.VariantConnectionOriented {
		if !c.connected {
			return fmt.Errorf("session is not open: %w", interfaces.ErrSessionState)
		}
		reporter, ok := c.device.(interfaces.DeviceStatus)
		if !ok {
			return fmt.Errorf("vendor device does not report pool status: %w", interfaces.ErrSessionState)
		}
		stored, max, keySize, err := reporter.Status(ctx, c.handle)
		if err != nil {
			return fmt.Errorf("could not query device status: %v: %w", err, interfaces.ErrNetworkUnreachable)
		}
		c.status = api.Status{StoredKeyCount: stored, MaxKeyCount: max, KeySize: keySize}
		return nil
	}

	client, err := c.statelessClient()
	if err != nil {
		return err
	}

	status, err := client.Status(ctx, c.peerSAE())
	if err != nil {
		return err
	}

	c.status = status
	c.log.Debug("KME status refreshed",
		"stored", status.StoredKeyCount, "max", status.MaxKeyCount, "keySize", status.KeySize)
	return nil
}

// GetKey retrieves the next available key from the KME (acquire-next). The
// KME chooses the key and returns its identifier alongside the material;
// both are recorded in the Context so the identifier can be announced to
// the peer out-of-band. Any failure leaves the currently held key unchanged.
func (c *Context) GetKey(ctx context.Context) error {
	if err := c.guard(); err != nil {
		return err
	}

	if c.variant == interfaces.VariantConnectionOriented {
		if !c.connected {
			return fmt.Errorf("session is not open: %w", interfaces.ErrSessionState)
		}
		id, raw, err := c.device.GetKey(ctx, c.handle, "")
		if err != nil {
			return fmt.Errorf("could not retrieve key from device: %v: %w", err, interfaces.ErrKeyNotFound)
		}
		return c.installKey(id, raw)
	}

	client, err := c.statelessClient()
	if err != nil {
		return err
	}

	container, err := client.GetKey(ctx, c.peerSAE(), api.KeyRequest{})
	if err != nil {
		return err
	}

	return c.consumeContainer(container, "")
}

// GetKeyWithID resolves a key identifier learned out-of-band against the
// KME (acquire-by-identifier). The returned key must carry the requested
// identifier; anything else is a failure that leaves the held key unchanged.
func (c *Context) GetKeyWithID(ctx context.Context, id interfaces.KeyID) error {
	if err := c.guard(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("no key identifier supplied: %w", interfaces.ErrConfigurationMissing)
	}

	if c.variant == interfaces.VariantConnectionOriented {
		if !c.connected {
			return fmt.Errorf("session is not open: %w", interfaces.ErrSessionState)
		}
		gotID, raw, err := c.device.GetKey(ctx, c.handle, id)
		if err != nil {
			return fmt.Errorf("could not retrieve key %s from device: %v: %w", id, err, interfaces.ErrKeyNotFound)
		}
		if gotID != id {
			return fmt.Errorf("device returned key %s instead of %s: %w", gotID, id, interfaces.ErrKeyNotFound)
		}
		return c.installKey(id, raw)
	}

	client, err := c.statelessClient()
	if err != nil {
		return err
	}

	container, err := client.GetKeyWithIDs(ctx, c.peerSAE(), []interfaces.KeyID{id})
	if err != nil {
		return err
	}

	return c.consumeContainer(container, id)
}

// consumeContainer installs key material from a validated KME response.
// With a non-zero wantID the container must hold a key with exactly that
// identifier; otherwise the first key is consumed and any further entries
// are ignored (single-key semantics over multi-key pools).
func (c *Context) consumeContainer(container api.KeyContainer, wantID interfaces.KeyID) error {
	entry := container.Keys[0]
	if wantID != "" {
		found := false
		for _, k := range container.Keys {
			if k.KeyID == wantID.String() {
				entry, found = k, true
				break
			}
		}
		if !found {
			return fmt.Errorf("KME response holds no key with identifier %s: %w", wantID, interfaces.ErrKeyNotFound)
		}
	}

	raw, err := base64.StdEncoding.DecodeString(entry.Key)
	if err != nil {
		return fmt.Errorf("could not decode key material for %s: %v: %w", entry.KeyID, err, interfaces.ErrProtocolDecode)
	}

	id, err := interfaces.NewKeyID(entry.KeyID)
	if err != nil {
		return fmt.Errorf("%v: %w", err, interfaces.ErrProtocolDecode)
	}
	return c.installKey(id, raw)
}

// installKey wraps raw key bytes as owned material and swaps it into the
// Context, releasing any previously held key. The input buffer is zeroized;
// installKey takes over the only live copy. Called only after every failure
// path has been ruled out so a failed retrieval can never clobber a
// previously held key.
func (c *Context) installKey(id interfaces.KeyID, raw []byte) error {
	material, err := cryptoutils.NewKeyMaterial(raw)
	for i := range raw {
		raw[i] = 0
	}
	if err != nil {
		return fmt.Errorf("%v: %w", err, interfaces.ErrProtocolDecode)
	}

	if c.key != nil {
		c.key.Destroy()
	}
	c.key = material
	c.lastKeyID = id
	c.log.Debug("key material installed", "keyID", id.String(), "bytes", material.Len())
	return nil
}
