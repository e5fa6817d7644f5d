// Package kmesim provides a local KME simulator: an in-memory key pool
// exposed over the ETSI GS QKD 014 REST endpoints and, for the
// connection-oriented variant, as a vendor device implementation. It exists
// so the client can be exercised end-to-end without QKD hardware.
package kmesim

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/qursa-uc3m/qkd-etsi-client/api"
	"github.com/qursa-uc3m/qkd-etsi-client/interfaces"
)

// PoolConfig configures a simulated key pool.
type PoolConfig struct {
	// Seed drives the deterministic key stream. Must be at least 32 bytes.
	Seed []byte

	// KeySizeBits is the size of issued keys. Defaults to 256; must be a
	// multiple of 8.
	KeySizeBits int

	// MaxKeyCount is the pool capacity. Defaults to 1024.
	MaxKeyCount int
}

// KeyPool is a deterministic in-memory key pool. Keys are derived from the
// seed with HKDF keyed by their identifier, so a pool rebuilt from the same
// seed reproduces any key it has issued. Issued keys stay resolvable by
// identifier until the pool is dropped, mirroring a KME serving dec_keys
// requests for its peer SAE.
type KeyPool struct {
	mu          sync.Mutex
	seed        []byte
	keySizeBits int
	maxKeyCount int
	issued      map[interfaces.KeyID][]byte
}

// NewKeyPool creates a pool from the given configuration.
func NewKeyPool(cfg PoolConfig) (*KeyPool, error) {
	if len(cfg.Seed) < 32 {
		return nil, errors.New("pool seed must be at least 32 bytes")
	}

	keySizeBits := cfg.KeySizeBits
	if keySizeBits == 0 {
		keySizeBits = 256
	}
	if keySizeBits <= 0 || keySizeBits%8 != 0 {
		return nil, fmt.Errorf("key size %d is not a positive multiple of 8 bits", keySizeBits)
	}

	maxKeyCount := cfg.MaxKeyCount
	if maxKeyCount == 0 {
		maxKeyCount = 1024
	}
	if maxKeyCount < 0 {
		return nil, fmt.Errorf("invalid pool capacity %d", maxKeyCount)
	}

	seed := make([]byte, len(cfg.Seed))
	copy(seed, cfg.Seed)

	return &KeyPool{
		seed:        seed,
		keySizeBits: keySizeBits,
		maxKeyCount: maxKeyCount,
		issued:      make(map[interfaces.KeyID][]byte),
	}, nil
}

// NewKey issues the next key from the pool: a fresh UUID identifier and the
// key bytes derived for it. Fails when the pool is exhausted.
func (p *KeyPool) NewKey() (interfaces.KeyID, []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.issued) >= p.maxKeyCount {
		return "", nil, errors.New("key pool exhausted")
	}

	id := interfaces.KeyID(uuid.NewString())
	key, err := p.derive(id)
	if err != nil {
		return "", nil, err
	}

	p.issued[id] = key
	out := make([]byte, len(key))
	copy(out, key)
	return id, out, nil
}

// KeyByID resolves a previously issued key by its identifier.
func (p *KeyPool) KeyByID(id interfaces.KeyID) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key, ok := p.issued[id]
	if !ok {
		return nil, fmt.Errorf("no key with identifier %s", id)
	}
	out := make([]byte, len(key))
	copy(out, key)
	return out, nil
}

// Status reports the pool state in the ETSI 014 status shape.
func (p *KeyPool) Status() api.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return api.Status{
		StoredKeyCount: p.maxKeyCount - len(p.issued),
		MaxKeyCount:    p.maxKeyCount,
		KeySize:        p.keySizeBits,
	}
}

func (p *KeyPool) derive(id interfaces.KeyID) ([]byte, error) {
	key := make([]byte, p.keySizeBits/8)
	kdf := hkdf.New(sha256.New, p.seed, nil, []byte("qkd-sim-key:"+id.String()))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("could not derive key %s: %w", id, err)
	}
	return key, nil
}
