// Package interfaces defines the core types and contracts shared by the QKD
// client components. It provides the boundary between the protocol logic and
// its collaborators without implementation details.
package interfaces

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies which side of a QKD link this endpoint plays. The initiator
// (master SAE) pulls fresh keys from its KME and announces their identifiers
// out-of-band; the responder (slave SAE) resolves those identifiers against
// its own KME.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

// NewRoleFromString parses a role name. Both the initiator/responder and the
// legacy master/slave spellings are accepted.
func NewRoleFromString(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "initiator", "master":
		return RoleInitiator, nil
	case "responder", "slave":
		return RoleResponder, nil
	default:
		return 0, fmt.Errorf("invalid role %q: must be initiator or responder", s)
	}
}

// String returns the canonical role name.
func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// KeyID is the opaque identifier correlating a key at both endpoints of a
// QKD link without transmitting the key itself. KMEs following ETSI GS QKD
// 014 issue UUIDs, but the format is not enforced on the client side.
type KeyID string

// NewKeyID creates a key identifier with validation.
func NewKeyID(s string) (KeyID, error) {
	if s == "" {
		return "", errors.New("key identifier must not be empty")
	}
	return KeyID(s), nil
}

// String returns the identifier as a string.
func (id KeyID) String() string {
	return string(id)
}

// Variant selects the wire-protocol flavor a context speaks. The stateless
// variant issues independent REST calls per ETSI GS QKD 014; the
// connection-oriented variant drives a vendor device through explicit
// open/close per ETSI GS QKD 004.
type Variant int

const (
	VariantStateless Variant = iota
	VariantConnectionOriented
)

// String returns the variant name.
func (v Variant) String() string {
	switch v {
	case VariantStateless:
		return "stateless"
	case VariantConnectionOriented:
		return "connection-oriented"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}
