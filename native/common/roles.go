package common

import "errors"

// ErrUnauthorized is returned when the caller does not hold the role required
// by a gated operation.
var ErrUnauthorized = errors.New("caller unauthorized")

// Role names a capability consulted by the gated engine operations.
type Role string

const (
	// RoleOwner is the platform administrator.
	RoleOwner Role = "owner"
	// RoleVerifier may confirm or reject pending submissions and conversions.
	RoleVerifier Role = "verifier"
	// RolePartner may create and fund staking pools.
	RolePartner Role = "partner"
)

// RoleView exposes the authorization table to the native engines.
type RoleView interface {
	HasRole(addr [20]byte, role Role) bool
}

// Authorize is the single permission check consulted at the start of every
// gated operation. It is a pure function over the caller identity and the
// role table.
func Authorize(v RoleView, caller [20]byte, role Role) error {
	if v == nil || !v.HasRole(caller, role) {
		return ErrUnauthorized
	}
	return nil
}

// AuthorizeAny accepts the first role the caller holds. Used for operations
// gated on partner-or-owner style checks.
func AuthorizeAny(v RoleView, caller [20]byte, roles ...Role) error {
	if v == nil {
		return ErrUnauthorized
	}
	for _, role := range roles {
		if v.HasRole(caller, role) {
			return nil
		}
	}
	return ErrUnauthorized
}

// RoleRegistry is the in-memory RoleView implementation owned by the daemon.
// Mutations are expected to be gated on the owner role by the caller.
type RoleRegistry struct {
	owner     [20]byte
	verifiers map[[20]byte]struct{}
	partners  map[[20]byte]struct{}
}

// NewRoleRegistry constructs a registry with the supplied owner address.
func NewRoleRegistry(owner [20]byte) *RoleRegistry {
	return &RoleRegistry{
		owner:     owner,
		verifiers: make(map[[20]byte]struct{}),
		partners:  make(map[[20]byte]struct{}),
	}
}

// HasRole implements the RoleView interface.
func (r *RoleRegistry) HasRole(addr [20]byte, role Role) bool {
	if r == nil {
		return false
	}
	switch role {
	case RoleOwner:
		return addr == r.owner
	case RoleVerifier:
		_, ok := r.verifiers[addr]
		return ok
	case RolePartner:
		_, ok := r.partners[addr]
		return ok
	default:
		return false
	}
}

// Owner returns the configured owner address.
func (r *RoleRegistry) Owner() [20]byte {
	if r == nil {
		return [20]byte{}
	}
	return r.owner
}

// Grant adds the address to the named role set. Granting the owner role
// transfers ownership.
func (r *RoleRegistry) Grant(addr [20]byte, role Role) {
	if r == nil {
		return
	}
	switch role {
	case RoleOwner:
		r.owner = addr
	case RoleVerifier:
		r.verifiers[addr] = struct{}{}
	case RolePartner:
		r.partners[addr] = struct{}{}
	}
}

// Revoke removes the address from the named role set. The owner role cannot be
// revoked, only transferred via Grant.
func (r *RoleRegistry) Revoke(addr [20]byte, role Role) {
	if r == nil {
		return
	}
	switch role {
	case RoleVerifier:
		delete(r.verifiers, addr)
	case RolePartner:
		delete(r.partners, addr)
	}
}

// RoleSnapshot is the serializable form of the registry. The daemon persists
// it after every mutation so grants and ownership transfers survive restarts.
type RoleSnapshot struct {
	Owner     [20]byte   `json:"owner"`
	Verifiers [][20]byte `json:"verifiers"`
	Partners  [][20]byte `json:"partners"`
}

// Snapshot exports the current role table.
func (r *RoleRegistry) Snapshot() RoleSnapshot {
	snap := RoleSnapshot{}
	if r == nil {
		return snap
	}
	snap.Owner = r.owner
	for addr := range r.verifiers {
		snap.Verifiers = append(snap.Verifiers, addr)
	}
	for addr := range r.partners {
		snap.Partners = append(snap.Partners, addr)
	}
	return snap
}

// Restore replaces the role table with the snapshot contents.
func (r *RoleRegistry) Restore(snap RoleSnapshot) {
	if r == nil {
		return
	}
	r.owner = snap.Owner
	r.verifiers = make(map[[20]byte]struct{}, len(snap.Verifiers))
	for _, addr := range snap.Verifiers {
		r.verifiers[addr] = struct{}{}
	}
	r.partners = make(map[[20]byte]struct{}, len(snap.Partners))
	for _, addr := range snap.Partners {
		r.partners[addr] = struct{}{}
	}
}
