package ledger

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Role names understood by the registry.
const (
	RoleDefaultAdmin  = "DEFAULT_ADMIN"
	RoleMinter        = "MINTER"
	RoleController    = "CONTROLLER"
	RoleExchangeAdmin = "EXCHANGE_ADMIN"
)

// RoleRegistry tracks which accounts hold which roles. Every role is
// administered by DEFAULT_ADMIN: only its holders may grant or revoke.
type RoleRegistry struct {
	members map[string]map[common.Address]struct{}
}

func NewRoleRegistry() *RoleRegistry {
	return &RoleRegistry{members: make(map[string]map[common.Address]struct{})}
}

// Bootstrap grants DEFAULT_ADMIN unconditionally. Used at genesis and
// during state reload, before any admin exists to authorize grants.
func (r *RoleRegistry) Bootstrap(role string, account common.Address) {
	r.set(role, account)
}

// HasRole reports whether the account holds the role.
func (r *RoleRegistry) HasRole(role string, account common.Address) bool {
	set, ok := r.members[role]
	if !ok {
		return false
	}
	_, ok = set[account]
	return ok
}

// RequireRole returns ErrUnauthorized when the account lacks the role.
func (r *RoleRegistry) RequireRole(role string, account common.Address) error {
	if !r.HasRole(role, account) {
		return fmt.Errorf("account %s lacks role %s: %w", account.Hex(), role, ErrUnauthorized)
	}
	return nil
}

// Grant adds the account to the role, authorized by caller.
func (r *RoleRegistry) Grant(caller common.Address, role string, account common.Address) error {
	if err := r.RequireRole(RoleDefaultAdmin, caller); err != nil {
		return err
	}
	r.set(role, account)
	return nil
}

// Revoke removes the account from the role, authorized by caller.
func (r *RoleRegistry) Revoke(caller common.Address, role string, account common.Address) error {
	if err := r.RequireRole(RoleDefaultAdmin, caller); err != nil {
		return err
	}
	if set, ok := r.members[role]; ok {
		delete(set, account)
	}
	return nil
}

// RoleMembers returns the role's holders in deterministic address order.
func (r *RoleRegistry) RoleMembers(role string) []common.Address {
	set, ok := r.members[role]
	if !ok {
		return nil
	}
	out := make([]common.Address, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

func (r *RoleRegistry) set(role string, account common.Address) {
	set, ok := r.members[role]
	if !ok {
		set = make(map[common.Address]struct{})
		r.members[role] = set
	}
	set[account] = struct{}{}
}
