package ledger

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

// ============================================================================
// BalanceBook
// ============================================================================

func TestBalanceBook_MintTransferBurn(t *testing.T) {
	b := NewBalanceBook()

	if err := b.Mint(alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := b.Transfer(alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := b.Burn(bob, big.NewInt(100)); err != nil {
		t.Fatalf("burn: %v", err)
	}

	if got := b.BalanceOf(alice); got.Int64() != 600 {
		t.Errorf("alice balance: got %s, want 600", got)
	}
	if got := b.BalanceOf(bob); got.Int64() != 300 {
		t.Errorf("bob balance: got %s, want 300", got)
	}
	if got := b.TotalSupply(); got.Int64() != 900 {
		t.Errorf("total supply: got %s, want 900", got)
	}
}

func TestBalanceBook_TransferInsufficient(t *testing.T) {
	b := NewBalanceBook()
	b.SetBalance(alice, big.NewInt(10))

	err := b.Transfer(alice, bob, big.NewInt(11))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
	if got := b.BalanceOf(alice); got.Int64() != 10 {
		t.Errorf("failed transfer must not move funds, alice has %s", got)
	}
}

func TestBalanceBook_TransferZeroFromUnknownAccount(t *testing.T) {
	b := NewBalanceBook()

	if err := b.Transfer(alice, bob, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer from empty account: %v", err)
	}
	if err := b.Transfer(alice, bob, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
	if got := b.BalanceOf(bob); got.Sign() != 0 {
		t.Errorf("bob credited %s by zero transfer", got)
	}
}

func TestBalanceBook_AllowanceLifecycle(t *testing.T) {
	b := NewBalanceBook()

	if err := b.Approve(alice, bob, big.NewInt(50)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := b.SpendAllowance(alice, bob, big.NewInt(30)); err != nil {
		t.Fatalf("spend: %v", err)
	}
	if got := b.Allowance(alice, bob); got.Int64() != 20 {
		t.Errorf("allowance: got %s, want 20", got)
	}

	err := b.SpendAllowance(alice, bob, big.NewInt(21))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("got %v, want ErrInsufficientAllowance", err)
	}
}

func TestBalanceBook_BalanceOfIsCopy(t *testing.T) {
	b := NewBalanceBook()
	b.SetBalance(alice, big.NewInt(5))

	b.BalanceOf(alice).SetInt64(999)
	if got := b.BalanceOf(alice); got.Int64() != 5 {
		t.Errorf("internal balance mutated through accessor: %s", got)
	}
}

// ============================================================================
// LockBook
// ============================================================================

func TestLockBook_LockRelease(t *testing.T) {
	lb := NewLockBook()

	if err := lb.Lock(alice, "USDC", big.NewInt(700)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := lb.Release(alice, "USDC", big.NewInt(200)); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := lb.LockedAmount(alice, "USDC"); got.Int64() != 500 {
		t.Errorf("locked: got %s, want 500", got)
	}
	// Other assets are independent.
	if got := lb.LockedAmount(alice, "DAI"); got.Sign() != 0 {
		t.Errorf("DAI locked: got %s, want 0", got)
	}
}

func TestLockBook_ReleaseTooMuch(t *testing.T) {
	lb := NewLockBook()
	lb.SetLocked(alice, "USDC", big.NewInt(100))

	err := lb.Release(alice, "USDC", big.NewInt(101))
	if !errors.Is(err, ErrInsufficientLocked) {
		t.Errorf("got %v, want ErrInsufficientLocked", err)
	}
}

// ============================================================================
// ExchangeConfigStore
// ============================================================================

func TestExchangeConfigStore_SetGet(t *testing.T) {
	s := NewExchangeConfigStore()

	if err := s.Set("USDC", big.NewInt(25), big.NewInt(10000), 6); err != nil {
		t.Fatalf("set: %v", err)
	}
	cfg, err := s.Get("USDC")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.Rate.Int64() != 25 || cfg.RateBase.Int64() != 10000 || cfg.BaseDecimals != 6 {
		t.Errorf("got %+v, want 25/10000 @ 6 decimals", cfg)
	}
}

func TestExchangeConfigStore_RejectsZeroRateBase(t *testing.T) {
	s := NewExchangeConfigStore()
	err := s.Set("USDC", big.NewInt(25), big.NewInt(0), 6)
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("got %v, want ErrInvalidConfiguration", err)
	}
}

func TestExchangeConfigStore_UnknownAsset(t *testing.T) {
	s := NewExchangeConfigStore()
	_, err := s.Get("WBTC")
	if !errors.Is(err, ErrUnsupportedAsset) {
		t.Errorf("got %v, want ErrUnsupportedAsset", err)
	}
}

// ============================================================================
// ReservationBook
// ============================================================================

func newReservation(nonce uint64) Reservation {
	return Reservation{
		Sender:      alice,
		Recipient:   bob,
		Executor:    carol,
		Amount:      big.NewInt(100),
		Fee:         big.NewInt(5),
		Nonce:       nonce,
		ExpiryBlock: 500,
	}
}

func TestReservationBook_CreateTracksReserved(t *testing.T) {
	rb := NewReservationBook()

	if err := rb.Create(newReservation(1)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := rb.Create(newReservation(2)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := rb.ReservedBalance(alice); got.Int64() != 210 {
		t.Errorf("reserved: got %s, want 210", got)
	}
}

func TestReservationBook_NonceReuseBlocked(t *testing.T) {
	rb := NewReservationBook()
	if err := rb.Create(newReservation(7)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := rb.Reclaim(alice, 7); err != nil {
		t.Fatalf("reclaim: %v", err)
	}

	// The nonce remains consumed even after the reservation is finalized.
	err := rb.Create(newReservation(7))
	if !errors.Is(err, ErrNonceReused) {
		t.Errorf("got %v, want ErrNonceReused", err)
	}
}

func TestReservationBook_ExecuteReleasesHold(t *testing.T) {
	rb := NewReservationBook()
	if err := rb.Create(newReservation(1)); err != nil {
		t.Fatalf("create: %v", err)
	}

	r, err := rb.Execute(alice, 1)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if r.Status != StatusExecuted {
		t.Errorf("status: got %s, want executed", r.Status)
	}
	if got := rb.ReservedBalance(alice); got.Sign() != 0 {
		t.Errorf("reserved after execute: got %s, want 0", got)
	}
}

func TestReservationBook_FinalizeTwiceIsInvalidState(t *testing.T) {
	rb := NewReservationBook()
	if err := rb.Create(newReservation(1)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := rb.Execute(alice, 1); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if _, err := rb.Reclaim(alice, 1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("reclaim after execute: got %v, want ErrInvalidState", err)
	}
	if _, err := rb.Execute(alice, 1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("execute twice: got %v, want ErrInvalidState", err)
	}
}

func TestReservationBook_RestoreRebuildsHolds(t *testing.T) {
	rb := NewReservationBook()
	active := newReservation(1)
	active.Status = StatusActive
	done := newReservation(2)
	done.Status = StatusExecuted

	rb.Restore(active)
	rb.Restore(done)

	if got := rb.ReservedBalance(alice); got.Int64() != 105 {
		t.Errorf("reserved after restore: got %s, want 105", got)
	}
}

// ============================================================================
// RoleRegistry
// ============================================================================

func TestRoleRegistry_GrantRequiresAdmin(t *testing.T) {
	r := NewRoleRegistry()
	r.Bootstrap(RoleDefaultAdmin, alice)

	if err := r.Grant(alice, RoleMinter, bob); err != nil {
		t.Fatalf("grant by admin: %v", err)
	}
	if !r.HasRole(RoleMinter, bob) {
		t.Error("bob should hold MINTER")
	}

	err := r.Grant(bob, RoleMinter, carol)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("grant by non-admin: got %v, want ErrUnauthorized", err)
	}
	if r.HasRole(RoleMinter, carol) {
		t.Error("carol must not hold MINTER after rejected grant")
	}
}

func TestRoleRegistry_Revoke(t *testing.T) {
	r := NewRoleRegistry()
	r.Bootstrap(RoleDefaultAdmin, alice)
	if err := r.Grant(alice, RoleController, bob); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := r.Revoke(alice, RoleController, bob); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if r.HasRole(RoleController, bob) {
		t.Error("bob should no longer hold CONTROLLER")
	}
}

func TestRoleRegistry_MembersSorted(t *testing.T) {
	r := NewRoleRegistry()
	r.Bootstrap(RoleDefaultAdmin, alice)
	for _, a := range []common.Address{carol, bob} {
		if err := r.Grant(alice, RoleMinter, a); err != nil {
			t.Fatalf("grant: %v", err)
		}
	}

	members := r.RoleMembers(RoleMinter)
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	if members[0] != bob || members[1] != carol {
		t.Errorf("members not sorted: %v", members)
	}
}
