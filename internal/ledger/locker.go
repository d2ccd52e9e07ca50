package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type lockKey struct {
	Account common.Address
	Asset   string
}

// LockBook tracks escrowed base-asset collateral per account and asset.
// Locked amounts only grow through Lock and shrink through Release; the
// book never goes negative.
type LockBook struct {
	locks map[lockKey]*big.Int
}

func NewLockBook() *LockBook {
	return &LockBook{locks: make(map[lockKey]*big.Int)}
}

// LockedAmount returns the escrowed amount for an account and asset.
func (lb *LockBook) LockedAmount(account common.Address, asset string) *big.Int {
	if v, ok := lb.locks[lockKey{account, asset}]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Lock adds amount to the account's escrowed collateral.
func (lb *LockBook) Lock(account common.Address, asset string, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("lock for %s/%s: negative amount", account.Hex(), asset)
	}
	key := lockKey{account, asset}
	if v, ok := lb.locks[key]; ok {
		v.Add(v, amount)
		return nil
	}
	lb.locks[key] = new(big.Int).Set(amount)
	return nil
}

// Release removes amount from the account's escrowed collateral.
func (lb *LockBook) Release(account common.Address, asset string, amount *big.Int) error {
	key := lockKey{account, asset}
	v, ok := lb.locks[key]
	if !ok || v.Cmp(amount) < 0 {
		return fmt.Errorf("release for %s/%s: have %s, need %s: %w",
			account.Hex(), asset, lb.LockedAmount(account, asset), amount, ErrInsufficientLocked)
	}
	v.Sub(v, amount)
	return nil
}

// SetLocked installs a locked amount directly for state reload.
func (lb *LockBook) SetLocked(account common.Address, asset string, amount *big.Int) {
	lb.locks[lockKey{account, asset}] = new(big.Int).Set(amount)
}
