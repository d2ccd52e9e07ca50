package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type allowanceKey struct {
	Owner   common.Address
	Spender common.Address
}

// BalanceBook maintains in-memory native token balances and allowances.
// Amounts are non-negative big integers owned by the book; accessors
// return copies so callers cannot mutate internal state.
type BalanceBook struct {
	balances    map[common.Address]*big.Int
	allowances  map[allowanceKey]*big.Int
	totalSupply *big.Int
}

func NewBalanceBook() *BalanceBook {
	return &BalanceBook{
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[allowanceKey]*big.Int),
		totalSupply: new(big.Int),
	}
}

// BalanceOf returns the current balance for an account.
func (b *BalanceBook) BalanceOf(account common.Address) *big.Int {
	if bal, ok := b.balances[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// TotalSupply returns the total minted supply.
func (b *BalanceBook) TotalSupply() *big.Int {
	return new(big.Int).Set(b.totalSupply)
}

// Allowance returns the remaining amount spender may move from owner.
func (b *BalanceBook) Allowance(owner, spender common.Address) *big.Int {
	if a, ok := b.allowances[allowanceKey{owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// Approve overwrites the allowance owner grants to spender.
func (b *BalanceBook) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("approve %s: negative amount", owner.Hex())
	}
	b.allowances[allowanceKey{owner, spender}] = new(big.Int).Set(amount)
	return nil
}

// SpendAllowance reduces the owner->spender allowance by amount.
func (b *BalanceBook) SpendAllowance(owner, spender common.Address, amount *big.Int) error {
	key := allowanceKey{owner, spender}
	current, ok := b.allowances[key]
	if !ok || current.Cmp(amount) < 0 {
		have := new(big.Int)
		if ok {
			have = current
		}
		return fmt.Errorf("spend allowance %s->%s: have %s, need %s: %w",
			owner.Hex(), spender.Hex(), have, amount, ErrInsufficientAllowance)
	}
	current.Sub(current, amount)
	return nil
}

// Transfer moves amount from one account to another. An account with
// no entry holds zero, so a zero-amount transfer always succeeds.
func (b *BalanceBook) Transfer(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("transfer from %s: negative amount", from.Hex())
	}
	bal, ok := b.balances[from]
	if !ok {
		bal = new(big.Int)
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("transfer from %s: have %s, need %s: %w",
			from.Hex(), bal, amount, ErrInsufficientBalance)
	}
	if amount.Sign() == 0 {
		return nil
	}
	bal.Sub(bal, amount)
	b.credit(to, amount)
	return nil
}

// Mint credits an account and grows total supply.
func (b *BalanceBook) Mint(account common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("mint to %s: negative amount", account.Hex())
	}
	b.credit(account, amount)
	b.totalSupply.Add(b.totalSupply, amount)
	return nil
}

// Burn debits an account and shrinks total supply.
func (b *BalanceBook) Burn(account common.Address, amount *big.Int) error {
	bal, ok := b.balances[account]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("burn from %s: have %s, need %s: %w",
			account.Hex(), b.BalanceOf(account), amount, ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)
	b.totalSupply.Sub(b.totalSupply, amount)
	return nil
}

// SetBalance installs a balance directly. Used when reloading persisted
// state at startup; not part of the operation surface.
func (b *BalanceBook) SetBalance(account common.Address, amount *big.Int) {
	b.balances[account] = new(big.Int).Set(amount)
}

// SetAllowance installs an allowance directly for state reload.
func (b *BalanceBook) SetAllowance(owner, spender common.Address, amount *big.Int) {
	b.allowances[allowanceKey{owner, spender}] = new(big.Int).Set(amount)
}

// SetTotalSupply installs the total supply directly for state reload.
func (b *BalanceBook) SetTotalSupply(amount *big.Int) {
	b.totalSupply = new(big.Int).Set(amount)
}

func (b *BalanceBook) credit(account common.Address, amount *big.Int) {
	if bal, ok := b.balances[account]; ok {
		bal.Add(bal, amount)
		return
	}
	b.balances[account] = new(big.Int).Set(amount)
}
