// Package collateral models the external base-asset ledgers (USDC, DAI
// and similar) that the wrap ledger pulls collateral from and releases
// collateral back to.
package collateral

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("collateral: insufficient balance")
	ErrInsufficientAllowance = errors.New("collateral: insufficient allowance")
)

// BaseAssetLedger is the surface the wrap ledger needs from a base
// asset: balance moves and allowance-gated pulls into custody.
type BaseAssetLedger interface {
	Decimals() uint8
	BalanceOf(account common.Address) *big.Int
	Allowance(owner, spender common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, owner, to common.Address, amount *big.Int) error
}

// Ledger is an in-memory BaseAssetLedger. It carries its own lock since
// base-asset reads arrive from query handlers outside the core writer.
type Ledger struct {
	mu         sync.RWMutex
	symbol     string
	decimals   uint8
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

func NewLedger(symbol string, decimals uint8) *Ledger {
	return &Ledger{
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (l *Ledger) Symbol() string  { return l.symbol }
func (l *Ledger) Decimals() uint8 { return l.decimals }

func (l *Ledger) BalanceOf(account common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if v, ok := l.balances[account]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if row, ok := l.allowances[owner]; ok {
		if v, ok := row[spender]; ok {
			return new(big.Int).Set(v)
		}
	}
	return new(big.Int)
}

// Mint credits an account. Base-asset supply lives outside this system,
// so mint here is a fixture operation for tests and local runs.
func (l *Ledger) Mint(account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(account, amount)
}

// Approve lets spender pull up to amount from owner.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.allowances[owner]
	if !ok {
		row = make(map[common.Address]*big.Int)
		l.allowances[owner] = row
	}
	row[spender] = new(big.Int).Set(amount)
}

func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

// TransferFrom moves owner's funds to another account on the spender's
// authority, consuming allowance.
func (l *Ledger) TransferFrom(spender, owner, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	row, ok := l.allowances[owner]
	var granted *big.Int
	if ok {
		granted = row[spender]
	}
	if granted == nil || granted.Cmp(amount) < 0 {
		return fmt.Errorf("%s: owner %s spender %s: %w", l.symbol, owner.Hex(), spender.Hex(), ErrInsufficientAllowance)
	}
	if err := l.move(owner, to, amount); err != nil {
		return err
	}
	granted.Sub(granted, amount)
	return nil
}

func (l *Ledger) move(from, to common.Address, amount *big.Int) error {
	bal, ok := l.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%s: account %s: %w", l.symbol, from.Hex(), ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)
	l.credit(to, amount)
	return nil
}

func (l *Ledger) credit(account common.Address, amount *big.Int) {
	if v, ok := l.balances[account]; ok {
		v.Add(v, amount)
		return
	}
	l.balances[account] = new(big.Int).Set(amount)
}
