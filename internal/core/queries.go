package core

import (
	"math/big"

	"WrapLedger/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
)

// TokenInfo is the static token metadata.
type TokenInfo struct {
	Name     string
	Symbol   string
	Decimals uint8
}

func (e *Engine) TokenInfo() TokenInfo {
	return TokenInfo{
		Name:     e.cfg.TokenName,
		Symbol:   e.cfg.TokenSymbol,
		Decimals: e.cfg.TokenDecimals,
	}
}

func (e *Engine) BalanceOf(account common.Address) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.balances.BalanceOf(account)
}

func (e *Engine) TotalSupply() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.balances.TotalSupply()
}

func (e *Engine) Allowance(owner, spender common.Address) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.balances.Allowance(owner, spender)
}

func (e *Engine) ReservedBalanceOf(account common.Address) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reservations.ReservedBalance(account)
}

func (e *Engine) UnreservedBalanceOf(account common.Address) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.unreserved(account)
}

func (e *Engine) LockedAmount(account common.Address, asset string) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.locks.LockedAmount(account, asset)
}

func (e *Engine) GetReservation(sender common.Address, nonce uint64) (ledger.Reservation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reservations.Get(sender, nonce)
}

func (e *Engine) GetTokenExchange(asset string) (ledger.ExchangeConfig, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.exchange.Get(asset)
}

func (e *Engine) HasRole(role string, account common.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.roles.HasRole(role, account)
}

func (e *Engine) RoleMembers(role string) []common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.roles.RoleMembers(role)
}

// Sequence returns the next sequence the core will assign.
func (e *Engine) Sequence() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sequence
}

// StateHash returns the current chain tip of the event hash chain.
func (e *Engine) StateHash() [32]byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hasher.Tip()
}
