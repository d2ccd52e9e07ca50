package core

import (
	"math/big"
	"time"

	"WrapLedger/internal/event"
	"WrapLedger/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
)

// SetTokenExchange installs conversion parameters for a base asset.
// Overwrites any previous record for the asset; other assets are
// untouched.
func (e *Engine) SetTokenExchange(caller common.Address, asset string, rate, rateBase *big.Int, baseDecimals uint8) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "ExchangeConfigured"

	if err := e.roles.RequireRole(ledger.RoleExchangeAdmin, caller); err != nil {
		e.reject(op, "unauthorized")
		return err
	}
	if err := e.exchange.Set(asset, rate, rateBase, baseDecimals); err != nil {
		e.reject(op, "invalid_configuration")
		return err
	}

	return e.commit(event.ExchangeConfigured{
		Caller:       caller,
		Asset:        asset,
		Rate:         rate.String(),
		RateBase:     rateBase.String(),
		BaseDecimals: baseDecimals,
	}, StateDelta{
		ExchangeConfigs: []ExchangeConfigRow{{
			Asset:        asset,
			Rate:         rate.String(),
			RateBase:     rateBase.String(),
			BaseDecimals: baseDecimals,
		}},
	}, start)
}

// GrantRole adds an account to a role. Only DEFAULT_ADMIN holders may
// grant.
func (e *Engine) GrantRole(caller common.Address, role string, account common.Address) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.roles.Grant(caller, role, account); err != nil {
		e.reject("RoleGranted", "unauthorized")
		return err
	}

	return e.commit(event.RoleGranted{
		Caller:  caller,
		Role:    role,
		Grantee: account,
	}, StateDelta{
		Roles: []RoleRow{{Role: role, Account: account, Granted: true}},
	}, start)
}

// RevokeRole removes an account from a role.
func (e *Engine) RevokeRole(caller common.Address, role string, account common.Address) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.roles.Revoke(caller, role, account); err != nil {
		e.reject("RoleRevoked", "unauthorized")
		return err
	}

	return e.commit(event.RoleRevoked{
		Caller:  caller,
		Role:    role,
		Revokee: account,
	}, StateDelta{
		Roles: []RoleRow{{Role: role, Account: account, Granted: false}},
	}, start)
}
