package core

import (
	"fmt"
	"math/big"
	"time"

	"WrapLedger/internal/event"
	"WrapLedger/internal/fpmath"
	"WrapLedger/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
)

// Lock pulls the owner's base-asset funds into custody and records them
// as escrowed collateral. The pull goes through the base-asset ledger's
// allowance, so the owner must have approved custody beforehand.
func (e *Engine) Lock(owner common.Address, asset string, amount *big.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lockLocked(owner, asset, amount, start)
}

// LockFrom is Lock invoked by a controller on the owner's behalf.
func (e *Engine) LockFrom(caller, owner common.Address, asset string, amount *big.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.roles.RequireRole(ledger.RoleController, caller); err != nil {
		e.reject("LockCreated", "unauthorized")
		return err
	}
	return e.lockLocked(owner, asset, amount, start)
}

func (e *Engine) lockLocked(owner common.Address, asset string, amount *big.Int, start time.Time) error {
	const op = "LockCreated"

	if err := e.checkAmount(amount); err != nil {
		e.reject(op, "invalid_amount")
		return err
	}
	base, _, err := e.baseAsset(asset)
	if err != nil {
		e.reject(op, "unsupported_asset")
		return err
	}
	// The pull fails atomically inside the base-asset ledger, so a
	// rejected transfer leaves no partial lock.
	if err := base.TransferFrom(e.cfg.Custody, owner, e.cfg.Custody, amount); err != nil {
		e.reject(op, "pull_failed")
		return fmt.Errorf("lock %s for %s: %w", asset, owner.Hex(), err)
	}
	if err := e.locks.Lock(owner, asset, amount); err != nil {
		return err
	}

	return e.commit(event.LockCreated{
		Owner:  owner,
		Asset:  asset,
		Amount: amount.String(),
	}, StateDelta{
		Locks: e.lockRows(owner, asset),
	}, start)
}

// Withdraw releases escrowed collateral back to its owner.
func (e *Engine) Withdraw(owner common.Address, asset string, amount *big.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "LockWithdrawn"

	if err := e.checkAmount(amount); err != nil {
		e.reject(op, "invalid_amount")
		return err
	}
	base, _, err := e.baseAsset(asset)
	if err != nil {
		e.reject(op, "unsupported_asset")
		return err
	}
	if e.locks.LockedAmount(owner, asset).Cmp(amount) < 0 {
		e.reject(op, "insufficient_locked")
		return fmt.Errorf("withdraw %s for %s: %w", asset, owner.Hex(), ledger.ErrInsufficientLocked)
	}
	if err := base.Transfer(e.cfg.Custody, owner, amount); err != nil {
		e.reject(op, "custody_transfer_failed")
		return fmt.Errorf("withdraw %s for %s: %w", asset, owner.Hex(), err)
	}
	if err := e.locks.Release(owner, asset, amount); err != nil {
		return err
	}

	return e.commit(event.LockWithdrawn{
		Owner:  owner,
		Asset:  asset,
		Amount: amount.String(),
	}, StateDelta{
		Locks: e.lockRows(owner, asset),
	}, start)
}

// Convert consumes escrowed collateral and mints the corresponding
// native amount for the owner. The base asset stays in custody; only a
// burn releases it.
func (e *Engine) Convert(owner common.Address, asset string, amount *big.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.convertLocked(owner, asset, amount, start)
}

// ConvertFrom is Convert invoked by a controller on the owner's behalf.
func (e *Engine) ConvertFrom(caller, owner common.Address, asset string, amount *big.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.roles.RequireRole(ledger.RoleController, caller); err != nil {
		e.reject("Converted", "unauthorized")
		return err
	}
	return e.convertLocked(owner, asset, amount, start)
}

// ConvertAllFrom converts the owner's entire remaining lock.
func (e *Engine) ConvertAllFrom(caller, owner common.Address, asset string) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.roles.RequireRole(ledger.RoleController, caller); err != nil {
		e.reject("Converted", "unauthorized")
		return err
	}
	return e.convertLocked(owner, asset, e.locks.LockedAmount(owner, asset), start)
}

func (e *Engine) convertLocked(owner common.Address, asset string, amount *big.Int, start time.Time) error {
	const op = "Converted"

	if err := e.checkAmount(amount); err != nil {
		e.reject(op, "invalid_amount")
		return err
	}
	_, cfg, err := e.baseAsset(asset)
	if err != nil {
		e.reject(op, "unsupported_asset")
		return err
	}
	if e.locks.LockedAmount(owner, asset).Cmp(amount) < 0 {
		e.reject(op, "insufficient_locked")
		return fmt.Errorf("convert %s for %s: %w", asset, owner.Hex(), ledger.ErrInsufficientLocked)
	}
	native, err := fpmath.ConvertToNative(amount, cfg.BaseDecimals, e.cfg.TokenDecimals, cfg.Rate, cfg.RateBase)
	if err != nil {
		e.reject(op, "overflow")
		return fmt.Errorf("convert %s for %s: %w", asset, owner.Hex(), err)
	}

	if err := e.locks.Release(owner, asset, amount); err != nil {
		return err
	}
	if err := e.balances.Mint(owner, native); err != nil {
		return err
	}

	return e.commit(event.Converted{
		Owner:        owner,
		Asset:        asset,
		BaseAmount:   amount.String(),
		NativeAmount: native.String(),
	}, StateDelta{
		Balances:    e.balanceRows(owner),
		TotalSupply: e.balances.TotalSupply().String(),
		Locks:       e.lockRows(owner, asset),
	}, start)
}

// Mint is the composite on-ramp: pull amount of base asset from the
// owner, route fee to the fee collector, keep amount-fee escrowed as
// collateral, and mint the native equivalent of amount-fee.
func (e *Engine) Mint(caller, owner common.Address, asset string, amount, fee *big.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "Minted"

	if err := e.roles.RequireRole(ledger.RoleMinter, caller); err != nil {
		e.reject(op, "unauthorized")
		return err
	}
	if err := e.checkAmount(amount); err != nil {
		e.reject(op, "invalid_amount")
		return err
	}
	if err := e.checkAmount(fee); err != nil {
		e.reject(op, "invalid_amount")
		return err
	}
	if fee.Cmp(amount) > 0 {
		e.reject(op, "invalid_fee")
		return fmt.Errorf("mint for %s: fee %s > amount %s: %w", owner.Hex(), fee, amount, ledger.ErrInvalidFee)
	}
	base, cfg, err := e.baseAsset(asset)
	if err != nil {
		e.reject(op, "unsupported_asset")
		return err
	}

	collateralAmt := new(big.Int).Sub(amount, fee)
	native, err := fpmath.ConvertToNative(collateralAmt, cfg.BaseDecimals, e.cfg.TokenDecimals, cfg.Rate, cfg.RateBase)
	if err != nil {
		e.reject(op, "overflow")
		return fmt.Errorf("mint for %s: %w", owner.Hex(), err)
	}

	if err := base.TransferFrom(e.cfg.Custody, owner, e.cfg.Custody, amount); err != nil {
		e.reject(op, "pull_failed")
		return fmt.Errorf("mint for %s: %w", owner.Hex(), err)
	}
	if fee.Sign() > 0 {
		if err := base.Transfer(e.cfg.Custody, e.cfg.FeeCollector, fee); err != nil {
			// The fee was part of the pull that just landed in custody.
			return fmt.Errorf("mint fee routing for %s: %w", owner.Hex(), err)
		}
	}
	if err := e.locks.Lock(owner, asset, collateralAmt); err != nil {
		return err
	}
	if err := e.balances.Mint(owner, native); err != nil {
		return err
	}

	return e.commit(event.Minted{
		Owner:        owner,
		Asset:        asset,
		BaseAmount:   amount.String(),
		Fee:          fee.String(),
		NativeAmount: native.String(),
	}, StateDelta{
		Balances:    e.balanceRows(owner),
		TotalSupply: e.balances.TotalSupply().String(),
		Locks:       e.lockRows(owner, asset),
	}, start)
}

// Burn is the off-ramp: retire nativeAmount from the owner, consume the
// corresponding escrowed collateral, and release it as base asset. The
// inverse conversion floors in both steps, so released collateral never
// exceeds what the forward path locked; rounding dust stays in custody.
func (e *Engine) Burn(caller, owner common.Address, asset string, nativeAmount, fee *big.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "Burned"

	if err := e.roles.RequireRole(ledger.RoleMinter, caller); err != nil {
		e.reject(op, "unauthorized")
		return err
	}
	if err := e.checkAmount(nativeAmount); err != nil {
		e.reject(op, "invalid_amount")
		return err
	}
	if err := e.checkAmount(fee); err != nil {
		e.reject(op, "invalid_amount")
		return err
	}
	base, cfg, err := e.baseAsset(asset)
	if err != nil {
		e.reject(op, "unsupported_asset")
		return err
	}

	baseGross, err := fpmath.ConvertToBase(nativeAmount, cfg.BaseDecimals, e.cfg.TokenDecimals, cfg.Rate, cfg.RateBase)
	if err != nil {
		e.reject(op, "overflow")
		return fmt.Errorf("burn for %s: %w", owner.Hex(), err)
	}
	if fee.Cmp(baseGross) > 0 {
		e.reject(op, "invalid_fee")
		return fmt.Errorf("burn for %s: fee %s > released %s: %w", owner.Hex(), fee, baseGross, ledger.ErrInvalidFee)
	}
	// Reserved holds must stay fully backed, so burn spends only the
	// unreserved portion.
	if e.unreserved(owner).Cmp(nativeAmount) < 0 {
		e.reject(op, "insufficient_balance")
		return fmt.Errorf("burn for %s: %w", owner.Hex(), ledger.ErrInsufficientBalance)
	}
	if e.locks.LockedAmount(owner, asset).Cmp(baseGross) < 0 {
		e.reject(op, "insufficient_collateral")
		return fmt.Errorf("burn for %s: need %s %s locked: %w",
			owner.Hex(), baseGross, asset, ledger.ErrInsufficientLockedCollateral)
	}
	// Locked amounts never exceed custody holdings, so with the lock
	// check passed the custody transfers below cannot fail and the
	// mutation block stays all-or-nothing.
	if base.BalanceOf(e.cfg.Custody).Cmp(baseGross) < 0 {
		e.reject(op, "insufficient_collateral")
		return fmt.Errorf("burn for %s: custody holds less than %s %s: %w",
			owner.Hex(), baseGross, asset, ledger.ErrInsufficientLockedCollateral)
	}

	if err := e.balances.Burn(owner, nativeAmount); err != nil {
		return err
	}
	if err := e.locks.Release(owner, asset, baseGross); err != nil {
		return err
	}
	released := new(big.Int).Sub(baseGross, fee)
	if released.Sign() > 0 {
		if err := base.Transfer(e.cfg.Custody, owner, released); err != nil {
			return fmt.Errorf("burn release for %s: %w", owner.Hex(), err)
		}
	}
	if fee.Sign() > 0 {
		if err := base.Transfer(e.cfg.Custody, e.cfg.FeeCollector, fee); err != nil {
			return fmt.Errorf("burn fee routing for %s: %w", owner.Hex(), err)
		}
	}

	return e.commit(event.Burned{
		Owner:        owner,
		Asset:        asset,
		NativeAmount: nativeAmount.String(),
		BaseAmount:   baseGross.String(),
	}, StateDelta{
		Balances:    e.balanceRows(owner),
		TotalSupply: e.balances.TotalSupply().String(),
		Locks:       e.lockRows(owner, asset),
	}, start)
}

func (e *Engine) lockRows(owner common.Address, asset string) []LockRow {
	return []LockRow{{
		Account: owner,
		Asset:   asset,
		Amount:  e.locks.LockedAmount(owner, asset).String(),
	}}
}
