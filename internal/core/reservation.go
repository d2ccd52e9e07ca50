package core

import (
	"fmt"
	"math/big"
	"time"

	"WrapLedger/internal/event"
	"WrapLedger/internal/ledger"
	"WrapLedger/internal/sigauth"

	"github.com/ethereum/go-ethereum/common"
)

// Reserve places a signed hold on the sender's balance. Anyone may
// submit the authorization; the signature is the authority. No balance
// moves until execute.
func (e *Engine) Reserve(auth sigauth.ReserveAuthorization, sig []byte) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "ReservationCreated"

	if auth.ChainID != e.cfg.ChainID || auth.LedgerID != e.cfg.LedgerID {
		e.reject(op, "invalid_signature")
		return fmt.Errorf("authorization bound to chain %d ledger %q: %w",
			auth.ChainID, auth.LedgerID, ledger.ErrInvalidSignature)
	}
	if err := auth.Verify(sig); err != nil {
		e.reject(op, "invalid_signature")
		return fmt.Errorf("reserve from %s: %w", auth.Sender.Hex(), ledger.ErrInvalidSignature)
	}
	if err := e.checkAmount(auth.Amount); err != nil {
		e.reject(op, "invalid_amount")
		return err
	}
	if err := e.checkAmount(auth.Fee); err != nil {
		e.reject(op, "invalid_amount")
		return err
	}
	if _, err := e.reservations.Get(auth.Sender, auth.Nonce); err == nil {
		e.reject(op, "nonce_reused")
		return fmt.Errorf("reserve %s/%d: %w", auth.Sender.Hex(), auth.Nonce, ledger.ErrNonceReused)
	}

	total := new(big.Int).Add(auth.Amount, auth.Fee)
	if e.unreserved(auth.Sender).Cmp(total) < 0 {
		e.reject(op, "insufficient_unreserved")
		return fmt.Errorf("reserve from %s: need %s unreserved: %w",
			auth.Sender.Hex(), total, ledger.ErrInsufficientUnreservedBalance)
	}

	r := ledger.Reservation{
		Sender:      auth.Sender,
		Recipient:   auth.Recipient,
		Executor:    auth.Executor,
		Amount:      auth.Amount,
		Fee:         auth.Fee,
		Nonce:       auth.Nonce,
		ExpiryBlock: auth.ExpiryBlock,
	}
	if err := e.reservations.Create(r); err != nil {
		return err
	}

	return e.commit(event.ReservationCreated{
		Sender:      auth.Sender,
		Recipient:   auth.Recipient,
		Executor:    auth.Executor,
		Amount:      auth.Amount.String(),
		Fee:         auth.Fee.String(),
		Nonce:       auth.Nonce,
		ExpiryBlock: auth.ExpiryBlock,
	}, StateDelta{
		Reservations: e.reservationRows(auth.Sender, auth.Nonce),
	}, start)
}

// ExecuteReservation settles an active reservation: the recipient gets
// the amount, the executor the fee. Only the sender or the designated
// executor may settle; expiry does not block execution.
func (e *Engine) ExecuteReservation(caller, sender common.Address, nonce uint64) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "ReservationExecuted"

	r, err := e.reservations.Get(sender, nonce)
	if err != nil {
		e.reject(op, "not_found")
		return err
	}
	if caller != sender && caller != r.Executor {
		e.reject(op, "unauthorized")
		return fmt.Errorf("execute %s/%d by %s: %w", sender.Hex(), nonce, caller.Hex(), ledger.ErrUnauthorized)
	}
	if r.Status != ledger.StatusActive {
		e.reject(op, "invalid_state")
		return fmt.Errorf("execute %s/%d is %s: %w", sender.Hex(), nonce, r.Status, ledger.ErrInvalidState)
	}

	// The hold kept amount+fee unspendable, so the debits cannot fail.
	// Move balances before finalizing: a failed debit must leave the
	// reservation Active, never half-settled.
	if err := e.balances.Transfer(sender, r.Recipient, r.Amount); err != nil {
		return err
	}
	if err := e.balances.Transfer(sender, r.Executor, r.Fee); err != nil {
		return err
	}
	if _, err := e.reservations.Execute(sender, nonce); err != nil {
		return err
	}

	return e.commit(event.ReservationExecuted{
		Sender:    sender,
		Recipient: r.Recipient,
		Executor:  r.Executor,
		Amount:    r.Amount.String(),
		Fee:       r.Fee.String(),
		Nonce:     nonce,
	}, StateDelta{
		Balances:     e.balanceRows(sender, r.Recipient, r.Executor),
		Reservations: e.reservationRows(sender, nonce),
	}, start)
}

// ReclaimReservation cancels an active reservation. The executor may
// reclaim at any time; anyone else only once the expiry height passed.
// No balance moves since none moved at reserve time.
func (e *Engine) ReclaimReservation(caller, sender common.Address, nonce uint64) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "ReservationReclaimed"

	r, err := e.reservations.Get(sender, nonce)
	if err != nil {
		e.reject(op, "not_found")
		return err
	}
	if r.Status != ledger.StatusActive {
		e.reject(op, "invalid_state")
		return fmt.Errorf("reclaim %s/%d is %s: %w", sender.Hex(), nonce, r.Status, ledger.ErrInvalidState)
	}
	if caller != r.Executor && e.heightFn() < r.ExpiryBlock {
		e.reject(op, "not_expired")
		return fmt.Errorf("reclaim %s/%d by %s before height %d: %w",
			sender.Hex(), nonce, caller.Hex(), r.ExpiryBlock, ledger.ErrNotExpiredOrNotExecutor)
	}

	if _, err := e.reservations.Reclaim(sender, nonce); err != nil {
		return err
	}

	return e.commit(event.ReservationReclaimed{
		Sender: sender,
		Caller: caller,
		Nonce:  nonce,
	}, StateDelta{
		Reservations: e.reservationRows(sender, nonce),
	}, start)
}

func (e *Engine) reservationRows(sender common.Address, nonce uint64) []ReservationRow {
	r, err := e.reservations.Get(sender, nonce)
	if err != nil {
		return nil
	}
	return []ReservationRow{{
		Sender:      r.Sender,
		Nonce:       r.Nonce,
		Recipient:   r.Recipient,
		Executor:    r.Executor,
		Amount:      r.Amount.String(),
		Fee:         r.Fee.String(),
		ExpiryBlock: r.ExpiryBlock,
		Status:      r.Status,
	}}
}
