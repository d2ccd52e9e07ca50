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

// Transfer moves native tokens from the authenticated sender. Only the
// unreserved portion of the balance is spendable.
func (e *Engine) Transfer(sender, recipient common.Address, amount *big.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkAmount(amount); err != nil {
		e.reject("TransferApplied", "invalid_amount")
		return err
	}
	if e.unreserved(sender).Cmp(amount) < 0 {
		e.reject("TransferApplied", "insufficient_balance")
		return fmt.Errorf("transfer from %s: %w", sender.Hex(), ledger.ErrInsufficientBalance)
	}
	if err := e.balances.Transfer(sender, recipient, amount); err != nil {
		e.reject("TransferApplied", "insufficient_balance")
		return err
	}

	return e.commit(event.TransferApplied{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount.String(),
	}, StateDelta{
		Balances: e.balanceRows(sender, recipient),
	}, start)
}

// Approve grants spender a delegated-spend allowance over the owner's
// native balance.
func (e *Engine) Approve(owner, spender common.Address, amount *big.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkAmount(amount); err != nil {
		e.reject("Approved", "invalid_amount")
		return err
	}
	if err := e.balances.Approve(owner, spender, amount); err != nil {
		return err
	}

	return e.commit(event.Approved{
		Owner:   owner,
		Spender: spender,
		Amount:  amount.String(),
	}, StateDelta{
		Allowances: []AllowanceRow{{
			Owner:   owner,
			Spender: spender,
			Amount:  e.balances.Allowance(owner, spender).String(),
		}},
	}, start)
}

// TransferFrom moves the owner's tokens on the spender's authority,
// consuming allowance. The allowance check runs before any mutation so
// a failed spend leaves both books untouched.
func (e *Engine) TransferFrom(spender, owner, recipient common.Address, amount *big.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkAmount(amount); err != nil {
		e.reject("TransferApplied", "invalid_amount")
		return err
	}
	if e.balances.Allowance(owner, spender).Cmp(amount) < 0 {
		e.reject("TransferApplied", "insufficient_allowance")
		return fmt.Errorf("transfer from %s by %s: %w", owner.Hex(), spender.Hex(), ledger.ErrInsufficientAllowance)
	}
	if e.unreserved(owner).Cmp(amount) < 0 {
		e.reject("TransferApplied", "insufficient_balance")
		return fmt.Errorf("transfer from %s: %w", owner.Hex(), ledger.ErrInsufficientBalance)
	}
	if err := e.balances.Transfer(owner, recipient, amount); err != nil {
		e.reject("TransferApplied", "insufficient_balance")
		return err
	}
	if err := e.balances.SpendAllowance(owner, spender, amount); err != nil {
		// Checked above; unreachable once the transfer applied.
		return err
	}

	return e.commit(event.TransferApplied{
		Sender:    owner,
		Recipient: recipient,
		Amount:    amount.String(),
	}, StateDelta{
		Balances: e.balanceRows(owner, recipient),
		Allowances: []AllowanceRow{{
			Owner:   owner,
			Spender: spender,
			Amount:  e.balances.Allowance(owner, spender).String(),
		}},
	}, start)
}

// EthlessTransfer settles a relayed transfer on the sender's signature.
// The relayer submits the signed authorization and collects the fee;
// the sender never appears as the caller.
func (e *Engine) EthlessTransfer(relayer common.Address, auth sigauth.TransferAuthorization, sig []byte) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "EthlessTransferApplied"

	if auth.ChainID != e.cfg.ChainID || auth.LedgerID != e.cfg.LedgerID {
		e.reject(op, "invalid_signature")
		return fmt.Errorf("authorization bound to chain %d ledger %q: %w",
			auth.ChainID, auth.LedgerID, ledger.ErrInvalidSignature)
	}
	if err := auth.Verify(sig); err != nil {
		e.reject(op, "invalid_signature")
		return fmt.Errorf("ethless transfer from %s: %w", auth.Sender.Hex(), ledger.ErrInvalidSignature)
	}
	if err := e.checkAmount(auth.Amount); err != nil {
		e.reject(op, "invalid_amount")
		return err
	}
	if err := e.checkAmount(auth.Fee); err != nil {
		e.reject(op, "invalid_amount")
		return err
	}
	if e.transferNonceUsed(auth.Sender, auth.Nonce) {
		e.reject(op, "nonce_reused")
		return fmt.Errorf("ethless transfer %s/%d: %w", auth.Sender.Hex(), auth.Nonce, ledger.ErrNonceReused)
	}

	total := new(big.Int).Add(auth.Amount, auth.Fee)
	if e.unreserved(auth.Sender).Cmp(total) < 0 {
		e.reject(op, "insufficient_balance")
		return fmt.Errorf("ethless transfer from %s: need %s unreserved: %w",
			auth.Sender.Hex(), total, ledger.ErrInsufficientBalance)
	}

	if err := e.balances.Transfer(auth.Sender, auth.Recipient, auth.Amount); err != nil {
		return err
	}
	if err := e.balances.Transfer(auth.Sender, relayer, auth.Fee); err != nil {
		// Covered by the total check above.
		return err
	}
	e.consumeTransferNonce(auth.Sender, auth.Nonce)

	return e.commit(event.EthlessTransferApplied{
		Sender:    auth.Sender,
		Recipient: auth.Recipient,
		Relayer:   relayer,
		Amount:    auth.Amount.String(),
		Fee:       auth.Fee.String(),
		Nonce:     auth.Nonce,
	}, StateDelta{
		Balances:       e.balanceRows(auth.Sender, auth.Recipient, relayer),
		TransferNonces: []TransferNonceRow{{Account: auth.Sender, Nonce: auth.Nonce}},
	}, start)
}

func (e *Engine) transferNonceUsed(sender common.Address, nonce uint64) bool {
	set, ok := e.transferNonces[sender]
	if !ok {
		return false
	}
	_, used := set[nonce]
	return used
}

func (e *Engine) consumeTransferNonce(sender common.Address, nonce uint64) {
	set, ok := e.transferNonces[sender]
	if !ok {
		set = make(map[uint64]struct{})
		e.transferNonces[sender] = set
	}
	set[nonce] = struct{}{}
}

func (e *Engine) checkAmount(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return ledger.ErrInvalidAmount
	}
	return nil
}

// balanceRows snapshots post-apply balances for the delta.
func (e *Engine) balanceRows(accounts ...common.Address) []BalanceRow {
	rows := make([]BalanceRow, 0, len(accounts))
	seen := make(map[common.Address]struct{}, len(accounts))
	for _, a := range accounts {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		rows = append(rows, BalanceRow{Account: a, Amount: e.balances.BalanceOf(a).String()})
	}
	return rows
}
