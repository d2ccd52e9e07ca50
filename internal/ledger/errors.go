package ledger

import "errors"

// Sentinel errors returned by ledger operations. Callers distinguish
// rejection causes with errors.Is; wrapped messages carry the detail.
var (
	ErrUnauthorized                  = errors.New("ledger: caller lacks required role")
	ErrInvalidSignature              = errors.New("ledger: signature does not recover to signer")
	ErrNonceReused                   = errors.New("ledger: nonce already consumed")
	ErrInsufficientBalance           = errors.New("ledger: insufficient balance")
	ErrInsufficientAllowance         = errors.New("ledger: insufficient allowance")
	ErrInsufficientLocked            = errors.New("ledger: insufficient locked amount")
	ErrInsufficientUnreservedBalance = errors.New("ledger: insufficient unreserved balance")
	ErrInsufficientLockedCollateral  = errors.New("ledger: insufficient locked collateral")
	ErrInvalidConfiguration          = errors.New("ledger: invalid exchange configuration")
	ErrUnsupportedAsset              = errors.New("ledger: asset has no exchange configuration")
	ErrInvalidState                  = errors.New("ledger: reservation is not active")
	ErrNotExpiredOrNotExecutor       = errors.New("ledger: reservation not expired and caller is not executor")
	ErrInvalidFee                    = errors.New("ledger: fee exceeds amount")
	ErrInvalidAmount                 = errors.New("ledger: amount must be a non-negative integer")
	ErrReservationNotFound           = errors.New("ledger: reservation not found")
)
