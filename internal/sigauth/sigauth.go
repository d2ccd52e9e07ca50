// Package sigauth defines the signed payloads that authorize relayed
// ledger operations and verifies their secp256k1 signatures.
package sigauth

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Domain strings bound into every digest. A signature made for one
// operation type can never authorize the other.
const (
	TransferDomainV1 = "WRAPLEDGER_TRANSFER_V1"
	ReserveDomainV1  = "WRAPLEDGER_RESERVE_V1"
)

var ErrInvalidSignature = errors.New("sigauth: signature does not recover to signer")

// TransferAuthorization is the payload a sender signs to let a relayer
// submit a transfer on their behalf. The fee compensates the relayer.
type TransferAuthorization struct {
	ChainID   uint64
	LedgerID  string
	Sender    common.Address
	Recipient common.Address
	Amount    *big.Int
	Fee       *big.Int
	Nonce     uint64
}

// Hash computes the canonical keccak256 digest the sender signs.
func (a TransferAuthorization) Hash() []byte {
	payload := fmt.Sprintf("%s|chain=%d|ledger=%s|from=%s|to=%s|amount=%s|fee=%s|nonce=%d",
		TransferDomainV1,
		a.ChainID,
		strings.TrimSpace(a.LedgerID),
		strings.ToLower(a.Sender.Hex()),
		strings.ToLower(a.Recipient.Hex()),
		bigString(a.Amount),
		bigString(a.Fee),
		a.Nonce,
	)
	return ethcrypto.Keccak256([]byte(payload))
}

// Verify checks that sig was produced over the authorization digest by
// the sender's key.
func (a TransferAuthorization) Verify(sig []byte) error {
	return verify(a.Hash(), sig, a.Sender)
}

// ReserveAuthorization is the payload a sender signs to place a hold on
// their balance that the named executor may later settle.
type ReserveAuthorization struct {
	ChainID     uint64
	LedgerID    string
	Sender      common.Address
	Recipient   common.Address
	Executor    common.Address
	Amount      *big.Int
	Fee         *big.Int
	Nonce       uint64
	ExpiryBlock uint64
}

// Hash computes the canonical keccak256 digest the sender signs.
func (a ReserveAuthorization) Hash() []byte {
	payload := fmt.Sprintf("%s|chain=%d|ledger=%s|from=%s|to=%s|executor=%s|amount=%s|fee=%s|nonce=%d|expiry=%d",
		ReserveDomainV1,
		a.ChainID,
		strings.TrimSpace(a.LedgerID),
		strings.ToLower(a.Sender.Hex()),
		strings.ToLower(a.Recipient.Hex()),
		strings.ToLower(a.Executor.Hex()),
		bigString(a.Amount),
		bigString(a.Fee),
		a.Nonce,
		a.ExpiryBlock,
	)
	return ethcrypto.Keccak256([]byte(payload))
}

// Verify checks that sig was produced over the authorization digest by
// the sender's key.
func (a ReserveAuthorization) Verify(sig []byte) error {
	return verify(a.Hash(), sig, a.Sender)
}

func verify(digest, sig []byte, signer common.Address) error {
	if len(sig) != 65 {
		return fmt.Errorf("signature length %d, want 65: %w", len(sig), ErrInvalidSignature)
	}
	pubKey, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return fmt.Errorf("recover public key: %w", ErrInvalidSignature)
	}
	if ethcrypto.PubkeyToAddress(*pubKey) != signer {
		return ErrInvalidSignature
	}
	return nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
