package ingestion

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"WrapLedger/internal/sigauth"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Op kinds carried on the ops subjects. The kind doubles as the dedup
// namespace, so renaming one invalidates persisted dedup rows.
const (
	OpKindTransfer = "EthlessTransfer"
	OpKindReserve  = "Reserve"
	OpKindExecute  = "ReserveExecute"
	OpKindReclaim  = "ReserveReclaim"
)

// Op is a parsed operation ready for the dispatch loop.
type Op struct {
	Kind string
	ID   uuid.UUID

	Transfer *TransferOp
	Reserve  *ReserveOp
	Settle   *SettleOp
}

// TransferOp is a relayed signed transfer.
type TransferOp struct {
	Relayer   common.Address
	Auth      sigauth.TransferAuthorization
	Signature []byte
}

// ReserveOp is a relayed signed reservation.
type ReserveOp struct {
	Auth      sigauth.ReserveAuthorization
	Signature []byte
}

// SettleOp finalizes an existing reservation, either executing or
// reclaiming it depending on the op kind.
type SettleOp struct {
	Caller common.Address
	Sender common.Address
	Nonce  uint64
}

// ParseOp converts raw op bytes into a typed operation. Validation here
// is structural only; authorization and balance checks belong to the
// engine.
func ParseOp(kind string, data []byte) (Op, error) {
	switch kind {
	case OpKindTransfer:
		return parseTransferOp(data)
	case OpKindReserve:
		return parseReserveOp(data)
	case OpKindExecute, OpKindReclaim:
		return parseSettleOp(kind, data)
	default:
		return Op{}, fmt.Errorf("unknown op kind: %s", kind)
	}
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers. Amounts are
// decimal strings; addresses are 0x-prefixed hex; signatures are hex.

type transferOpJSON struct {
	OpID      string `json:"op_id"`
	ChainID   uint64 `json:"chain_id"`
	LedgerID  string `json:"ledger_id"`
	Relayer   string `json:"relayer"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Fee       string `json:"fee"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

func parseTransferOp(data []byte) (Op, error) {
	var j transferOpJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return Op{}, fmt.Errorf("parse %s: %w", OpKindTransfer, err)
	}

	opID, err := uuid.Parse(j.OpID)
	if err != nil {
		return Op{}, fmt.Errorf("parse op_id: %w", err)
	}
	relayer, err := parseAddress("relayer", j.Relayer)
	if err != nil {
		return Op{}, err
	}
	sender, err := parseAddress("sender", j.Sender)
	if err != nil {
		return Op{}, err
	}
	recipient, err := parseAddress("recipient", j.Recipient)
	if err != nil {
		return Op{}, err
	}
	amount, err := parseAmount("amount", j.Amount)
	if err != nil {
		return Op{}, err
	}
	fee, err := parseAmount("fee", j.Fee)
	if err != nil {
		return Op{}, err
	}
	sig, err := parseSignature(j.Signature)
	if err != nil {
		return Op{}, err
	}

	return Op{
		Kind: OpKindTransfer,
		ID:   opID,
		Transfer: &TransferOp{
			Relayer: relayer,
			Auth: sigauth.TransferAuthorization{
				ChainID:   j.ChainID,
				LedgerID:  j.LedgerID,
				Sender:    sender,
				Recipient: recipient,
				Amount:    amount,
				Fee:       fee,
				Nonce:     j.Nonce,
			},
			Signature: sig,
		},
	}, nil
}

type reserveOpJSON struct {
	OpID        string `json:"op_id"`
	ChainID     uint64 `json:"chain_id"`
	LedgerID    string `json:"ledger_id"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Executor    string `json:"executor"`
	Amount      string `json:"amount"`
	Fee         string `json:"fee"`
	Nonce       uint64 `json:"nonce"`
	ExpiryBlock uint64 `json:"expiry_block"`
	Signature   string `json:"signature"`
}

func parseReserveOp(data []byte) (Op, error) {
	var j reserveOpJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return Op{}, fmt.Errorf("parse %s: %w", OpKindReserve, err)
	}

	opID, err := uuid.Parse(j.OpID)
	if err != nil {
		return Op{}, fmt.Errorf("parse op_id: %w", err)
	}
	sender, err := parseAddress("sender", j.Sender)
	if err != nil {
		return Op{}, err
	}
	recipient, err := parseAddress("recipient", j.Recipient)
	if err != nil {
		return Op{}, err
	}
	executor, err := parseAddress("executor", j.Executor)
	if err != nil {
		return Op{}, err
	}
	amount, err := parseAmount("amount", j.Amount)
	if err != nil {
		return Op{}, err
	}
	fee, err := parseAmount("fee", j.Fee)
	if err != nil {
		return Op{}, err
	}
	sig, err := parseSignature(j.Signature)
	if err != nil {
		return Op{}, err
	}

	return Op{
		Kind: OpKindReserve,
		ID:   opID,
		Reserve: &ReserveOp{
			Auth: sigauth.ReserveAuthorization{
				ChainID:     j.ChainID,
				LedgerID:    j.LedgerID,
				Sender:      sender,
				Recipient:   recipient,
				Executor:    executor,
				Amount:      amount,
				Fee:         fee,
				Nonce:       j.Nonce,
				ExpiryBlock: j.ExpiryBlock,
			},
			Signature: sig,
		},
	}, nil
}

type settleOpJSON struct {
	OpID   string `json:"op_id"`
	Caller string `json:"caller"`
	Sender string `json:"sender"`
	Nonce  uint64 `json:"nonce"`
}

func parseSettleOp(kind string, data []byte) (Op, error) {
	var j settleOpJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return Op{}, fmt.Errorf("parse %s: %w", kind, err)
	}

	opID, err := uuid.Parse(j.OpID)
	if err != nil {
		return Op{}, fmt.Errorf("parse op_id: %w", err)
	}
	caller, err := parseAddress("caller", j.Caller)
	if err != nil {
		return Op{}, err
	}
	sender, err := parseAddress("sender", j.Sender)
	if err != nil {
		return Op{}, err
	}

	return Op{
		Kind: kind,
		ID:   opID,
		Settle: &SettleOp{
			Caller: caller,
			Sender: sender,
			Nonce:  j.Nonce,
		},
	}, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("parse %s: %q is not a hex address", field, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(field, s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("parse %s: %q is not a non-negative decimal", field, s)
	}
	return v, nil
}

func parseSignature(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	sig, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse signature: %w", err)
	}
	return sig, nil
}
