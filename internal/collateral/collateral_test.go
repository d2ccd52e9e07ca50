package collateral

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	custody = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	spender = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func TestLedger_TransferFromConsumesAllowance(t *testing.T) {
	l := NewLedger("USDC", 6)
	l.Mint(owner, big.NewInt(1000))
	l.Approve(owner, spender, big.NewInt(600))

	if err := l.TransferFrom(spender, owner, custody, big.NewInt(400)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if got := l.BalanceOf(custody); got.Int64() != 400 {
		t.Errorf("custody balance: got %s, want 400", got)
	}
	if got := l.Allowance(owner, spender); got.Int64() != 200 {
		t.Errorf("remaining allowance: got %s, want 200", got)
	}

	err := l.TransferFrom(spender, owner, custody, big.NewInt(201))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("got %v, want ErrInsufficientAllowance", err)
	}
}

func TestLedger_TransferFromInsufficientBalance(t *testing.T) {
	l := NewLedger("USDC", 6)
	l.Mint(owner, big.NewInt(100))
	l.Approve(owner, spender, big.NewInt(1000))

	err := l.TransferFrom(spender, owner, custody, big.NewInt(101))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
	// The allowance must survive the failed pull.
	if got := l.Allowance(owner, spender); got.Int64() != 1000 {
		t.Errorf("allowance after failure: got %s, want 1000", got)
	}
}

func TestLedger_Transfer(t *testing.T) {
	l := NewLedger("DAI", 18)
	l.Mint(owner, big.NewInt(50))

	if err := l.Transfer(owner, custody, big.NewInt(20)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := l.BalanceOf(owner); got.Int64() != 30 {
		t.Errorf("owner balance: got %s, want 30", got)
	}

	err := l.Transfer(owner, custody, big.NewInt(31))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
}
