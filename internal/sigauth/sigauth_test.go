package sigauth

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func signedTransfer(t *testing.T) (TransferAuthorization, []byte) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	auth := TransferAuthorization{
		ChainID:   1,
		LedgerID:  "wrapledger-test",
		Sender:    ethcrypto.PubkeyToAddress(key.PublicKey),
		Recipient: common.HexToAddress("0x00000000000000000000000000000000000000b2"),
		Amount:    big.NewInt(1000),
		Fee:       big.NewInt(10),
		Nonce:     42,
	}
	sig, err := ethcrypto.Sign(auth.Hash(), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return auth, sig
}

func TestTransferAuthorization_VerifyRoundTrip(t *testing.T) {
	auth, sig := signedTransfer(t)
	if err := auth.Verify(sig); err != nil {
		t.Errorf("verify: %v", err)
	}
}

func TestTransferAuthorization_TamperedFieldFails(t *testing.T) {
	auth, sig := signedTransfer(t)
	auth.Amount = big.NewInt(1001)
	if err := auth.Verify(sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("got %v, want ErrInvalidSignature", err)
	}
}

func TestTransferAuthorization_WrongSignerFails(t *testing.T) {
	auth, _ := signedTransfer(t)
	other, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sig, err := ethcrypto.Sign(auth.Hash(), other)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := auth.Verify(sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("got %v, want ErrInvalidSignature", err)
	}
}

func TestTransferAuthorization_TruncatedSignature(t *testing.T) {
	auth, sig := signedTransfer(t)
	if err := auth.Verify(sig[:64]); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("got %v, want ErrInvalidSignature", err)
	}
}

func TestReserveAuthorization_VerifyRoundTrip(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	auth := ReserveAuthorization{
		ChainID:     1,
		LedgerID:    "wrapledger-test",
		Sender:      ethcrypto.PubkeyToAddress(key.PublicKey),
		Recipient:   common.HexToAddress("0x00000000000000000000000000000000000000b2"),
		Executor:    common.HexToAddress("0x00000000000000000000000000000000000000c3"),
		Amount:      big.NewInt(500),
		Fee:         big.NewInt(5),
		Nonce:       7,
		ExpiryBlock: 9000,
	}
	sig, err := ethcrypto.Sign(auth.Hash(), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := auth.Verify(sig); err != nil {
		t.Errorf("verify: %v", err)
	}

	auth.Executor = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	if err := auth.Verify(sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("tampered executor: got %v, want ErrInvalidSignature", err)
	}
}

func TestDomainsAreDisjoint(t *testing.T) {
	// A transfer signature must not validate as a reserve even when all
	// shared fields coincide.
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sender := ethcrypto.PubkeyToAddress(key.PublicKey)
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	transfer := TransferAuthorization{
		ChainID: 1, LedgerID: "l", Sender: sender, Recipient: recipient,
		Amount: big.NewInt(9), Fee: big.NewInt(1), Nonce: 3,
	}
	reserve := ReserveAuthorization{
		ChainID: 1, LedgerID: "l", Sender: sender, Recipient: recipient,
		Amount: big.NewInt(9), Fee: big.NewInt(1), Nonce: 3,
	}
	sig, err := ethcrypto.Sign(transfer.Hash(), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := reserve.Verify(sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("cross-domain signature accepted: %v", err)
	}
}
