package server

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"WrapLedger/internal/collateral"
	"WrapLedger/internal/core"
	"WrapLedger/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testAdmin   = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	testOwner   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testOther   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	testCustody = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	testFeeSink = common.HexToAddress("0x00000000000000000000000000000000000000ff")
)

func newTestServer(t *testing.T) (*Server, *core.Engine) {
	t.Helper()

	outputs := make(chan core.CoreOutput, 256)
	engine := core.NewEngine(core.Config{
		ChainID:       1,
		LedgerID:      "wrapledger-test",
		TokenName:     "Wrapped Dollar",
		TokenSymbol:   "WUSD",
		TokenDecimals: 18,
		Custody:       testCustody,
		FeeCollector:  testFeeSink,
	}, 0, func() uint64 { return 100 }, outputs, nil, nil)

	engine.BootstrapAdmin(testAdmin)
	if err := engine.GrantRole(testAdmin, ledger.RoleMinter, testAdmin); err != nil {
		t.Fatalf("grant minter: %v", err)
	}
	if err := engine.GrantRole(testAdmin, ledger.RoleExchangeAdmin, testAdmin); err != nil {
		t.Fatalf("grant exchange admin: %v", err)
	}

	usdc := collateral.NewLedger("USDC", 6)
	engine.RegisterBaseAsset("USDC", usdc)
	if err := engine.SetTokenExchange(testAdmin, "USDC", big.NewInt(25), big.NewInt(10000), 6); err != nil {
		t.Fatalf("set exchange: %v", err)
	}

	// Fund the owner with native tokens through a mint
	usdc.Mint(testOwner, big.NewInt(4_000_000))
	usdc.Approve(testOwner, testCustody, big.NewInt(4_000_000))
	if err := engine.Mint(testAdmin, testOwner, "USDC", big.NewInt(4_000_000), big.NewInt(0)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	return New("127.0.0.1:0", engine, nil, nil, nil), engine
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGetBalance(t *testing.T) {
	s, engine := newTestServer(t)
	h := s.routes()

	rec := doJSON(t, h, http.MethodGet, "/v1/balances/"+testOwner.Hex(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body %s)", rec.Code, rec.Body)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, want := resp["balance"], engine.BalanceOf(testOwner).String(); got != want {
		t.Errorf("balance: got %s, want %s", got, want)
	}
	if resp["reserved"] != "0" {
		t.Errorf("reserved: got %s, want 0", resp["reserved"])
	}
}

func TestGetBalanceBadAddress(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s.routes(), http.MethodGet, "/v1/balances/not-an-address", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}

func TestPostTransfer(t *testing.T) {
	s, engine := newTestServer(t)
	h := s.routes()

	rec := doJSON(t, h, http.MethodPost, "/v1/transfer", map[string]interface{}{
		"sender":    testOwner.Hex(),
		"recipient": testOther.Hex(),
		"amount":    "1000000000000000",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body %s)", rec.Code, rec.Body)
	}

	if got := engine.BalanceOf(testOther).String(); got != "1000000000000000" {
		t.Errorf("recipient balance: got %s, want 1000000000000000", got)
	}
}

func TestPostTransferInsufficientBalance(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s.routes(), http.MethodPost, "/v1/transfer", map[string]interface{}{
		"sender":    testOther.Hex(),
		"recipient": testOwner.Hex(),
		"amount":    "1",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want 422 (body %s)", rec.Code, rec.Body)
	}
}

func TestPostMintUnauthorized(t *testing.T) {
	s, engine := newTestServer(t)

	rec := doJSON(t, s.routes(), http.MethodPost, "/v1/mint", map[string]interface{}{
		"caller": testOther.Hex(),
		"owner":  testOther.Hex(),
		"asset":  "USDC",
		"amount": "1000000",
		"fee":    "0",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403 (body %s)", rec.Code, rec.Body)
	}
	if got := engine.BalanceOf(testOther).Sign(); got != 0 {
		t.Errorf("balance changed on rejected mint")
	}
}

func TestGetReservationNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s.routes(), http.MethodGet, "/v1/reservations/"+testOwner.Hex()+"/42", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404 (body %s)", rec.Code, rec.Body)
	}
}

func TestGetExchangeConfig(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s.routes(), http.MethodGet, "/v1/exchange/USDC", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["rate"] != "25" || resp["rate_base"] != "10000" {
		t.Errorf("rate: got %v/%v, want 25/10000", resp["rate"], resp["rate_base"])
	}

	rec = doJSON(t, s.routes(), http.MethodGet, "/v1/exchange/DOGE", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unsupported asset status: got %d, want 404", rec.Code)
	}
}

func TestPostRejectsUnknownFields(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s.routes(), http.MethodPost, "/v1/transfer", map[string]interface{}{
		"sender":    testOwner.Hex(),
		"recipient": testOther.Hex(),
		"amount":    "1",
		"amuont":    "2",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}
