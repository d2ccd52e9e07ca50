package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"WrapLedger/internal/collateral"
	"WrapLedger/internal/core"
	"WrapLedger/internal/ledger"
	"WrapLedger/internal/observability"
	"WrapLedger/internal/query"
	"WrapLedger/internal/sigauth"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Server is the synchronous HTTP/JSON API over the engine and the
// query service. Mutations apply through the engine directly; reads of
// live state come from the engine, history from Postgres.
type Server struct {
	engine  *core.Engine
	queries *query.QueryService
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger

	httpServer *http.Server
}

func New(addr string, engine *core.Engine, queries *query.QueryService, health *observability.HealthChecker, metrics *observability.Metrics) *Server {
	s := &Server{
		engine:  engine,
		queries: queries,
		health:  health,
		metrics: metrics,
		log:     observability.NewLogger("server"),
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	if s.health != nil {
		r.Get("/healthz", s.health.LivenessHandler)
		r.Get("/readyz", s.health.ReadinessHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/token", s.handleToken)
		r.Get("/state", s.handleState)
		r.Get("/balances/{account}", s.handleBalance)
		r.Get("/allowances/{owner}/{spender}", s.handleAllowance)
		r.Get("/locks/{account}/{asset}", s.handleLock)
		r.Get("/reservations/{sender}/{nonce}", s.handleGetReservation)
		r.Get("/exchange/{asset}", s.handleGetExchange)
		r.Get("/roles/{role}", s.handleRoleMembers)
		r.Get("/events", s.handleEvents)
		r.Get("/events/{sequence}", s.handleEvent)
		r.Get("/integrity", s.handleIntegrity)

		r.Post("/transfer", s.handleTransfer)
		r.Post("/approve", s.handleApprove)
		r.Post("/transfer-from", s.handleTransferFrom)
		r.Post("/ethless/transfer", s.handleEthlessTransfer)

		r.Post("/lock", s.handleLockCollateral)
		r.Post("/withdraw", s.handleWithdraw)
		r.Post("/convert", s.handleConvert)
		r.Post("/mint", s.handleMint)
		r.Post("/burn", s.handleBurn)

		r.Post("/reserve", s.handleReserve)
		r.Post("/reserve/execute", s.handleExecuteReservation)
		r.Post("/reserve/reclaim", s.handleReclaimReservation)

		r.Post("/admin/exchange", s.handleSetExchange)
		r.Post("/admin/roles/grant", s.handleGrantRole)
		r.Post("/admin/roles/revoke", s.handleRevokeRole)
	})

	return r
}

// instrument records per-endpoint request counts and latency using the
// chi route pattern, so path parameters do not explode the label space.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.Method + " " + chi.RouteContext(r.Context()).RoutePattern()
		s.metrics.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(ww.Status())).Inc()
		s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if ww.Status() >= 500 {
			s.metrics.QueryErrors.WithLabelValues(endpoint, strconv.Itoa(ww.Status())).Inc()
		}
	})
}

// --- read handlers ---

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	info := s.engine.TokenInfo()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":         info.Name,
		"symbol":       info.Symbol,
		"decimals":     info.Decimals,
		"total_supply": s.engine.TotalSupply().String(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	hash := s.engine.StateHash()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sequence":   s.engine.Sequence(),
		"state_hash": hex.EncodeToString(hash[:]),
		"height":     s.engine.Height(),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := pathAddress(r, "account")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account":    account.Hex(),
		"balance":    s.engine.BalanceOf(account).String(),
		"reserved":   s.engine.ReservedBalanceOf(account).String(),
		"unreserved": s.engine.UnreservedBalanceOf(account).String(),
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := pathAddress(r, "owner")
	if err != nil {
		writeError(w, err)
		return
	}
	spender, err := pathAddress(r, "spender")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"owner":     owner.Hex(),
		"spender":   spender.Hex(),
		"allowance": s.engine.Allowance(owner, spender).String(),
	})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	account, err := pathAddress(r, "account")
	if err != nil {
		writeError(w, err)
		return
	}
	asset := chi.URLParam(r, "asset")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": account.Hex(),
		"asset":   asset,
		"locked":  s.engine.LockedAmount(account, asset).String(),
	})
}

func (s *Server) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	sender, err := pathAddress(r, "sender")
	if err != nil {
		writeError(w, err)
		return
	}
	nonce, err := strconv.ParseUint(chi.URLParam(r, "nonce"), 10, 64)
	if err != nil {
		writeError(w, badRequestf("nonce must be an unsigned integer"))
		return
	}

	res, err := s.engine.GetReservation(sender, nonce)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sender":       res.Sender.Hex(),
		"recipient":    res.Recipient.Hex(),
		"executor":     res.Executor.Hex(),
		"amount":       res.Amount.String(),
		"fee":          res.Fee.String(),
		"nonce":        res.Nonce,
		"expiry_block": res.ExpiryBlock,
		"status":       res.Status.String(),
	})
}

func (s *Server) handleGetExchange(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	cfg, err := s.engine.GetTokenExchange(asset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset":         cfg.Asset,
		"rate":          cfg.Rate.String(),
		"rate_base":     cfg.RateBase.String(),
		"base_decimals": cfg.BaseDecimals,
	})
}

func (s *Server) handleRoleMembers(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	members := s.engine.RoleMembers(role)
	hexMembers := make([]string, len(members))
	for i, m := range members {
		hexMembers[i] = m.Hex()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"role":    role,
		"members": hexMembers,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var cursor int64
	if c := q.Get("cursor"); c != "" {
		v, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			writeError(w, badRequestf("cursor must be an integer"))
			return
		}
		cursor = v
	}
	limit := 0
	if l := q.Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil {
			writeError(w, badRequestf("limit must be an integer"))
			return
		}
		limit = v
	}

	page, err := s.queries.GetEvents(r.Context(), q.Get("account"), q.Get("type"), cursor, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	sequence, err := strconv.ParseInt(chi.URLParam(r, "sequence"), 10, 64)
	if err != nil {
		writeError(w, badRequestf("sequence must be an integer"))
		return
	}
	e, err := s.queries.GetEvent(r.Context(), sequence)
	if err != nil {
		writeError(w, err)
		return
	}
	if e == nil {
		writeJSON(w, http.StatusNotFound, errorBody("event not found"))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.queries.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// --- mutation handlers ---

type transferRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sender, err := parseAddress("sender", req.Sender)
	if err != nil {
		writeError(w, err)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.engine.Transfer(sender, recipient, amount); err != nil {
		writeError(w, err)
		return
	}
	s.writeApplied(w)
}

type approveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}
	spender, err := parseAddress("spender", req.Spender)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.engine.Approve(owner, spender, amount); err != nil {
		writeError(w, err)
		return
	}
	s.writeApplied(w)
}

type transferFromRequest struct {
	Spender   string `json:"spender"`
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

func (s *Server) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	var req transferFromRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	spender, err := parseAddress("spender", req.Spender)
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.engine.TransferFrom(spender, owner, recipient, amount); err != nil {
		writeError(w, err)
		return
	}
	s.writeApplied(w)
}

type ethlessTransferRequest struct {
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

func (s *Server) handleEthlessTransfer(w http.ResponseWriter, r *http.Request) {
	var req ethlessTransferRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	relayer, err := parseAddress("relayer", req.Relayer)
	if err != nil {
		writeError(w, err)
		return
	}
	sender, err := parseAddress("sender", req.Sender)
	if err != nil {
		writeError(w, err)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	fee, err := parseAmount("fee", req.Fee)
	if err != nil {
		writeError(w, err)
		return
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}

	auth := sigauth.TransferAuthorization{
		ChainID:   req.ChainID,
		LedgerID:  req.LedgerID,
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Fee:       fee,
		Nonce:     req.Nonce,
	}
	if err := s.engine.EthlessTransfer(relayer, auth, sig); err != nil {
		writeError(w, err)
		return
	}
	s.writeApplied(w)
}

type collateralRequest struct {
	Caller string `json:"caller,omitempty"`
	Owner  string `json:"owner"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) handleLockCollateral(w http.ResponseWriter, r *http.Request) {
	var req collateralRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Caller != "" && !strings.EqualFold(req.Caller, req.Owner) {
		caller, err := parseAddress("caller", req.Caller)
		if err != nil {
			writeError(w, err)
			return
		}
		err = s.engine.LockFrom(caller, owner, req.Asset, amount)
		if err != nil {
			writeError(w, err)
			return
		}
	} else if err := s.engine.Lock(owner, req.Asset, amount); err != nil {
		writeError(w, err)
		return
	}
	s.writeApplied(w)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req collateralRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.engine.Withdraw(owner, req.Asset, amount); err != nil {
		writeError(w, err)
		return
	}
	s.writeApplied(w)
}

type convertRequest struct {
	Caller string `json:"caller,omitempty"`
	Owner  string `json:"owner"`
	Asset  string `json:"asset"`
	Amount string `json:"amount,omitempty"`
	All    bool   `json:"all,omitempty"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.All {
		caller, err := parseAddress("caller", req.Caller)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := s.engine.ConvertAllFrom(caller, owner, req.Asset); err != nil {
			writeError(w, err)
			return
		}
		s.writeApplied(w)
		return
	}

	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Caller != "" && !strings.EqualFold(req.Caller, req.Owner) {
		caller, err := parseAddress("caller", req.Caller)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := s.engine.ConvertFrom(caller, owner, req.Asset, amount); err != nil {
			writeError(w, err)
			return
		}
	} else if err := s.engine.Convert(owner, req.Asset, amount); err != nil {
		writeError(w, err)
		return
	}
	s.writeApplied(w)
}

type mintBurnRequest struct {
	Caller string `json:"caller"`
	Owner  string `json:"owner"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
	Fee    string `json:"fee"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	s.handleMintBurn(w, r, s.engine.Mint)
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	s.handleMintBurn(w, r, s.engine.Burn)
}

func (s *Server) handleMintBurn(w http.ResponseWriter, r *http.Request, apply func(caller, owner common.Address, asset string, amount, fee *big.Int) error) {
	var req mintBurnRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	fee, err := parseAmount("fee", req.Fee)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := apply(caller, owner, req.Asset, amount, fee); err != nil {
		writeError(w, err)
		return
	}
	s.writeApplied(w)
}

type reserveRequest struct {
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

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sender, err := parseAddress("sender", req.Sender)
	if err != nil {
		writeError(w, err)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		writeError(w, err)
		return
	}
	executor, err := parseAddress("executor", req.Executor)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	fee, err := parseAmount("fee", req.Fee)
	if err != nil {
		writeError(w, err)
		return
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}

	auth := sigauth.ReserveAuthorization{
		ChainID:     req.ChainID,
		LedgerID:    req.LedgerID,
		Sender:      sender,
		Recipient:   recipient,
		Executor:    executor,
		Amount:      amount,
		Fee:         fee,
		Nonce:       req.Nonce,
		ExpiryBlock: req.ExpiryBlock,
	}
	if err := s.engine.Reserve(auth, sig); err != nil {
		writeError(w, err)
		return
	}
	s.writeApplied(w)
}

type settleRequest struct {
	Caller string `json:"caller"`
	Sender string `json:"sender"`
	Nonce  uint64 `json:"nonce"`
}

func (s *Server) handleExecuteReservation(w http.ResponseWriter, r *http.Request) {
	s.handleSettle(w, r, s.engine.ExecuteReservation)
}

func (s *Server) handleReclaimReservation(w http.ResponseWriter, r *http.Request) {
	s.handleSettle(w, r, s.engine.ReclaimReservation)
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request, apply func(caller, sender common.Address, nonce uint64) error) {
	var req settleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	sender, err := parseAddress("sender", req.Sender)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := apply(caller, sender, req.Nonce); err != nil {
		writeError(w, err)
		return
	}
	s.writeApplied(w)
}

type exchangeRequest struct {
	Caller       string `json:"caller"`
	Asset        string `json:"asset"`
	Rate         string `json:"rate"`
	RateBase     string `json:"rate_base"`
	BaseDecimals uint8  `json:"base_decimals"`
}

func (s *Server) handleSetExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	rate, err := parseAmount("rate", req.Rate)
	if err != nil {
		writeError(w, err)
		return
	}
	rateBase, err := parseAmount("rate_base", req.RateBase)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.engine.SetTokenExchange(caller, req.Asset, rate, rateBase, req.BaseDecimals); err != nil {
		writeError(w, err)
		return
	}
	s.writeApplied(w)
}

type roleRequest struct {
	Caller  string `json:"caller"`
	Role    string `json:"role"`
	Account string `json:"account"`
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	s.handleRoleChange(w, r, s.engine.GrantRole)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	s.handleRoleChange(w, r, s.engine.RevokeRole)
}

func (s *Server) handleRoleChange(w http.ResponseWriter, r *http.Request, apply func(caller common.Address, role string, account common.Address) error) {
	var req roleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := apply(caller, req.Role, account); err != nil {
		writeError(w, err)
		return
	}
	s.writeApplied(w)
}

// --- helpers ---

func (s *Server) writeApplied(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"applied":  true,
		"sequence": s.engine.Sequence(),
	})
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequestf("invalid request body: %v", err)
	}
	return nil
}

func pathAddress(r *http.Request, name string) (common.Address, error) {
	return parseAddress(name, chi.URLParam(r, name))
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, badRequestf("%s: %q is not a hex address", field, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(field, s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, badRequestf("%s: %q is not a non-negative decimal", field, s)
	}
	return v, nil
}

func parseSignature(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	sig, err := hex.DecodeString(s)
	if err != nil {
		return nil, badRequestf("signature is not hex: %v", err)
	}
	return sig, nil
}

// apiError carries an HTTP status alongside the message.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func badRequestf(format string, args ...interface{}) error {
	return &apiError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func writeError(w http.ResponseWriter, err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		writeJSON(w, ae.status, errorBody(ae.msg))
		return
	}
	writeJSON(w, statusFor(err), errorBody(err.Error()))
}

// statusFor maps engine sentinels onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInvalidSignature), errors.Is(err, sigauth.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrNonceReused),
		errors.Is(err, ledger.ErrInvalidState),
		errors.Is(err, ledger.ErrNotExpiredOrNotExecutor):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrReservationNotFound),
		errors.Is(err, ledger.ErrUnsupportedAsset):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientAllowance),
		errors.Is(err, collateral.ErrInsufficientBalance),
		errors.Is(err, collateral.ErrInsufficientAllowance),
		errors.Is(err, ledger.ErrInsufficientLocked),
		errors.Is(err, ledger.ErrInsufficientUnreservedBalance),
		errors.Is(err, ledger.ErrInsufficientLockedCollateral):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInvalidConfiguration),
		errors.Is(err, ledger.ErrInvalidFee),
		errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
