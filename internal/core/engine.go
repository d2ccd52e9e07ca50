package core

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"WrapLedger/internal/collateral"
	"WrapLedger/internal/event"
	"WrapLedger/internal/ledger"
	"WrapLedger/internal/observability"

	"github.com/ethereum/go-ethereum/common"
)

// Config carries the immutable identity and wiring of a ledger engine.
type Config struct {
	ChainID  uint64
	LedgerID string

	// Token metadata exposed on the query surface
	TokenName     string
	TokenSymbol   string
	TokenDecimals uint8

	// Custody holds pulled base-asset collateral; FeeCollector receives
	// mint and burn fees.
	Custody      common.Address
	FeeCollector common.Address
}

// Engine is the single-writer ledger core. Every mutating operation
// takes the write lock, runs all checks before any mutation, and emits
// exactly one CoreOutput on success. Reads take the read lock and never
// block behind each other.
type Engine struct {
	mu  sync.RWMutex
	cfg Config

	sequence int64
	hasher   *StateHasher

	balances     *ledger.BalanceBook
	locks        *ledger.LockBook
	exchange     *ledger.ExchangeConfigStore
	reservations *ledger.ReservationBook
	roles        *ledger.RoleRegistry

	// Consumed ethless transfer nonces per sender. Disjoint from the
	// reservation nonce space.
	transferNonces map[common.Address]map[uint64]struct{}

	baseAssets map[string]collateral.BaseAssetLedger

	// heightFn supplies the monotonic counter reservation expiry is
	// judged against. Injected so tests can advance it freely.
	heightFn func() uint64
	nowFn    func() time.Time

	metrics *observability.Metrics

	persistChan chan<- CoreOutput
	publishChan chan<- CoreOutput
}

func NewEngine(
	cfg Config,
	startSequence int64,
	heightFn func() uint64,
	persistChan, publishChan chan<- CoreOutput,
	metrics *observability.Metrics,
) *Engine {
	return &Engine{
		cfg:            cfg,
		sequence:       startSequence,
		hasher:         NewStateHasher(),
		balances:       ledger.NewBalanceBook(),
		locks:          ledger.NewLockBook(),
		exchange:       ledger.NewExchangeConfigStore(),
		reservations:   ledger.NewReservationBook(),
		roles:          ledger.NewRoleRegistry(),
		transferNonces: make(map[common.Address]map[uint64]struct{}),
		baseAssets:     make(map[string]collateral.BaseAssetLedger),
		heightFn:       heightFn,
		nowFn:          time.Now,
		metrics:        metrics,
		persistChan:    persistChan,
		publishChan:    publishChan,
	}
}

// SetNowFn overrides the timestamp source. Test hook.
func (e *Engine) SetNowFn(fn func() time.Time) {
	e.nowFn = fn
}

// RegisterBaseAsset attaches the external ledger collateral for an
// asset is pulled from. Must happen before ops referencing the asset.
func (e *Engine) RegisterBaseAsset(asset string, l collateral.BaseAssetLedger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.baseAssets[asset] = l
}

// BootstrapAdmin grants DEFAULT_ADMIN at genesis, before any admin
// exists to authorize grants. Not an operation; emits no event.
func (e *Engine) BootstrapAdmin(account common.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roles.Bootstrap(ledger.RoleDefaultAdmin, account)
}

// Height returns the current expiry counter value.
func (e *Engine) Height() uint64 {
	return e.heightFn()
}

// commit seals the payload into an envelope, extends the hash chain,
// and emits the output. Callers hold the write lock and have already
// applied all state changes; commit must not fail.
func (e *Engine) commit(p event.Payload, delta StateDelta, opStart time.Time) error {
	env, err := event.Seal(e.sequence, e.heightFn(), e.nowFn(), p)
	if err != nil {
		// Payloads are plain structs; encoding cannot fail in practice.
		return fmt.Errorf("seal event: %w", err)
	}
	env.StateHash, env.PrevHash = e.hasher.Advance(e.sequence, env.Payload)
	e.sequence++

	out := CoreOutput{Envelope: env, Delta: delta}

	// Persistence: blocking send. The core stalls until the persistence
	// worker drains, so no applied operation is ever lost.
	if e.persistChan != nil {
		select {
		case e.persistChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.PersistBackpressure.Inc()
			}
			e.persistChan <- out
		}
	}

	// Outbound publish: non-blocking send, drop on full. Subscribers
	// can always catch up from the event log.
	if e.publishChan != nil {
		select {
		case e.publishChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	opName := env.Type.String()
	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(opName).Inc()
		e.metrics.OpDuration.WithLabelValues(opName).Observe(time.Since(opStart).Seconds())
		e.metrics.CoreSequence.Set(float64(e.sequence))
	}
	return nil
}

func (e *Engine) reject(op, reason string) {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, reason).Inc()
	}
}

func (e *Engine) baseAsset(asset string) (collateral.BaseAssetLedger, ledger.ExchangeConfig, error) {
	cfg, err := e.exchange.Get(asset)
	if err != nil {
		return nil, ledger.ExchangeConfig{}, err
	}
	l, ok := e.baseAssets[asset]
	if !ok {
		return nil, ledger.ExchangeConfig{}, fmt.Errorf("no base-asset ledger for %s: %w", asset, ledger.ErrUnsupportedAsset)
	}
	return l, cfg, nil
}

// unreserved returns balance minus active reservation holds.
func (e *Engine) unreserved(account common.Address) *big.Int {
	bal := e.balances.BalanceOf(account)
	return bal.Sub(bal, e.reservations.ReservedBalance(account))
}
