package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"

	"WrapLedger/internal/core"
	"WrapLedger/internal/ledger"
	"WrapLedger/internal/observability"
	"WrapLedger/internal/sigauth"
)

// DurableRecorder persists applied op ids for the slow dedup tier.
type DurableRecorder interface {
	Record(opKind, opID string) error
}

// Dispatcher drains the op channel: dedup, parse, apply. Each op ends
// in exactly one of three outcomes: applied (ACK), rejected by the
// engine (ACK with a warning, the submitter resubmits a corrected op),
// or failed for an unknown reason (NAK for redelivery).
type Dispatcher struct {
	engine   *core.Engine
	deduper  *core.OpDeduper
	recorder DurableRecorder
	opChan   <-chan RawOp
	metrics  *observability.Metrics
}

func NewDispatcher(
	engine *core.Engine,
	deduper *core.OpDeduper,
	recorder DurableRecorder,
	opChan <-chan RawOp,
	metrics *observability.Metrics,
) *Dispatcher {
	return &Dispatcher{
		engine:   engine,
		deduper:  deduper,
		recorder: recorder,
		opChan:   opChan,
		metrics:  metrics,
	}
}

// Run processes ops until ctx is cancelled or the channel closes.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-d.opChan:
			if !ok {
				return nil
			}
			d.handle(raw)
		}
	}
}

func (d *Dispatcher) handle(raw RawOp) {
	if d.metrics != nil {
		d.metrics.NATSOpsReceived.WithLabelValues(raw.Kind).Inc()
	}

	op, err := ParseOp(raw.Kind, raw.Data)
	if err != nil {
		// Malformed ops never become valid on redelivery.
		log.Printf("WARN: dropping malformed %s op: %v", raw.Kind, err)
		if d.metrics != nil {
			d.metrics.NATSOpsFailed.WithLabelValues(raw.Kind, "malformed").Inc()
		}
		raw.AckFunc()
		return
	}

	opID := op.ID.String()
	if d.deduper.IsDuplicate(op.Kind, opID) {
		if d.metrics != nil {
			d.metrics.DedupDuplicates.WithLabelValues(op.Kind).Inc()
		}
		raw.AckFunc()
		return
	}

	err = d.apply(op)
	switch {
	case err == nil:
		d.deduper.MarkApplied(op.Kind, opID)
		if d.recorder != nil {
			if recErr := d.recorder.Record(op.Kind, opID); recErr != nil {
				log.Printf("WARN: record applied op %s: %v", opID, recErr)
			}
		}
		raw.AckFunc()

	case isRejection(err):
		// The engine's answer is deterministic against current state.
		// ACK rather than loop through max_deliver; the submitter sees
		// the rejection in the logs and resubmits a corrected op.
		log.Printf("WARN: %s op %s rejected: %v", op.Kind, opID, err)
		if d.metrics != nil {
			d.metrics.NATSOpsFailed.WithLabelValues(op.Kind, "rejected").Inc()
		}
		raw.AckFunc()

	default:
		log.Printf("ERROR: %s op %s failed: %v", op.Kind, opID, err)
		if d.metrics != nil {
			d.metrics.NATSOpsFailed.WithLabelValues(op.Kind, "error").Inc()
		}
		raw.NakFunc()
	}
}

func (d *Dispatcher) apply(op Op) error {
	switch op.Kind {
	case OpKindTransfer:
		return d.engine.EthlessTransfer(op.Transfer.Relayer, op.Transfer.Auth, op.Transfer.Signature)
	case OpKindReserve:
		return d.engine.Reserve(op.Reserve.Auth, op.Reserve.Signature)
	case OpKindExecute:
		return d.engine.ExecuteReservation(op.Settle.Caller, op.Settle.Sender, op.Settle.Nonce)
	case OpKindReclaim:
		return d.engine.ReclaimReservation(op.Settle.Caller, op.Settle.Sender, op.Settle.Nonce)
	default:
		return fmt.Errorf("unknown op kind: %s", op.Kind)
	}
}

// rejections are the engine's business-rule refusals. Everything else
// is treated as unknown and NAKed. Not-yet-expired reclaims are kept
// out of the list on purpose: the height moves, so redelivery within
// the ack window can legitimately succeed.
var rejections = []error{
	ledger.ErrUnauthorized,
	ledger.ErrInvalidSignature,
	sigauth.ErrInvalidSignature,
	ledger.ErrNonceReused,
	ledger.ErrInsufficientBalance,
	ledger.ErrInsufficientAllowance,
	ledger.ErrInsufficientLocked,
	ledger.ErrInsufficientUnreservedBalance,
	ledger.ErrInsufficientLockedCollateral,
	ledger.ErrInvalidConfiguration,
	ledger.ErrUnsupportedAsset,
	ledger.ErrInvalidState,
	ledger.ErrInvalidFee,
	ledger.ErrInvalidAmount,
	ledger.ErrReservationNotFound,
}

func isRejection(err error) bool {
	for _, sentinel := range rejections {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
