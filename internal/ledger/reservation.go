package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus uint8

const (
	StatusActive    ReservationStatus = 1
	StatusReclaimed ReservationStatus = 2
	StatusExecuted  ReservationStatus = 3
)

func (s ReservationStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusReclaimed:
		return "reclaimed"
	case StatusExecuted:
		return "executed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Reservation is a signed hold on a sender's native balance that an
// executor may settle or, after expiry, anyone involved may reclaim.
type Reservation struct {
	Sender      common.Address
	Recipient   common.Address
	Executor    common.Address
	Amount      *big.Int
	Fee         *big.Int
	Nonce       uint64
	ExpiryBlock uint64
	Status      ReservationStatus
}

// Total returns amount + fee, the full hold placed on the sender.
func (r *Reservation) Total() *big.Int {
	return new(big.Int).Add(r.Amount, r.Fee)
}

type reservationKey struct {
	Sender common.Address
	Nonce  uint64
}

// ReservationBook stores reservations keyed by (sender, nonce) and
// tracks the aggregate reserved amount per sender. A nonce is consumed
// permanently: reclaimed and executed reservations still block reuse.
type ReservationBook struct {
	reservations map[reservationKey]*Reservation
	reserved     map[common.Address]*big.Int
}

func NewReservationBook() *ReservationBook {
	return &ReservationBook{
		reservations: make(map[reservationKey]*Reservation),
		reserved:     make(map[common.Address]*big.Int),
	}
}

// ReservedBalance returns the sum held by active reservations for a sender.
func (rb *ReservationBook) ReservedBalance(sender common.Address) *big.Int {
	if v, ok := rb.reserved[sender]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Get returns a copy of the reservation for (sender, nonce).
func (rb *ReservationBook) Get(sender common.Address, nonce uint64) (Reservation, error) {
	r, ok := rb.reservations[reservationKey{sender, nonce}]
	if !ok {
		return Reservation{}, fmt.Errorf("reservation %s/%d: %w", sender.Hex(), nonce, ErrReservationNotFound)
	}
	cp := *r
	cp.Amount = new(big.Int).Set(r.Amount)
	cp.Fee = new(big.Int).Set(r.Fee)
	return cp, nil
}

// Create records an active reservation and grows the sender's reserved sum.
func (rb *ReservationBook) Create(r Reservation) error {
	key := reservationKey{r.Sender, r.Nonce}
	if _, ok := rb.reservations[key]; ok {
		return fmt.Errorf("reservation %s/%d: %w", r.Sender.Hex(), r.Nonce, ErrNonceReused)
	}
	stored := r
	stored.Amount = new(big.Int).Set(r.Amount)
	stored.Fee = new(big.Int).Set(r.Fee)
	stored.Status = StatusActive
	rb.reservations[key] = &stored
	rb.addReserved(r.Sender, stored.Total())
	return nil
}

// Execute settles an active reservation and releases its hold.
func (rb *ReservationBook) Execute(sender common.Address, nonce uint64) (Reservation, error) {
	return rb.finalize(sender, nonce, StatusExecuted)
}

// Reclaim cancels an active reservation and releases its hold.
func (rb *ReservationBook) Reclaim(sender common.Address, nonce uint64) (Reservation, error) {
	return rb.finalize(sender, nonce, StatusReclaimed)
}

func (rb *ReservationBook) finalize(sender common.Address, nonce uint64, target ReservationStatus) (Reservation, error) {
	r, ok := rb.reservations[reservationKey{sender, nonce}]
	if !ok {
		return Reservation{}, fmt.Errorf("reservation %s/%d: %w", sender.Hex(), nonce, ErrReservationNotFound)
	}
	if r.Status != StatusActive {
		return Reservation{}, fmt.Errorf("reservation %s/%d is %s: %w", sender.Hex(), nonce, r.Status, ErrInvalidState)
	}
	r.Status = target
	rb.subReserved(sender, r.Total())
	cp := *r
	cp.Amount = new(big.Int).Set(r.Amount)
	cp.Fee = new(big.Int).Set(r.Fee)
	return cp, nil
}

// Restore installs a reservation directly for state reload. Holds are
// re-derived from status so reloaded books match the live ones.
func (rb *ReservationBook) Restore(r Reservation) {
	stored := r
	stored.Amount = new(big.Int).Set(r.Amount)
	stored.Fee = new(big.Int).Set(r.Fee)
	rb.reservations[reservationKey{r.Sender, r.Nonce}] = &stored
	if stored.Status == StatusActive {
		rb.addReserved(r.Sender, stored.Total())
	}
}

func (rb *ReservationBook) addReserved(sender common.Address, amount *big.Int) {
	if v, ok := rb.reserved[sender]; ok {
		v.Add(v, amount)
		return
	}
	rb.reserved[sender] = new(big.Int).Set(amount)
}

func (rb *ReservationBook) subReserved(sender common.Address, amount *big.Int) {
	if v, ok := rb.reserved[sender]; ok {
		v.Sub(v, amount)
	}
}
