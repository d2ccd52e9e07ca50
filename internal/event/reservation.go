package event

import "github.com/ethereum/go-ethereum/common"

// ReservationCreated records a signed hold placed on a sender's balance.
type ReservationCreated struct {
	Sender      common.Address `json:"sender"`
	Recipient   common.Address `json:"recipient"`
	Executor    common.Address `json:"executor"`
	Amount      string         `json:"amount"`
	Fee         string         `json:"fee"`
	Nonce       uint64         `json:"nonce"`
	ExpiryBlock uint64         `json:"expiryBlock"`
}

func (e ReservationCreated) EventType() EventType    { return EventTypeReservationCreated }
func (e ReservationCreated) Account() common.Address { return e.Sender }

// ReservationExecuted records a reservation settled by its executor.
type ReservationExecuted struct {
	Sender    common.Address `json:"sender"`
	Recipient common.Address `json:"recipient"`
	Executor  common.Address `json:"executor"`
	Amount    string         `json:"amount"`
	Fee       string         `json:"fee"`
	Nonce     uint64         `json:"nonce"`
}

func (e ReservationExecuted) EventType() EventType    { return EventTypeReservationExecuted }
func (e ReservationExecuted) Account() common.Address { return e.Sender }

// ReservationReclaimed records a reservation cancelled back to its sender.
type ReservationReclaimed struct {
	Sender common.Address `json:"sender"`
	Caller common.Address `json:"caller"`
	Nonce  uint64         `json:"nonce"`
}

func (e ReservationReclaimed) EventType() EventType    { return EventTypeReservationReclaimed }
func (e ReservationReclaimed) Account() common.Address { return e.Sender }
