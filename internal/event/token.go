package event

import "github.com/ethereum/go-ethereum/common"

// Amounts are decimal strings so 256-bit values survive JSON transport.

// TransferApplied records a direct native token transfer.
type TransferApplied struct {
	Sender    common.Address `json:"sender"`
	Recipient common.Address `json:"recipient"`
	Amount    string         `json:"amount"`
}

func (e TransferApplied) EventType() EventType    { return EventTypeTransferApplied }
func (e TransferApplied) Account() common.Address { return e.Sender }

// EthlessTransferApplied records a relayed transfer settled on a
// sender signature, with the fee paid to the relayer.
type EthlessTransferApplied struct {
	Sender    common.Address `json:"sender"`
	Recipient common.Address `json:"recipient"`
	Relayer   common.Address `json:"relayer"`
	Amount    string         `json:"amount"`
	Fee       string         `json:"fee"`
	Nonce     uint64         `json:"nonce"`
}

func (e EthlessTransferApplied) EventType() EventType    { return EventTypeEthlessTransferApplied }
func (e EthlessTransferApplied) Account() common.Address { return e.Sender }

// Approved records an allowance grant.
type Approved struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  string         `json:"amount"`
}

func (e Approved) EventType() EventType    { return EventTypeApproved }
func (e Approved) Account() common.Address { return e.Owner }

// Minted records native tokens entering circulation against locked
// base-asset collateral.
type Minted struct {
	Owner        common.Address `json:"owner"`
	Asset        string         `json:"asset"`
	BaseAmount   string         `json:"baseAmount"`
	Fee          string         `json:"fee"`
	NativeAmount string         `json:"nativeAmount"`
}

func (e Minted) EventType() EventType    { return EventTypeMinted }
func (e Minted) Account() common.Address { return e.Owner }

// Burned records native tokens leaving circulation, releasing locked
// collateral back to the owner.
type Burned struct {
	Owner        common.Address `json:"owner"`
	Asset        string         `json:"asset"`
	NativeAmount string         `json:"nativeAmount"`
	BaseAmount   string         `json:"baseAmount"`
}

func (e Burned) EventType() EventType    { return EventTypeBurned }
func (e Burned) Account() common.Address { return e.Owner }
