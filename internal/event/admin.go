package event

import "github.com/ethereum/go-ethereum/common"

// ExchangeConfigured records new conversion parameters for a base asset.
type ExchangeConfigured struct {
	Caller       common.Address `json:"caller"`
	Asset        string         `json:"asset"`
	Rate         string         `json:"rate"`
	RateBase     string         `json:"rateBase"`
	BaseDecimals uint8          `json:"baseDecimals"`
}

func (e ExchangeConfigured) EventType() EventType    { return EventTypeExchangeConfigured }
func (e ExchangeConfigured) Account() common.Address { return e.Caller }

// RoleGranted records an account gaining a role.
type RoleGranted struct {
	Caller  common.Address `json:"caller"`
	Role    string         `json:"role"`
	Grantee common.Address `json:"grantee"`
}

func (e RoleGranted) EventType() EventType    { return EventTypeRoleGranted }
func (e RoleGranted) Account() common.Address { return e.Grantee }

// RoleRevoked records an account losing a role.
type RoleRevoked struct {
	Caller  common.Address `json:"caller"`
	Role    string         `json:"role"`
	Revokee common.Address `json:"revokee"`
}

func (e RoleRevoked) EventType() EventType    { return EventTypeRoleRevoked }
func (e RoleRevoked) Account() common.Address { return e.Revokee }
