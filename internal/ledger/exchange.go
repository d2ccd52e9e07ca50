package ledger

import (
	"fmt"
	"math/big"
)

// ExchangeConfig describes how one base asset converts into the native
// token: amount * rate / rateBase after rescaling decimals.
type ExchangeConfig struct {
	Asset        string
	Rate         *big.Int
	RateBase     *big.Int
	BaseDecimals uint8
}

// ExchangeConfigStore holds the per-asset conversion parameters.
type ExchangeConfigStore struct {
	configs map[string]ExchangeConfig
}

func NewExchangeConfigStore() *ExchangeConfigStore {
	return &ExchangeConfigStore{configs: make(map[string]ExchangeConfig)}
}

// Set installs or replaces the conversion parameters for an asset.
// A zero rateBase would make every conversion divide by zero, so it is
// rejected here rather than at conversion time.
func (s *ExchangeConfigStore) Set(asset string, rate, rateBase *big.Int, baseDecimals uint8) error {
	if rate == nil || rateBase == nil {
		return fmt.Errorf("exchange config for %s: nil rate: %w", asset, ErrInvalidConfiguration)
	}
	if rate.Sign() <= 0 || rateBase.Sign() <= 0 {
		return fmt.Errorf("exchange config for %s: rate %s/%s must be positive: %w",
			asset, rate, rateBase, ErrInvalidConfiguration)
	}
	s.configs[asset] = ExchangeConfig{
		Asset:        asset,
		Rate:         new(big.Int).Set(rate),
		RateBase:     new(big.Int).Set(rateBase),
		BaseDecimals: baseDecimals,
	}
	return nil
}

// Get returns the conversion parameters for an asset.
func (s *ExchangeConfigStore) Get(asset string) (ExchangeConfig, error) {
	cfg, ok := s.configs[asset]
	if !ok {
		return ExchangeConfig{}, fmt.Errorf("exchange config for %s: %w", asset, ErrUnsupportedAsset)
	}
	return ExchangeConfig{
		Asset:        cfg.Asset,
		Rate:         new(big.Int).Set(cfg.Rate),
		RateBase:     new(big.Int).Set(cfg.RateBase),
		BaseDecimals: cfg.BaseDecimals,
	}, nil
}

// Assets returns the configured asset symbols in map order.
func (s *ExchangeConfigStore) Assets() []string {
	out := make([]string, 0, len(s.configs))
	for asset := range s.configs {
		out = append(out, asset)
	}
	return out
}
