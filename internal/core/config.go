package core

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	widemath "TradeArena/internal/math"
)

const (
	// Denominator for payout shares and the admin fee fraction.
	Denominator int64 = 10_000

	// MinimumDuration is the shortest allowed competition window.
	MinimumDuration = 24 * time.Hour

	// JudgeDeadlineStep extends a judge's deadline on assignment and on
	// every accepted challenge.
	JudgeDeadlineStep = 24 * time.Hour

	// RescueGracePeriod is how long after the competition end leftover
	// balances stay untouched before the admin may rescue them.
	RescueGracePeriod = 30 * 24 * time.Hour

	// ValuationRewardNumerator is the fraction of a participant's
	// processing fee paid to whoever performs that participant's
	// valuation; the remainder pays the judge at placement.
	ValuationRewardNumerator int64 = 5_000
)

// AssetConfig binds a tradable asset to its oracle price symbol.
type AssetConfig struct {
	Asset       string `json:"asset"`
	PriceSymbol string `json:"price_symbol"`
}

// Config is the construction-time surface. It is validated once and never
// mutated afterwards.
type Config struct {
	Admin string `json:"admin"`

	// FeeAsset is the asset processing fees are paid in.
	FeeAsset string `json:"fee_asset"`

	Assets       []AssetConfig `json:"assets"`
	AllowedPairs [][2]string   `json:"allowed_pairs"`

	DefaultAdminFeeNumerator int64  `json:"default_admin_fee_numerator"`
	DefaultProcessingFee     string `json:"default_processing_fee"`
}

// ParseConfig decodes and validates a JSON config document, failing fast
// on any inconsistency so a misconfigured service never starts.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks internal consistency of the configuration.
func (c *Config) Validate() error {
	if c.Admin == "" {
		return fmt.Errorf("config: admin address is required")
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("config: at least one asset is required")
	}

	symbols := make(map[string]string, len(c.Assets))
	for _, a := range c.Assets {
		if a.Asset == "" {
			return fmt.Errorf("config: asset with empty name")
		}
		if a.PriceSymbol == "" {
			return fmt.Errorf("config: asset %s has no price symbol", a.Asset)
		}
		if _, dup := symbols[a.Asset]; dup {
			return fmt.Errorf("config: duplicate asset %s", a.Asset)
		}
		symbols[a.Asset] = a.PriceSymbol
	}

	if c.FeeAsset == "" {
		return fmt.Errorf("config: fee asset is required")
	}
	if _, ok := symbols[c.FeeAsset]; !ok {
		return fmt.Errorf("config: fee asset %s is not a configured asset", c.FeeAsset)
	}

	for _, pair := range c.AllowedPairs {
		if pair[0] == pair[1] {
			return fmt.Errorf("config: self-pair %s", pair[0])
		}
		for _, asset := range []string{pair[0], pair[1]} {
			if _, ok := symbols[asset]; !ok {
				return fmt.Errorf("config: allowed pair references unconfigured asset %s", asset)
			}
		}
	}

	if c.DefaultAdminFeeNumerator < 0 || c.DefaultAdminFeeNumerator > Denominator {
		return fmt.Errorf("config: admin fee numerator %d out of range [0, %d]", c.DefaultAdminFeeNumerator, Denominator)
	}

	if _, err := widemath.ParseValue(c.DefaultProcessingFee); err != nil {
		return fmt.Errorf("config: default processing fee: %w", err)
	}

	return nil
}

// PriceSymbol returns the oracle symbol for an asset.
func (c *Config) PriceSymbol(asset string) (string, bool) {
	for _, a := range c.Assets {
		if a.Asset == asset {
			return a.PriceSymbol, true
		}
	}
	return "", false
}

// HasAsset reports whether asset is configured.
func (c *Config) HasAsset(asset string) bool {
	_, ok := c.PriceSymbol(asset)
	return ok
}

// DefaultProcessingFeeAmount returns the parsed default processing fee.
// Validate has already guaranteed the string parses.
func (c *Config) DefaultProcessingFeeAmount() *big.Int {
	fee, err := widemath.ParseValue(c.DefaultProcessingFee)
	if err != nil {
		panic(fmt.Sprintf("FATAL: config processing fee no longer parses: %v", err))
	}
	return fee
}
