package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Params are the tuning knobs loaded from config_params.json. Fields left
// out of the file keep their defaults.
type Params struct {
	PositionSize     float64 `json:"position_size"`
	TakeProfitPct    float64 `json:"take_profit_pct"`
	StopLossPct      float64 `json:"stop_loss_pct"`
	TriggerThreshold float64 `json:"trigger_threshold"`
	SignalCooldownMs int64   `json:"signal_cooldown_ms"`
	VolatilityWinMs  int64   `json:"volatility_window_ms"`
	MaxSpreadCents   float64 `json:"max_spread_cents"`
	StalePositionSec float64 `json:"stale_position_sec"`
	CacheStaleMs     int64   `json:"price_cache_stale_ms"`
	SlippageCents    int     `json:"slippage_cents"`
}

func defaultParams() Params {
	return Params{
		TriggerThreshold: 0.00015,
		SignalCooldownMs: 2000,
		VolatilityWinMs:  500,
		MaxSpreadCents:   1,
		StalePositionSec: 5.0,
		CacheStaleMs:     5000,
		SlippageCents:    2,
	}
}

// LoadParams reads trading parameters from path, applying defaults for
// optional fields. position_size, take_profit_pct and stop_loss_pct are
// required.
func LoadParams(path string) (Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("read trading params: %w", err)
	}

	p := defaultParams()
	if err := json.Unmarshal(b, &p); err != nil {
		return Params{}, fmt.Errorf("decode %s: %w", path, err)
	}

	if p.PositionSize <= 0 {
		return Params{}, fmt.Errorf("%s: position_size must be > 0", path)
	}
	if p.TakeProfitPct <= 0 {
		return Params{}, fmt.Errorf("%s: take_profit_pct must be > 0", path)
	}
	if p.StopLossPct <= 0 {
		return Params{}, fmt.Errorf("%s: stop_loss_pct must be > 0", path)
	}
	return p, nil
}

// MarketMap pins the bot to one hourly market's token pair. Produced by the
// mapper command.
type MarketMap struct {
	EventSlug   string `json:"event_slug"`
	EventTitle  string `json:"event_title"`
	UpTokenID   string `json:"up_token_id"`
	DownTokenID string `json:"down_token_id"`
	MappedAt    string `json:"mapped_at"`
}

// LoadMarketMap reads the token mapping written by the mapper.
func LoadMarketMap(path string) (MarketMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return MarketMap{}, fmt.Errorf("read market map (run the mapper first): %w", err)
	}

	var m MarketMap
	if err := json.Unmarshal(b, &m); err != nil {
		return MarketMap{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if m.UpTokenID == "" || m.DownTokenID == "" {
		return MarketMap{}, fmt.Errorf("%s: up_token_id and down_token_id required", path)
	}
	if m.EventTitle == "" {
		return MarketMap{}, fmt.Errorf("%s: event_title required", path)
	}
	return m, nil
}

// SaveMarketMap writes the mapping for the bot to pick up.
func SaveMarketMap(path string, m MarketMap) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// Env holds wallet material and endpoint overrides from the environment.
type Env struct {
	PrivateKeyHex string
	FunderAddress string
	ClobHost      string
	GammaHost     string
}

// LoadDotEnv reads .env from the working directory into the process
// environment. A missing file is not an error, everything can come from the
// real environment instead.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// LoadEnv loads .env (when present) and validates the required variables.
func LoadEnv() (Env, error) {
	if err := LoadDotEnv(); err != nil {
		return Env{}, err
	}

	e := Env{
		PrivateKeyHex: strings.TrimSpace(os.Getenv("PRIVATE_KEY")),
		FunderAddress: strings.TrimSpace(os.Getenv("FUNDER_ADDRESS")),
		ClobHost:      strings.TrimSpace(os.Getenv("CLOB_HOST")),
		GammaHost:     strings.TrimSpace(os.Getenv("GAMMA_HOST")),
	}

	var missing []string
	if e.PrivateKeyHex == "" {
		missing = append(missing, "PRIVATE_KEY")
	}
	if e.FunderAddress == "" {
		missing = append(missing, "FUNDER_ADDRESS")
	}
	if len(missing) > 0 {
		return Env{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return e, nil
}
