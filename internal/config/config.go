// Package config defines all configuration for the exchange simulator.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// overrides via SIM_* environment variables. A missing file is not an
// error: the simulator runs fine on defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"marketsim/internal/sim"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
}

// SimulationConfig holds every tunable of the market-data generator and the
// book it drives.
//
//   - StartPrice/Spread/MinPrice/MeanReversion shape the mid-price process.
//   - OrdersPerTick is the baseline random order count per second, scaled by
//     the intraday activity curve.
//   - MarketRatio and CancelRatio steer the random flow mix.
//   - Seed anchors replay determinism: identical config + seed replays a
//     byte-identical L3 stream.
//   - StalePurge* control the periodic agent-driven purge of far-from-mid
//     resting orders; SeedLevels/SeedOrdersPerLevel the pre-market book.
//   - NumDays = 0 runs an endless session loop.
type SimulationConfig struct {
	TickSize      float64 `mapstructure:"tick_size"`
	StartPrice    float64 `mapstructure:"start_price"`
	Spread        float64 `mapstructure:"spread"`
	MinPrice      float64 `mapstructure:"min_price"`
	MeanReversion float64 `mapstructure:"mean_reversion"`

	OrdersPerTick int     `mapstructure:"orders_per_tick"`
	MarketRatio   float64 `mapstructure:"market_ratio"`
	CancelRatio   float64 `mapstructure:"cancel_ratio"`

	Seed int64 `mapstructure:"seed"`

	Replenish          bool  `mapstructure:"replenish"`
	StalePurgeDistance int64 `mapstructure:"stale_purge_distance"`
	StalePurgeInterval int   `mapstructure:"stale_purge_interval"`
	SeedLevels         int   `mapstructure:"seed_levels"`
	SeedOrdersPerLevel int   `mapstructure:"seed_orders_per_level"`

	NumDays           int     `mapstructure:"num_days"` // 0 = infinite
	SessionSeconds    int     `mapstructure:"session_seconds"`
	OvernightGapSigma float64 `mapstructure:"overnight_gap_sigma"`
	DailyDriftSigma   float64 `mapstructure:"daily_drift_sigma"`

	RegimeSwitchProb float64                     `mapstructure:"regime_switch_prob"`
	Regimes          map[string]sim.RegimeParams `mapstructure:"regimes"`

	SleepSec       float64 `mapstructure:"sleep_sec"`
	ValidateOrders bool    `mapstructure:"validate_orders"`
	DebugChecks    bool    `mapstructure:"debug_checks"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the HTTP/WebSocket broadcast server.
type DashboardConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Port        int  `mapstructure:"port"`
	DepthLevels int  `mapstructure:"depth_levels"` // 0 = full depth
}

// Load reads config from a YAML file with env var overrides (SIM_ prefix).
// A non-existent path yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Regime bundles are structured values; YAML may override them wholesale
	// but an absent block means the built-in calm/normal/stress set.
	if len(cfg.Simulation.Regimes) == 0 {
		cfg.Simulation.Regimes = sim.DefaultRegimes()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("simulation.tick_size", 0.01)
	v.SetDefault("simulation.start_price", 10.0)
	v.SetDefault("simulation.spread", 0.10)
	v.SetDefault("simulation.min_price", 1.0)
	v.SetDefault("simulation.mean_reversion", 0.001)
	v.SetDefault("simulation.orders_per_tick", 12)
	v.SetDefault("simulation.market_ratio", 0.12)
	v.SetDefault("simulation.cancel_ratio", 0.30)
	v.SetDefault("simulation.seed", 42)
	v.SetDefault("simulation.replenish", true)
	v.SetDefault("simulation.stale_purge_distance", 120)
	v.SetDefault("simulation.stale_purge_interval", 20)
	v.SetDefault("simulation.seed_levels", 20)
	v.SetDefault("simulation.seed_orders_per_level", 4)
	v.SetDefault("simulation.num_days", 0)
	v.SetDefault("simulation.session_seconds", 23_400) // 6.5h trading day
	v.SetDefault("simulation.overnight_gap_sigma", 0.010)
	v.SetDefault("simulation.daily_drift_sigma", 0.006)
	v.SetDefault("simulation.regime_switch_prob", 0.008)
	v.SetDefault("simulation.sleep_sec", 0.0)
	v.SetDefault("simulation.validate_orders", false)
	v.SetDefault("simulation.debug_checks", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.port", 8050)
	v.SetDefault("dashboard.depth_levels", 25)
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	s := c.Simulation
	if s.TickSize <= 0 {
		return fmt.Errorf("simulation.tick_size must be > 0")
	}
	if s.StartPrice <= 0 {
		return fmt.Errorf("simulation.start_price must be > 0")
	}
	if s.Spread <= 0 {
		return fmt.Errorf("simulation.spread must be > 0")
	}
	if s.MinPrice <= 0 {
		return fmt.Errorf("simulation.min_price must be > 0")
	}
	if s.OrdersPerTick < 1 {
		return fmt.Errorf("simulation.orders_per_tick must be >= 1")
	}
	if s.MarketRatio < 0 || s.MarketRatio > 1 {
		return fmt.Errorf("simulation.market_ratio must be in [0, 1]")
	}
	if s.CancelRatio < 0 || s.CancelRatio > 1 {
		return fmt.Errorf("simulation.cancel_ratio must be in [0, 1]")
	}
	if s.RegimeSwitchProb < 0 || s.RegimeSwitchProb > 1 {
		return fmt.Errorf("simulation.regime_switch_prob must be in [0, 1]")
	}
	if s.SessionSeconds <= 0 {
		return fmt.Errorf("simulation.session_seconds must be > 0")
	}
	if s.NumDays < 0 {
		return fmt.Errorf("simulation.num_days must be >= 0 (0 = infinite)")
	}
	if s.StalePurgeDistance <= 0 {
		return fmt.Errorf("simulation.stale_purge_distance must be > 0")
	}
	if s.StalePurgeInterval <= 0 {
		return fmt.Errorf("simulation.stale_purge_interval must be > 0")
	}
	if s.SeedLevels < 0 || s.SeedOrdersPerLevel < 0 {
		return fmt.Errorf("simulation.seed_levels and seed_orders_per_level must be >= 0")
	}
	if _, ok := s.Regimes[sim.RegimeNormal]; !ok {
		return fmt.Errorf("simulation.regimes must include %q (the day-start regime)", sim.RegimeNormal)
	}
	for name, r := range s.Regimes {
		if r.Sigma < 0 || r.JumpProb < 0 || r.JumpProb > 1 || r.JumpSigma < 0 {
			return fmt.Errorf("simulation.regimes.%s: negative volatility or bad jump_prob", name)
		}
		if r.SpreadMult <= 0 {
			return fmt.Errorf("simulation.regimes.%s: spread_mult must be > 0", name)
		}
	}
	if c.Dashboard.Enabled && (c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("dashboard.port must be a valid TCP port")
	}
	return nil
}
