package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/strum-coach/internal/logging"
	"github.com/danielpatrickdp/strum-coach/internal/orchestrator"
)

// ErrInvalidConfig is returned (wrapped) by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// #region config
// Config is everything the coach tool needs for one session.
type Config struct {
	Session    orchestrator.Config `json:"session" yaml:"session" toml:"session"`
	Log        logging.Config      `json:"log" yaml:"log" toml:"log"`
	PolicyPath string              `json:"policy_path" yaml:"policy_path" toml:"policy_path"` // YAML policy matrix; empty = built-in
	PackPath   string              `json:"pack_path" yaml:"pack_path" toml:"pack_path"`       // groove pack for cue accents
	DBPath     string              `json:"db_path" yaml:"db_path" toml:"db_path"`             // provenance database; empty = none
	Enhance    EnhanceConfig       `json:"enhance" yaml:"enhance" toml:"enhance"`
}

// EnhanceConfig points at the optional enhancement service.
type EnhanceConfig struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"` // empty disables enhancement
	TimeoutMs int    `json:"timeout_ms" yaml:"timeout_ms" toml:"timeout_ms"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Session: orchestrator.DefaultConfig(),
		Log:     logging.DefaultConfig(),
		Enhance: EnhanceConfig{TimeoutMs: 750},
	}
}

// #endregion config

// #region load
// Load reads configuration from path, picking the format from the extension. A missing file
// yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, err
			}
		}
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	}
	return nil
}

// #endregion load

// #region env
// ApplyEnvOverrides layers COACH_* environment variables over the loaded values.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("COACH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("COACH_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("COACH_POLICY"); v != "" {
		c.PolicyPath = v
	}
	if v := os.Getenv("COACH_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("COACH_ENHANCE_ADDR"); v != "" {
		c.Enhance.Addr = v
	}
	if v := os.Getenv("COACH_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: COACH_SEED: %v", ErrInvalidConfig, err)
		}
		c.Session.Seed = seed
	}
	if v := os.Getenv("COACH_AUTO_REPEAT"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: COACH_AUTO_REPEAT: %v", ErrInvalidConfig, err)
		}
		c.Session.Segmenter.AutoRepeat = on
	}
	return nil
}

// #endregion env

// #region validate
// Validate checks the values no component can run with.
func (c *Config) Validate() error {
	seg := c.Session.Segmenter
	switch {
	case seg.LowConfidenceThreshold < 0 || seg.LowConfidenceThreshold > 1:
		return fmt.Errorf("%w: low_confidence_threshold %.2f outside [0, 1]", ErrInvalidConfig, seg.LowConfidenceThreshold)
	case seg.PostRollMs < 0 || seg.TrailingWindowMs < 0 || seg.ArmLeadMs < 0:
		return fmt.Errorf("%w: negative segmenter window", ErrInvalidConfig)
	case seg.AbortPauseMs <= 0 || seg.RestartPauseMs <= 0:
		return fmt.Errorf("%w: pause thresholds must be positive", ErrInvalidConfig)
	case seg.HistoryCapacity <= 0 || seg.HistoryWindowMs <= 0:
		return fmt.Errorf("%w: history capacity and window must be positive", ErrInvalidConfig)
	case seg.TempoMinSamples < 2:
		return fmt.Errorf("%w: tempo_min_samples %d below 2", ErrInvalidConfig, seg.TempoMinSamples)
	case c.Session.MaxSnapMs < 0:
		return fmt.Errorf("%w: max_snap_ms %.1f", ErrInvalidConfig, c.Session.MaxSnapMs)
	case c.Session.BaseGain < 0 || c.Session.BaseGain > 1:
		return fmt.Errorf("%w: base_gain %.2f outside [0, 1]", ErrInvalidConfig, c.Session.BaseGain)
	case c.Enhance.Addr != "" && c.Enhance.TimeoutMs <= 0:
		return fmt.Errorf("%w: enhance timeout_ms must be positive", ErrInvalidConfig)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// #endregion validate
