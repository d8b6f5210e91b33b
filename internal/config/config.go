package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"skoll/internal/market"
)

// Config is the venue configuration: where to listen, which instruments to
// open books for, where the submission journal lives.
type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
		Workers int    `yaml:"workers"`
	} `yaml:"server"`

	Journal struct {
		Dir string `yaml:"dir"`
	} `yaml:"journal"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Instruments []InstrumentConfig `yaml:"instruments"`
}

type InstrumentConfig struct {
	Symbol         string `yaml:"symbol"`
	Name           string `yaml:"name"`
	Class          string `yaml:"class"`
	Currency       string `yaml:"currency"`
	TradeUnit      string `yaml:"trade_unit"`
	ReferencePrice string `yaml:"reference_price"`
}

// Load reads and validates the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Server.Workers < 0 {
		return fmt.Errorf("server workers must not be negative")
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}
	seen := make(map[string]bool)
	for _, inst := range c.Instruments {
		if inst.Symbol == "" {
			return fmt.Errorf("instrument with empty symbol")
		}
		if seen[inst.Symbol] {
			return fmt.Errorf("duplicate instrument %s", inst.Symbol)
		}
		seen[inst.Symbol] = true
		if inst.Currency == "" {
			return fmt.Errorf("instrument %s: currency is required", inst.Symbol)
		}
		if _, err := market.AssetClassFromName(inst.Class); err != nil {
			return fmt.Errorf("instrument %s: %w", inst.Symbol, err)
		}
	}
	return nil
}

// Instrument converts one entry to its reference-data value.
func (ic InstrumentConfig) Instrument() (market.Instrument, error) {
	class, err := market.AssetClassFromName(ic.Class)
	if err != nil {
		return market.Instrument{}, err
	}

	unit := decimal.NewFromInt(1)
	if ic.TradeUnit != "" {
		unit, err = decimal.NewFromString(ic.TradeUnit)
		if err != nil {
			return market.Instrument{}, fmt.Errorf("instrument %s: trade unit: %w", ic.Symbol, err)
		}
	}

	return market.Instrument{
		Symbol:    market.Symbol(ic.Symbol),
		Name:      ic.Name,
		Class:     class,
		TradeUnit: unit,
		Currency:  market.CurrencyFromCode(ic.Currency),
	}, nil
}
