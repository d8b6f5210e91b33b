package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/config"
	"skoll/internal/market"
)

const sampleConfig = `
server:
  address: 0.0.0.0
  port: 9001
  workers: 4
journal:
  dir: /var/lib/skoll/journal
logging:
  level: debug
instruments:
  - symbol: AAPL
    name: Apple Inc.
    class: equity
    currency: USD
    trade_unit: "1"
    reference_price: "187.33"
  - symbol: VOD
    name: Vodafone Group
    class: equity
    currency: GBP
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Address)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Server.Workers)
	assert.Equal(t, "/var/lib/skoll/journal", cfg.Journal.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Instruments, 2)

	inst, err := cfg.Instruments[0].Instrument()
	require.NoError(t, err)
	assert.Equal(t, market.Symbol("AAPL"), inst.Symbol)
	assert.Equal(t, market.Equity, inst.Class)
	assert.Equal(t, market.USD, inst.Currency)
	assert.Equal(t, "1", inst.TradeUnit.String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing instruments", "server:\n  port: 9001\n"},
		{"bad port", "server:\n  port: 123456\ninstruments:\n  - symbol: AAPL\n    class: equity\n    currency: USD\n"},
		{"missing currency", "server:\n  port: 9001\ninstruments:\n  - symbol: AAPL\n    class: equity\n"},
		{"unknown class", "server:\n  port: 9001\ninstruments:\n  - symbol: AAPL\n    class: spaceship\n    currency: USD\n"},
		{"duplicate symbol", "server:\n  port: 9001\ninstruments:\n  - symbol: AAPL\n    class: equity\n    currency: USD\n  - symbol: AAPL\n    class: equity\n    currency: USD\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
