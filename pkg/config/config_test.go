package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func baseConfig() map[string]any {
	return map[string]any{
		"database": map[string]any{
			"user":     "bridge",
			"password": "from-file",
		},
		"destination": map[string]any{
			"treasury_address": "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty",
		},
		"bridge": map[string]any{
			"business_fee_percentage": "2.5",
		},
		"networks": []map[string]any{
			{
				"name":               "sepolia",
				"network":            "Sepolia",
				"monitor_address":    "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
				"source_ws_url":      "wss://sepolia.example/ws",
				"destination_ws_url": "wss://glitch.example/ws",
				"confirmations":      12,
				"max_block_range":    500,
			},
		},
	}
}

func writeConfig(t *testing.T, cfg map[string]any) string {
	t.Helper()
	raw, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, baseConfig()))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "glitch_bridge", cfg.Database.Database)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "Balances.transfer", cfg.Destination.TransferCall)
	assert.Equal(t, uint16(42), cfg.Destination.SS58Prefix)
	assert.Equal(t, 5*time.Second, cfg.Bridge.TransferInterval)
	assert.Equal(t, time.Minute, cfg.Bridge.ProcessingRetryAfter)
	assert.Equal(t, 24*time.Hour, cfg.Bridge.SettlementInterval)
	assert.Equal(t, time.Second, cfg.Supervisor.InitialBackoff)
	assert.Equal(t, "glitch-bridge:signer", cfg.SignerLock.Key)

	require.Len(t, cfg.Networks, 1)
	n := cfg.Networks[0]
	assert.Equal(t, uint64(12), n.Confirmations)
	assert.Equal(t, uint64(500), n.MaxBlockRange)
	assert.Zero(t, n.StartBlock)
	assert.Equal(t, "2.5", cfg.Bridge.BusinessFeePercentage)

	assert.ErrorIs(t, cfg.RequireSignerKey(), ErrMissingSignerKey)
}

func TestLoad_FileValuesOverrideDefaults(t *testing.T) {
	raw := baseConfig()
	raw["server"] = map[string]any{"port": 9090, "allowed_origins": []string{"https://bridge.example"}}
	raw["bridge"] = map[string]any{
		"business_fee_percentage": "1",
		"settlement_interval":     "1h",
		"processing_retry_after":  "0s",
	}
	raw["networks"].([]map[string]any)[0]["start_block"] = 5_000_000

	cfg, err := Load(writeConfig(t, raw))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://bridge.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, time.Hour, cfg.Bridge.SettlementInterval)
	assert.Zero(t, cfg.Bridge.ProcessingRetryAfter, "explicit zero disables the retry path")
	assert.Equal(t, 5*time.Second, cfg.Bridge.TransferInterval)
	assert.Equal(t, uint64(5_000_000), cfg.Networks[0].StartBlock)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BRIDGE_SIGNER_PRIVATE_KEY", "//Alice")
	t.Setenv("BRIDGE_DATABASE_PASSWORD", "from-env")
	t.Setenv("BRIDGE_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load(writeConfig(t, baseConfig()))
	require.NoError(t, err)
	assert.Equal(t, "//Alice", cfg.Destination.SignerPrivateKey)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "redis://localhost:6379/0", cfg.SignerLock.RedisURL)
	assert.NoError(t, cfg.RequireSignerKey())
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(raw map[string]any)
	}{
		{"no networks", func(raw map[string]any) { raw["networks"] = []map[string]any{} }},
		{"bad monitor address", func(raw map[string]any) {
			raw["networks"].([]map[string]any)[0]["monitor_address"] = "0x1234"
		}},
		{"bad source url", func(raw map[string]any) {
			raw["networks"].([]map[string]any)[0]["source_ws_url"] = "not a url"
		}},
		{"missing treasury", func(raw map[string]any) { raw["destination"] = map[string]any{} }},
		{"fee percentage above 100", func(raw map[string]any) {
			raw["bridge"] = map[string]any{"business_fee_percentage": "150"}
		}},
		{"fee percentage finer than a basis point", func(raw map[string]any) {
			raw["bridge"] = map[string]any{"business_fee_percentage": "0.001"}
		}},
		{"duplicate network names", func(raw map[string]any) {
			n := raw["networks"].([]map[string]any)[0]
			raw["networks"] = []map[string]any{n, n}
		}},
		{"delegate without command", func(raw map[string]any) {
			raw["destination"].(map[string]any)["delegate"] = map[string]any{"enabled": true}
		}},
		{"bad log format", func(raw map[string]any) { raw["logging"] = map[string]any{"format": "xml"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := baseConfig()
			tt.mutate(raw)
			_, err := Load(writeConfig(t, raw))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDatabaseConfig_GetConnectionString(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5432, Database: "bridge", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/bridge?sslmode=disable", c.GetConnectionString())
}
