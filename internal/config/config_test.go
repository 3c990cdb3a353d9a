package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmerrifield20/SupplyChainLedger/internal/config"
)

const addr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func TestLoad_memoryModeDefaults(t *testing.T) {
	t.Setenv("LEDGER_MODE", "memory")
	chdir(t, t.TempDir())

	cfg, found, err := config.Load(config.New(), "")
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, config.ModeMemory, cfg.Ledger.Mode)
	assert.Equal(t, 15*time.Second, cfg.Ledger.CallTimeout)
	assert.Equal(t, "https://sepolia.etherscan.io", cfg.Ledger.ExplorerURL)
	assert.Equal(t, "organic-cotton-tshirt", cfg.DefaultProduct)
	assert.Equal(t, 3, cfg.Health.FailThreshold)
}

func TestLoad_contractModeRequiresEndpoint(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("INFURA_URL", "")
	t.Setenv("LEDGER_RPC_URL", "")

	_, _, err := config.Load(config.New(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc_url")
}

func TestLoad_legacyEnvNames(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("INFURA_URL", "https://sepolia.infura.io/v3/key")
	t.Setenv("CONTRACT_ADDRESS", addr)

	cfg, _, err := config.Load(config.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "https://sepolia.infura.io/v3/key", cfg.Ledger.RPCURL)
	assert.Equal(t, addr, cfg.Ledger.ContractAddress)
}

func TestLoad_rejectsBadAddress(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("INFURA_URL", "https://sepolia.infura.io/v3/key")
	t.Setenv("CONTRACT_ADDRESS", "0x1234")

	_, _, err := config.Load(config.New(), "")
	assert.Error(t, err)
}

func TestLoad_file(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "viewer.yaml")
	doc := `
server:
  port: 8088
ledger:
  mode: contract
  rpc_url: http://localhost:8545
  contract_address: ` + addr + `
  call_timeout: 3s
  parallel_stages: 4
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, found, err := config.Load(config.New(), path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Ledger.CallTimeout)
	assert.Equal(t, 4, cfg.Ledger.ParallelStages)
}

func TestLoad_envOverridesFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "viewer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ledger:\n  mode: memory\nserver:\n  port: 8088\n"), 0o600))
	t.Setenv("SERVER_PORT", "9099")

	cfg, _, err := config.Load(config.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 9099, cfg.Server.Port)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("VIEWER_DOTENV_PROBE=loaded\n"), 0o600))
	t.Setenv("VIEWER_DOTENV_PROBE", "")
	os.Unsetenv("VIEWER_DOTENV_PROBE")

	require.NoError(t, config.LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("VIEWER_DOTENV_PROBE"))
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (stand-in for testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("chdir: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("chdir: restoring %s: %v", prev, err)
		}
	})
}
