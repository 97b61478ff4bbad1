package txengine

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWithNoEnv(t *testing.T) {
	for _, k := range []string{EnvMaxRetransmissions, EnvOriginalWait, EnvMaxWait, EnvKeepAfterResponse} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg := LoadConfig(nil)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverridesFromEnv(t *testing.T) {
	t.Setenv(EnvMaxRetransmissions, "3")
	t.Setenv(EnvOriginalWait, "50")
	t.Setenv(EnvMaxWait, "400")
	t.Setenv(EnvKeepAfterResponse, "true")

	cfg := LoadConfig(nil)
	require.Equal(t, 3, cfg.MaxRetransmissions)
	require.Equal(t, 50*time.Millisecond, cfg.OriginalWaitInterval)
	require.Equal(t, 400*time.Millisecond, cfg.MaxWaitInterval)
	require.True(t, cfg.KeepClientTransAfterResponse)
}

func TestLoadConfigIgnoresInvalidValues(t *testing.T) {
	t.Setenv(EnvMaxRetransmissions, "not-a-number")
	t.Setenv(EnvKeepAfterResponse, "not-a-bool")

	cfg := LoadConfig(nil)
	require.Equal(t, DefaultConfig().MaxRetransmissions, cfg.MaxRetransmissions)
	require.Equal(t, DefaultConfig().KeepClientTransAfterResponse, cfg.KeepClientTransAfterResponse)
}

func TestConfigSnapshotRejectsInvalidPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetransmissions = 0

	_, err := cfg.Snapshot()
	require.Error(t, err)
}

func TestConfigSnapshotMatchesDefaultPolicy(t *testing.T) {
	policy, err := DefaultConfig().Snapshot()
	require.NoError(t, err)
	require.Equal(t, DefaultPolicy(), policy)
}
