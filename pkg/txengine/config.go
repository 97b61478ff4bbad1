package txengine

import (
	"os"
	"strconv"
	"time"

	"github.com/pion/logging"
)

// Config holds the four process-wide timing/behavior keys an agent's
// start-up code loads once from the environment. A live transaction
// never reads Config directly — Snapshot freezes it into a Policy at
// transaction-construction time, so a config change mid-flight can
// never retarget an already-armed transaction.
type Config struct {
	// MaxRetransmissions is MAX_RETRANSMISSIONS, N.
	MaxRetransmissions int

	// OriginalWaitInterval is ORIGINAL_WAIT_INTERVAL, T0.
	OriginalWaitInterval time.Duration

	// MaxWaitInterval is MAX_WAIT_INTERVAL, Tmax.
	MaxWaitInterval time.Duration

	// KeepClientTransAfterResponse is KEEP_CLIENT_TRANS_AFTER_A_RESPONSE:
	// advanced mode in which a transaction survives its first matched
	// response to keep receiving later ones.
	KeepClientTransAfterResponse bool
}

// DefaultConfig mirrors DefaultPolicy's RFC 3489-family defaults with
// the advanced flag off.
func DefaultConfig() Config {
	p := DefaultPolicy()
	return Config{
		MaxRetransmissions:           p.MaxRetransmissions,
		OriginalWaitInterval:         p.InitialInterval,
		MaxWaitInterval:              p.MaxInterval,
		KeepClientTransAfterResponse: false,
	}
}

// env key names, exported as constants so a deployment's systemd unit or
// docker-compose file has one place to look them up.
const (
	EnvMaxRetransmissions = "MAX_RETRANSMISSIONS"
	EnvOriginalWait       = "ORIGINAL_WAIT_INTERVAL"
	EnvMaxWait            = "MAX_WAIT_INTERVAL"
	EnvKeepAfterResponse  = "KEEP_CLIENT_TRANS_AFTER_A_RESPONSE"
)

// LoadConfig reads the four keys from the environment, starting from
// DefaultConfig and overriding whatever is present. An invalid value
// (unparseable integer, non-bool) is logged at Warn and the default for
// that key is kept — config loading never hard-fails a process start,
// degrading to a default rather than panicking on a bad external input.
func LoadConfig(logger logging.LeveledLogger) Config {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv(EnvMaxRetransmissions); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			cfg.MaxRetransmissions = n
		} else if logger != nil {
			logger.Warnf("txengine: ignoring invalid %s=%q", EnvMaxRetransmissions, v)
		}
	}
	if v, ok := os.LookupEnv(EnvOriginalWait); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			cfg.OriginalWaitInterval = time.Duration(n) * time.Millisecond
		} else if logger != nil {
			logger.Warnf("txengine: ignoring invalid %s=%q", EnvOriginalWait, v)
		}
	}
	if v, ok := os.LookupEnv(EnvMaxWait); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			cfg.MaxWaitInterval = time.Duration(n) * time.Millisecond
		} else if logger != nil {
			logger.Warnf("txengine: ignoring invalid %s=%q", EnvMaxWait, v)
		}
	}
	if v, ok := os.LookupEnv(EnvKeepAfterResponse); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.KeepClientTransAfterResponse = b
		} else if logger != nil {
			logger.Warnf("txengine: ignoring invalid %s=%q", EnvKeepAfterResponse, v)
		}
	}

	return cfg
}

// Snapshot freezes the current config into an immutable Policy, the form
// a transaction actually carries. Returns an error if the sampled values
// violate Policy.Validate's invariants, so a bad Config is caught at
// submission time rather than silently misbehaving mid-schedule.
func (c Config) Snapshot() (Policy, error) {
	p := Policy{
		MaxRetransmissions: c.MaxRetransmissions,
		InitialInterval:    c.OriginalWaitInterval,
		MaxInterval:        c.MaxWaitInterval,
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
