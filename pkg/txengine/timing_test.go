package txengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPolicyValidate(t *testing.T) {
	cases := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"default", DefaultPolicy(), false},
		{"zero retransmissions", Policy{MaxRetransmissions: 0, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}, true},
		{"sub-millisecond initial", Policy{MaxRetransmissions: 1, InitialInterval: 0, MaxInterval: time.Millisecond}, true},
		{"max below initial", Policy{MaxRetransmissions: 1, InitialInterval: 2 * time.Millisecond, MaxInterval: time.Millisecond}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNextWaitDoublesAndCaps(t *testing.T) {
	p := Policy{MaxRetransmissions: 6, InitialInterval: 100 * time.Millisecond, MaxInterval: 1600 * time.Millisecond}

	require.Equal(t, 200*time.Millisecond, p.NextWait(100*time.Millisecond))
	require.Equal(t, 1600*time.Millisecond, p.NextWait(1000*time.Millisecond))
	require.Equal(t, 1600*time.Millisecond, p.NextWait(1600*time.Millisecond))
}

func TestDefaultPolicySchedule(t *testing.T) {
	offsets, timeoutAt := DefaultPolicy().Schedule()

	want := []time.Duration{
		0,
		100 * time.Millisecond,
		300 * time.Millisecond,
		700 * time.Millisecond,
		1500 * time.Millisecond,
		3100 * time.Millisecond,
		4700 * time.Millisecond,
	}
	require.Equal(t, want, offsets)
	require.Equal(t, 6300*time.Millisecond, timeoutAt)
}

func TestScheduleLengthMatchesRetransmissionCount(t *testing.T) {
	p := Policy{MaxRetransmissions: 3, InitialInterval: time.Millisecond, MaxInterval: 4 * time.Millisecond}
	offsets, _ := p.Schedule()
	require.Len(t, offsets, 4) // initial send + 3 retransmissions
}
