package txengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestDeliverVsTimeoutRace arms many transactions with a hair-trigger
// schedule and, for each one, races a registry delivery against the
// transaction's own timeout path. Exactly one of OnResponse/OnTimeout
// must land per transaction, never both, never neither.
func TestDeliverVsTimeoutRace(t *testing.T) {
	const n = 200
	access := NewMemoryAccessLayer()
	reg := testRegistry(access)

	var wg sync.WaitGroup
	results := make(chan string, n)

	for i := 0; i < n; i++ {
		i := i
		collector := CollectorFuncs{
			Response: func(ResponseEvent) { results <- "response" },
			Timeout:  func() { results <- "timeout" },
		}
		tx, err := reg.Submit(context.Background(), &fakeRequest{}, Destination{Network: "udp", Addr: "127.0.0.1:1"}, "ap0",
			collector, Policy{MaxRetransmissions: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}, false)
		require.NoError(t, err)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				time.Sleep(time.Microsecond)
			}
			reg.Deliver(tx.ID(), ResponseEvent{TransactionID: tx.ID()})
		}()
	}
	wg.Wait()

	deadline := time.After(5 * time.Second)
	got := 0
	for got < n {
		select {
		case <-results:
			got++
		case <-deadline:
			t.Fatalf("only observed %d/%d terminal callbacks", got, n)
		}
	}
	require.Equal(t, 0, reg.Len())
}

func TestSubmitRejectsInvalidPolicy(t *testing.T) {
	access := NewMemoryAccessLayer()
	reg := testRegistry(access)

	_, err := reg.Submit(context.Background(), &fakeRequest{}, Destination{Network: "udp", Addr: "127.0.0.1:1"}, "ap0",
		newRecordingCollector(), Policy{MaxRetransmissions: 0}, false)
	require.Error(t, err)
	require.Equal(t, 0, reg.Len())
}

func TestDeliverUnknownIdentifierIsStray(t *testing.T) {
	access := NewMemoryAccessLayer()
	reg := testRegistry(access)

	id, err := NewTransactionID()
	require.NoError(t, err)
	require.False(t, reg.Deliver(id, ResponseEvent{TransactionID: id}))
}
