// Command txdemo exercises the transaction engine end to end over a real
// UDP socket pair: one access point plays an ICE agent driving a
// client transaction, the other plays a STUN-speaking peer that either
// answers or stays silent, depending on -mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-stun/txengine/pkg/txengine"
	"github.com/go-stun/txengine/pkg/txengine/udpaccess"
)

// demoRequest is a toy wire format for this demo only: the 12-byte
// identifier followed by a fixed method tag. It exists to give
// txengine.Request a concrete, encodable type without pulling in a real
// STUN attribute codec, which is out of this engine's scope.
type demoRequest struct {
	id     txengine.TransactionID
	method string
}

func (r *demoRequest) SetTransactionID(id txengine.TransactionID) { r.id = id }

func (r *demoRequest) Encode() ([]byte, error) {
	out := make([]byte, 12+len(r.method))
	copy(out, r.id[:])
	copy(out[12:], r.method)
	return out, nil
}

func main() {
	var (
		mode    = flag.String("mode", "respond", "peer behavior: respond, silent")
		delayMs = flag.Int("delay", 250, "peer response delay in milliseconds (mode=respond)")
		debug   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logFactory := logging.NewDefaultLoggerFactory()
	if *debug {
		logFactory.DefaultLogLevel = logging.LogLevelDebug
	} else {
		logFactory.DefaultLogLevel = logging.LogLevelInfo
	}
	logger := logFactory.NewLogger("txdemo")

	peerAddr, stop := startPeer(*mode, time.Duration(*delayMs)*time.Millisecond, logger)
	defer stop()

	metrics := txengine.NewMetrics(prometheus.NewRegistry())
	collected := make(chan struct{})

	registry := txengine.NewRegistry(nil, logger, metrics) // access wired in below, after the layer exists
	access, err := udpaccess.New("agent0", "127.0.0.1:0", registry, decodeResponse, udpaccess.Options{Logger: logger})
	if err != nil {
		log.Fatalf("txdemo: bind access layer: %v", err)
	}
	defer access.Close()
	registry.SetAccessLayer(access)
	go func() {
		if err := access.Listen(); err != nil {
			logger.Debugf("txdemo: listener stopped: %v", err)
		}
	}()

	collector := txengine.CollectorFuncs{
		Response: func(ev txengine.ResponseEvent) {
			fmt.Printf("response from %s: %v\n", ev.From.Addr, ev.Payload)
			close(collected)
		},
		Timeout: func() {
			fmt.Println("transaction timed out")
			close(collected)
		},
	}

	cfg := txengine.LoadConfig(logger)
	policy, err := cfg.Snapshot()
	if err != nil {
		log.Fatalf("txdemo: config: %v", err)
	}

	req := &demoRequest{method: "BIND"}
	dest := txengine.Destination{Network: "udp", Addr: peerAddr}
	tx, err := registry.Submit(context.Background(), req, dest, "agent0", collector, policy, cfg.KeepClientTransAfterResponse)
	if err != nil {
		log.Fatalf("txdemo: submit: %v", err)
	}
	fmt.Printf("started transaction %s -> %s\n", tx.ID(), dest.Addr)

	select {
	case <-collected:
	case <-time.After(10 * time.Second):
		fmt.Println("demo watchdog: giving up, cancelling")
		tx.Cancel()
	}
}

// decodeResponse treats any datagram at least 12 bytes long as a
// response whose first 12 bytes are the identifier it matches.
func decodeResponse(data []byte, from txengine.Destination) (txengine.TransactionID, txengine.ResponseEvent, bool) {
	if len(data) < 12 {
		return txengine.TransactionID{}, txengine.ResponseEvent{}, false
	}
	var id txengine.TransactionID
	copy(id[:], data[:12])
	return id, txengine.ResponseEvent{TransactionID: id, Payload: string(data[12:]), From: from}, true
}

// startPeer binds a bare net.PacketConn standing in for the far side of
// the exchange and returns its address plus a stop function. In
// "respond" mode it echoes back the identifier with a canned payload
// after delay; in "silent" mode it never answers, which is how this
// demo exercises the timeout path.
func startPeer(mode string, delay time.Duration, logger logging.LeveledLogger) (addr string, stop func()) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		log.Fatalf("txdemo: bind peer: %v", err)
	}

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 2048)
		for {
			n, remote, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			if mode == "silent" || n < 12 {
				continue
			}
			id := append([]byte(nil), buf[:12]...)
			go func() {
				select {
				case <-time.After(delay):
				case <-done:
					return
				}
				reply := append(id, []byte("ok")...)
				if _, err := conn.WriteToUDP(reply, remote); err != nil {
					logger.Warnf("txdemo: peer reply failed: %v", err)
				}
			}()
		}
	}()

	return conn.LocalAddr().String(), func() {
		close(done)
		conn.Close()
	}
}
