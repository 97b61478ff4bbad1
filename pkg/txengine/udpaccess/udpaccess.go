// Package udpaccess is a net.UDPConn-backed txengine.AccessLayer: one
// socket per access point, a bounded worker pool dispatching inbound
// datagrams to a decode-and-deliver callback, and an atomic-closed-flag
// shutdown shape that makes Close idempotent.
package udpaccess

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pion/logging"

	"github.com/go-stun/txengine/pkg/txengine"
)

// maxUDPPayload is the largest UDP datagram this layer will attempt to
// send; larger payloads are rejected before the syscall rather than
// left to fragment or fail opaquely.
const maxUDPPayload = 65507

// Handler decodes an inbound datagram and reports whether it was a STUN
// response worth handing to the registry, plus the identifier and event
// to deliver if so. Decoding is the caller's concern — udpaccess only
// moves bytes.
type Handler func(data []byte, from txengine.Destination) (id txengine.TransactionID, ev txengine.ResponseEvent, ok bool)

// Layer is a single UDP socket wired up as a txengine.AccessLayer plus a
// read loop that demultiplexes inbound responses into a Registry.
//
// A fixed-size worker pool bounds how many inbound datagrams are
// decoded concurrently, and an atomic closed flag makes Close idempotent
// and races Listen to a clean stop.
type Layer struct {
	conn *net.UDPConn
	ap   txengine.AccessPoint

	registry *txengine.Registry
	handler  Handler
	logger   logging.LeveledLogger

	workers    int
	workerPool chan struct{}

	closed int32
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options configures a Layer beyond the required wiring.
type Options struct {
	Workers int // defaults to 4
	Logger  logging.LeveledLogger
}

// New binds a UDP socket at localAddr (host:port, port 0 for ephemeral)
// and returns a Layer identified by ap for AccessLayer.Send calls.
func New(ap txengine.AccessPoint, localAddr string, registry *txengine.Registry, handler Handler, opts Options) (*Layer, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("udpaccess: resolve %q: %w", localAddr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("udpaccess: listen %q: %w", localAddr, err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Layer{
		conn:       conn,
		ap:         ap,
		registry:   registry,
		handler:    handler,
		logger:     opts.Logger,
		workers:    workers,
		workerPool: make(chan struct{}, workers),
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := 0; i < workers; i++ {
		l.workerPool <- struct{}{}
	}
	return l, nil
}

// Send implements txengine.AccessLayer.
func (l *Layer) Send(_ context.Context, ap txengine.AccessPoint, dest txengine.Destination, payload []byte) error {
	if !l.isOpen() {
		return fmt.Errorf("udpaccess: access point %s closed", ap)
	}
	if len(payload) > maxUDPPayload {
		return fmt.Errorf("udpaccess: payload %d bytes exceeds max UDP payload", len(payload))
	}
	remote, err := net.ResolveUDPAddr(dest.Network, dest.Addr)
	if err != nil {
		return fmt.Errorf("udpaccess: resolve destination %q: %w", dest.Addr, err)
	}
	_, err = l.conn.WriteToUDP(payload, remote)
	return err
}

// Listen reads datagrams until the Layer is closed, decoding each with
// Handler and, for a decoded response, delivering it to the registry.
// Blocks the calling goroutine; run it in its own goroutine per access
// point.
func (l *Layer) Listen() error {
	buf := make([]byte, 65535)
	for {
		select {
		case <-l.ctx.Done():
			return l.ctx.Err()
		default:
		}

		n, remote, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if l.isOpen() {
				if l.logger != nil {
					l.logger.Warnf("udpaccess: read on %s failed: %v", l.ap, err)
				}
				continue
			}
			return nil
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		from := txengine.Destination{Network: "udp", Addr: remote.String()}

		select {
		case <-l.workerPool:
			l.wg.Add(1)
			go l.process(data, from)
		default:
			if l.logger != nil {
				l.logger.Warnf("udpaccess: worker pool exhausted on %s, dropping datagram", l.ap)
			}
		}
	}
}

func (l *Layer) process(data []byte, from txengine.Destination) {
	defer func() {
		l.workerPool <- struct{}{}
		l.wg.Done()
	}()

	id, ev, ok := l.handler(data, from)
	if !ok {
		return
	}
	if delivered := l.registry.Deliver(id, ev); !delivered && l.logger != nil {
		l.logger.Debugf("udpaccess: stray response %s from %s", id, from.Addr)
	}
}

// Close stops Listen and releases the socket. Idempotent.
func (l *Layer) Close() error {
	if !atomic.CompareAndSwapInt32(&l.closed, 0, 1) {
		return nil
	}
	l.cancel()
	err := l.conn.Close()
	l.wg.Wait()
	return err
}

// LocalAddr returns the bound local address.
func (l *Layer) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}

func (l *Layer) isOpen() bool {
	return atomic.LoadInt32(&l.closed) == 0
}
