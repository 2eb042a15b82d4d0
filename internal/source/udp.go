package source

import (
	"context"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"

	"github.com/ernie/sessions-tracker/internal/domain"
)

const maxDatagram = 65535

// Sink receives parsed engine events. Submit may refuse an event when the
// consumer is saturated; the feed does not retry.
type Sink interface {
	Submit(ev domain.Event) bool
}

// Feed listens for engine log lines forwarded over UDP and turns them
// into tracker events.
type Feed struct {
	addr string
	sink Sink
	log  *zap.Logger
	conn *net.UDPConn
}

// NewFeed creates a feed bound to the given UDP address
func NewFeed(addr string, sink Sink, log *zap.Logger) *Feed {
	return &Feed{addr: addr, sink: sink, log: log}
}

// Start opens the UDP socket
func (f *Feed) Start() error {
	udpAddr, err := net.ResolveUDPAddr("udp", f.addr)
	if err != nil {
		return fmt.Errorf("resolving listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", f.addr, err)
	}
	f.conn = conn
	f.log.Info("event feed listening", zap.String("addr", f.addr))
	return nil
}

// Run reads datagrams until ctx is cancelled. Each datagram may carry
// several newline-separated log lines.
func (f *Feed) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		f.conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := f.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.log.Warn("event feed read error", zap.Error(err))
			continue
		}

		for _, line := range strings.Split(string(buf[:n]), "\n") {
			if line == "" {
				continue
			}
			ev, ok := ParseLine(line)
			if !ok {
				continue
			}
			if !f.sink.Submit(ev) {
				f.log.Warn("tracker queue full, event dropped", zap.String("type", ev.Type))
			}
		}
	}
}
