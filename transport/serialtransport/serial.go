// Package serialtransport adapts github.com/tarm/serial to stream.Transport,
// for U3V-style links carried over a serial bulk-transfer channel instead of
// real USB.
package serialtransport

import (
	"fmt"
	"time"

	"github.com/tarm/serial"

	"github.com/kstaniek/go-u3v-stream/internal/logging"
)

// port abstracts tarm/serial for testability, mirroring the shape of a real
// serial port without pulling in the concrete type at test time.
type port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// openFunc is swapped out in tests.
var openFunc = func(name string, baud int, readTimeout time.Duration) (port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}

// Transport implements stream.Transport over a serial link. Recv
// accumulates partial reads until it has exactly len(buf) bytes or the
// timeout elapses, since tarm/serial's ReadTimeout governs individual Read
// calls, not the whole requested length.
type Transport struct {
	name string
	baud int

	p port
}

// New creates a Transport bound to the given device name and baud rate.
// The underlying port is not opened until Open is called.
func New(name string, baud int) *Transport {
	return &Transport{name: name, baud: baud}
}

// Open allocates the underlying serial port. A no-op if already open.
func (t *Transport) Open() error {
	if t.p != nil {
		return nil
	}
	// readTimeout is set per-Recv via deadline bookkeeping below; open with
	// a short default so Read never blocks indefinitely past our own
	// accounting.
	p, err := openFunc(t.name, t.baud, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", t.name, err)
	}
	t.p = p
	return nil
}

// Close releases the underlying serial port. A no-op if already closed.
func (t *Transport) Close() error {
	if t.p == nil {
		return nil
	}
	err := t.p.Close()
	t.p = nil
	if err != nil {
		return fmt.Errorf("close serial port %s: %w", t.name, err)
	}
	return nil
}

// Recv blocks until len(buf) bytes have been read or timeout elapses.
func (t *Transport) Recv(buf []byte, timeout time.Duration) (int, error) {
	if t.p == nil {
		return 0, fmt.Errorf("serial port %s not open", t.name)
	}
	if len(buf) == 0 {
		return 0, nil
	}

	deadline := time.Now().Add(timeout)
	total := 0
	for total < len(buf) {
		if time.Now().After(deadline) {
			return total, fmt.Errorf("serial recv timeout on %s after %d/%d bytes", t.name, total, len(buf))
		}
		n, err := t.p.Read(buf[total:])
		total += n
		if err != nil {
			logging.L().Debug("serial_recv_error", "device", t.name, "got", total, "want", len(buf), "error", err)
			return total, fmt.Errorf("serial recv on %s: %w", t.name, err)
		}
	}
	return total, nil
}
