package target

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/ziutek/telnet"
)

// DefaultDialTimeout bounds connecting to a serial bridge.
const DefaultDialTimeout = 5 * time.Second

// TCPLauncher connects to a raw TCP serial bridge, such as QEMU started
// with -serial tcp::4444,server.
type TCPLauncher struct {
	// Address is host:port.
	Address string

	// DialTimeout bounds the whole connection attempt, retries included.
	DialTimeout time.Duration
}

// Launch dials the bridge.
func (l *TCPLauncher) Launch(ctx context.Context) (Handle, error) {
	timeout := l.DialTimeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	var d net.Dialer
	rwc, err := dialRetry(ctx, timeout, 0, func() (io.ReadWriteCloser, error) {
		dctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return d.DialContext(dctx, "tcp", l.Address)
	})
	if err != nil {
		return nil, err
	}
	return newConnHandle(rwc, "tcp:"+l.Address), nil
}

// TelnetLauncher connects to a telnet serial bridge, such as QEMU started
// with -serial telnet::4444,server. Telnet negotiation is handled by the
// connection; the bootloader console is carried as plain data.
type TelnetLauncher struct {
	// Address is host:port.
	Address string

	// DialTimeout bounds the whole connection attempt, retries included.
	DialTimeout time.Duration
}

// Launch dials the bridge.
func (l *TelnetLauncher) Launch(ctx context.Context) (Handle, error) {
	timeout := l.DialTimeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	rwc, err := dialRetry(ctx, timeout, 0, func() (io.ReadWriteCloser, error) {
		return telnet.DialTimeout("tcp", l.Address, timeout)
	})
	if err != nil {
		return nil, err
	}
	return newConnHandle(rwc, "telnet:"+l.Address), nil
}
