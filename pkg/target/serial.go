package target

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the bootloader console speed.
const DefaultBaudRate = 115200

// SerialLauncher opens a board's UART through a local serial port.
type SerialLauncher struct {
	// Port is the device name (e.g. /dev/ttyUSB0 or COM3).
	Port string

	// BaudRate defaults to DefaultBaudRate.
	BaudRate int

	// ReadTimeout bounds each read so Terminate is never stuck behind a
	// blocked read. Defaults to 100ms.
	ReadTimeout time.Duration

	// ResetOnOpen pulses DTR after opening, which resets most boards into
	// the bootloader.
	ResetOnOpen bool
}

// Launch opens the port.
func (l *SerialLauncher) Launch(ctx context.Context) (Handle, error) {
	baud := l.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	readTimeout := l.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 100 * time.Millisecond
	}

	port, err := serial.Open(l.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrLaunchFailed, l.Port, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: set read timeout: %v", ErrLaunchFailed, err)
	}

	if l.ResetOnOpen {
		if err := pulseDTR(ctx, port); err != nil {
			port.Close()
			return nil, err
		}
	}

	return newConnHandle(port, fmt.Sprintf("serial:%s@%d", l.Port, baud)), nil
}

func pulseDTR(ctx context.Context, port serial.Port) error {
	if err := port.SetDTR(false); err != nil {
		return fmt.Errorf("%w: set DTR: %v", ErrLaunchFailed, err)
	}
	t := time.NewTimer(100 * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := port.SetDTR(true); err != nil {
		return fmt.Errorf("%w: set DTR: %v", ErrLaunchFailed, err)
	}
	return port.ResetInputBuffer()
}
