package source

import (
	"context"
	"fmt"

	"go.bug.st/serial"
)

// DefaultBaud is used when no baud rate is configured.
const DefaultBaud = 115200

// OpenSerial opens a serial device in 8N1 mode.
func OpenSerial(path string, baud int) (serial.Port, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	return port, nil
}

// Serial streams "timestamp,value" lines from a serial device.
type Serial struct {
	Path string
	Baud int
	Opts []LineOption
}

// Run implements Source. The port is closed when the context ends, which
// unblocks the pending read.
func (s *Serial) Run(ctx context.Context, sink Sink) error {
	port, err := OpenSerial(s.Path, s.Baud)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		port.Close()
	}()

	err = NewLineReader(port, s.Opts...).Run(ctx, sink)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Ports lists the serial devices present on the system.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
