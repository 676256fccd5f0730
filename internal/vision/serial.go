package vision

import (
	"os"
	"time"
)

// SerialPort opens a USB-CDC/ACM character device as a Transport. The
// vision coprocessor's serial framing handles its own baud-independent
// link, so no termios configuration is attempted here beyond opening the
// device for raw read/write (no third-party serial library exists in this
// module's dependency stack; *os.File on a tty/ACM device already satisfies
// io.ReadWriter and supports SetReadDeadline/SetWriteDeadline on Linux).
type SerialPort struct {
	f *os.File
}

// OpenSerial opens path for read/write.
func OpenSerial(path string) (*SerialPort, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &SerialPort{f: f}, nil
}

func (p *SerialPort) Read(b []byte) (int, error)  { return p.f.Read(b) }
func (p *SerialPort) Write(b []byte) (int, error) { return p.f.Write(b) }

// SetDeadline forwards to the underlying file; the device must be a
// pollable character device (true for USB-ACM ttys on Linux).
func (p *SerialPort) SetDeadline(t time.Time) error { return p.f.SetDeadline(t) }

// Close releases the underlying file descriptor.
func (p *SerialPort) Close() error { return p.f.Close() }
