//go:build linux

package pwm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const i2cSlave = 0x0703 // unix.I2C_SLAVE on platforms that export it

// I2CTransport drives a PCA9685-style expander over a Linux /dev/i2c-N bus
// using raw ioctl register writes, the same style golang.org/x/sys is used
// for elsewhere in the pack for direct OS syscalls.
type I2CTransport struct {
	f *os.File
}

// OpenI2C opens devPath (e.g. "/dev/i2c-1") and locks onto addr via ioctl.
func OpenI2C(devPath string, addr uint8) (*I2CTransport, error) {
	f, err := os.OpenFile(devPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("pwm: open %s: %w", devPath, err)
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), i2cSlave, uintptr(addr)); errno != 0 {
		f.Close()
		return nil, fmt.Errorf("pwm: ioctl I2C_SLAVE on %s: %w", devPath, errno)
	}
	return &I2CTransport{f: f}, nil
}

func (t *I2CTransport) WriteReg8(reg, value byte) error {
	_, err := t.f.Write([]byte{reg, value})
	return err
}

func (t *I2CTransport) WriteReg16(regLow byte, value uint16) error {
	_, err := t.f.Write([]byte{regLow, byte(value), byte(value >> 8)})
	return err
}

func (t *I2CTransport) Close() error {
	return t.f.Close()
}
