//go:build darwin

package pwm

import "fmt"

// OpenI2C is unavailable on macOS development hosts; use SimBus for local
// development and integration tests instead.
func OpenI2C(devPath string, addr uint8) (*I2CTransport, error) {
	return nil, fmt.Errorf("pwm: I2C transport not supported on darwin, use SimBus")
}

// I2CTransport is an unusable placeholder on darwin to keep the package
// building across platforms; no methods are reachable since OpenI2C always
// fails.
type I2CTransport struct{}

func (t *I2CTransport) WriteReg8(reg, value byte) error   { return fmt.Errorf("unsupported") }
func (t *I2CTransport) WriteReg16(regLow byte, value uint16) error { return fmt.Errorf("unsupported") }
func (t *I2CTransport) Close() error                      { return nil }
