// Package pwm talks to a 16-channel PWM expander (PCA9685-style) over I2C.
package pwm

import (
	"fmt"
	"sync"
	"time"
)

// BusError wraps a failed PWM write after retries are exhausted.
type BusError struct {
	Channel int
	Err     error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("pwm: channel %d: %v", e.Channel, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// Transport is the narrow register-level contract a PWM expander is reached
// over. A Linux I2C implementation and an in-memory simulator both satisfy it.
type Transport interface {
	WriteReg8(reg, value byte) error
	WriteReg16(regLow byte, value uint16) error
	Close() error
}

const (
	regMode1    = 0x00
	regPrescale = 0xFE
	regLed0OnL  = 0x06

	oscClockHz = 25000000
)

// Bus is the single-owner serialized driver for one PCA9685-style expander.
// All Servo writes on the same Bus serialize on mu, matching the spec's
// single mutex-shared-by-all-servos requirement.
type Bus struct {
	mu        sync.Mutex
	transport Transport
	freqHz    float64
	retries   int
	backoff   time.Duration
}

// NewBus wires a Bus on top of transport at the given carrier frequency.
func NewBus(transport Transport, freqHz float64) (*Bus, error) {
	b := &Bus{
		transport: transport,
		retries:   3,
		backoff:   2 * time.Millisecond,
	}
	if err := b.SetFreq(freqHz); err != nil {
		return nil, err
	}
	return b, nil
}

// SetFreq reprograms the expander's PWM carrier frequency.
func (b *Bus) SetFreq(hz float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prescale := byte(oscClockHz/(4096*hz) - 1 + 0.5)
	err := b.retryWrite(-1, func() error {
		if err := b.transport.WriteReg8(regMode1, 0x10); err != nil { // sleep
			return err
		}
		if err := b.transport.WriteReg8(regPrescale, prescale); err != nil {
			return err
		}
		if err := b.transport.WriteReg8(regMode1, 0x00); err != nil { // wake
			return err
		}
		return b.transport.WriteReg8(regMode1, 0xA1) // auto-increment + restart
	})
	if err != nil {
		return err
	}
	b.freqHz = hz
	return nil
}

// SetPWM writes raw on/off tick counts (0-4095) for one channel.
func (b *Bus) SetPWM(channel int, onTicks, offTicks uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	reg := regLed0OnL + byte(4*channel)
	return b.retryWrite(channel, func() error {
		if err := b.transport.WriteReg16(reg, onTicks); err != nil {
			return err
		}
		return b.transport.WriteReg16(reg+2, offTicks)
	})
}

// SetPulseUs writes a pulse width in microseconds at the bus's current
// carrier frequency, phase-offset to 0.
func (b *Bus) SetPulseUs(channel int, pulseUs float64) error {
	periodUs := 1000000.0 / b.freqHz
	ticks := uint16(clampF(pulseUs/periodUs*4096.0, 0, 4095))
	return b.SetPWM(channel, 0, ticks)
}

// Release stops issuing pulses on channel (PCA9685 full-off bit).
func (b *Bus) Release(channel int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	reg := regLed0OnL + byte(4*channel)
	return b.retryWrite(channel, func() error {
		return b.transport.WriteReg16(reg+2, 1<<12) // full-off bit
	})
}

// Close releases the underlying transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transport.Close()
}

func (b *Bus) retryWrite(channel int, fn func() error) error {
	var err error
	wait := b.backoff
	for attempt := 0; attempt <= b.retries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt < b.retries {
			time.Sleep(wait)
			wait *= 2
		}
	}
	return &BusError{Channel: channel, Err: err}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
