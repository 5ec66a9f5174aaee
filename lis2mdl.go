package lis2mdl

import (
	"encoding/binary"
	"math"
	"time"
)

// ST LIS2MDL 3D digital magnetometer

// Configuration registers, exposed for manual configuration beyond what
// Start sets up.
const (
	CfgRegA = 0x60
	CfgRegB = 0x61
	CfgRegC = 0x62
)

const (
	whoAmIReg = 0x4f
	outXLReg  = 0x68 // X low byte, then X high .. Z high
)

// ChipID is the value the identity register reads back on a real LIS2MDL.
// The driver does not check it; compare the WhoAmI result yourself to
// verify wiring and address.
const ChipID = 0x40

const (
	magLSB             = 1.5 // mgauss/LSB
	mgaussToMicrotesla = 0.1
)

// Address is the 7-bit device address on the I2C bus.
type Address byte

// DefaultAddress is the factory-set LIS2MDL address.
const DefaultAddress Address = 0x1e

// AddressOrDefault returns Address(b), or DefaultAddress when b is zero.
func AddressOrDefault(b byte) Address {
	if b == 0 {
		return DefaultAddress
	}
	return Address(b)
}

// A Bus performs addressed I2C transactions. A *i2c.Bus wrapping a
// sysfs device satisfies it, as does *i2c.D2r2.
type Bus interface {
	Write(addr byte, p []byte) error
	WriteRead(addr byte, w, r []byte) error
}

// A Delay blocks the caller while the sensor settles between
// configuration writes.
type Delay interface {
	Sleep(d time.Duration)
}

// SleepDelay implements Delay using time.Sleep.
type SleepDelay struct{}

func (SleepDelay) Sleep(d time.Duration) { time.Sleep(d) }

// BusError wraps a failure reported by the Bus. Every driver operation
// that touches the bus returns either nil or a *BusError; the driver
// performs no retries or recovery.
type BusError struct {
	Err error
}

func (e *BusError) Error() string { return "i2c bus: " + e.Err.Error() }

func (e *BusError) Unwrap() error { return e.Err }

// Calibration holds the observed range of converted x/y field readings,
// in µT. Before the first Heading call the bounds are at their ±Inf
// sentinels and must not be interpreted.
type Calibration struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Driver drives one LIS2MDL. It owns its Bus and Delay exclusively and
// is not safe for concurrent use; callers serialize access themselves.
type Driver struct {
	bus   Bus
	addr  Address
	delay Delay

	magX, magY, magZ int16
	cal              Calibration
}

// New returns a Driver bound to addr on bus. No I/O is performed;
// call Start before reading data.
func New(bus Bus, addr Address, delay Delay) *Driver {
	return &Driver{
		bus:   bus,
		addr:  addr,
		delay: delay,
		cal: Calibration{
			MinX: math.Inf(1), MaxX: math.Inf(-1),
			MinY: math.Inf(1), MaxY: math.Inf(-1),
		},
	}
}

// Start puts the sensor into continuous measurement mode. Each register
// write is followed by the settle time the datasheet calls for. On
// failure the sequence stops immediately, leaving the device partially
// configured; there is no rollback.
func (d *Driver) Start() error {
	steps := []struct {
		reg, val byte
		settle   time.Duration
	}{
		// Force I2C mode first, with address auto-increment off.
		{CfgRegC, 0x00, 5 * time.Microsecond},
		// IF_ADD_INC=1, BDU=1.
		{CfgRegC, 0x11, 5 * time.Microsecond},
		// Continuous mode, default ODR, no temperature compensation.
		{CfgRegA, 0x00, 5 * time.Microsecond},
		// Default offset cancellation behavior.
		{CfgRegB, 0x00, 10 * time.Microsecond},
	}

	for _, s := range steps {
		if err := d.SetRegister(s.reg, s.val); err != nil {
			return err
		}
		d.delay.Sleep(s.settle)
	}
	return nil
}

// WhoAmI reads the identity register. The result is returned as-is;
// compare against ChipID to validate the device.
func (d *Driver) WhoAmI() (byte, error) {
	return d.Register(whoAmIReg)
}

// Register reads a single register.
func (d *Driver) Register(reg byte) (byte, error) {
	var buf [1]byte
	if err := d.bus.WriteRead(byte(d.addr), []byte{reg}, buf[:]); err != nil {
		return 0, &BusError{Err: err}
	}
	return buf[0], nil
}

// SetRegister writes a single register.
func (d *Driver) SetRegister(reg, value byte) error {
	if err := d.bus.Write(byte(d.addr), []byte{reg, value}); err != nil {
		return &BusError{Err: err}
	}
	return nil
}

// Read fetches the current raw field sample from the sensor. On failure
// the previously read sample is retained.
func (d *Driver) Read() error {
	var buf [6]byte
	if err := d.bus.WriteRead(byte(d.addr), []byte{outXLReg}, buf[:]); err != nil {
		return &BusError{Err: err}
	}

	d.magX = int16(binary.LittleEndian.Uint16(buf[0:2]))
	d.magY = int16(binary.LittleEndian.Uint16(buf[2:4]))
	d.magZ = int16(binary.LittleEndian.Uint16(buf[4:6]))
	return nil
}

// RawField returns the most recent raw sample, zero before the first
// successful Read.
func (d *Driver) RawField() (x, y, z int16) {
	return d.magX, d.magY, d.magZ
}

// Field returns the most recent sample converted to µT.
func (d *Driver) Field() (x, y, z float64) {
	x = float64(d.magX) * magLSB * mgaussToMicrotesla
	y = float64(d.magY) * magLSB * mgaussToMicrotesla
	z = float64(d.magZ) * magLSB * mgaussToMicrotesla
	return x, y, z
}

// Heading returns the compass heading in degrees, [0, 360), from the
// most recent sample. Every call folds the sample into the running
// hard-iron calibration, so accuracy improves as the sensor is rotated
// through representative headings.
func (d *Driver) Heading() float64 {
	x, y, _ := d.Field()

	d.cal.MaxX = math.Max(d.cal.MaxX, x)
	d.cal.MinX = math.Min(d.cal.MinX, x)
	d.cal.MaxY = math.Max(d.cal.MaxY, y)
	d.cal.MinY = math.Min(d.cal.MinY, y)

	xOffset := (d.cal.MaxX + d.cal.MinX) / 2
	yOffset := (d.cal.MaxY + d.cal.MinY) / 2

	heading := math.Atan2(y-yOffset, x-xOffset) * 180 / math.Pi
	if heading < 0 {
		heading += 360
	}
	return heading
}

// Calibration returns the running hard-iron calibration window.
func (d *Driver) Calibration() Calibration {
	return d.cal
}
