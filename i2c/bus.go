package i2c

import "fmt"

// A Device is typically a *sysfs.I2cDevice (gobot.io/x/gobot/sysfs).
type Device interface {
	SetAddress(address int) error
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
}

// Bus adapts a Device to addressed write and write-then-read
// transactions.
type Bus struct {
	dev Device
}

func NewBus(dev Device) *Bus {
	return &Bus{dev: dev}
}

func (b *Bus) Write(addr byte, p []byte) error {
	if err := b.dev.SetAddress(int(addr)); err != nil {
		return fmt.Errorf("set device address: %w", err)
	}
	if _, err := b.dev.Write(p); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (b *Bus) WriteRead(addr byte, w, r []byte) error {
	if err := b.dev.SetAddress(int(addr)); err != nil {
		return fmt.Errorf("set device address: %w", err)
	}
	if _, err := b.dev.Write(w); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	n, err := b.dev.Read(r)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if n < len(r) {
		return fmt.Errorf("read: %d of %d bytes", n, len(r))
	}
	return nil
}
