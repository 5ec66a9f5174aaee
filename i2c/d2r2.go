package i2c

import (
	"fmt"

	goi2c "github.com/d2r2/go-i2c"
)

// D2r2 adapts a *i2c.I2C from github.com/d2r2/go-i2c for hosts not
// using gobot. A d2r2 handle is opened against one fixed address, so
// transactions for any other address are rejected.
type D2r2 struct {
	dev *goi2c.I2C
}

func NewD2r2(dev *goi2c.I2C) *D2r2 {
	return &D2r2{dev: dev}
}

func (b *D2r2) Write(addr byte, p []byte) error {
	if err := b.checkAddr(addr); err != nil {
		return err
	}
	if _, err := b.dev.WriteBytes(p); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (b *D2r2) WriteRead(addr byte, w, r []byte) error {
	if err := b.checkAddr(addr); err != nil {
		return err
	}
	if _, err := b.dev.WriteBytes(w); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	n, err := b.dev.ReadBytes(r)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if n < len(r) {
		return fmt.Errorf("read: %d of %d bytes", n, len(r))
	}
	return nil
}

func (b *D2r2) checkAddr(addr byte) error {
	if got := b.dev.GetAddr(); got != addr {
		return fmt.Errorf("device opened at address %#02x, not %#02x", got, addr)
	}
	return nil
}
