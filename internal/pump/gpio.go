//go:build linux

package pump

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// gpioDriver drives the relay through the Linux GPIO character device.
type gpioDriver struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewGPIODriver requests the relay line as an output, initially deasserted.
func NewGPIODriver(chipName string, pin int) (Driver, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pump pin %d: %w", pin, err)
	}
	return &gpioDriver{chip: chip, line: line}, nil
}

func (d *gpioDriver) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := d.line.SetValue(v); err != nil {
		return fmt.Errorf("set pump pin: %w", err)
	}
	return nil
}

// Close deasserts the line before releasing it so the relay cannot be left
// energized across a restart.
func (d *gpioDriver) Close() error {
	var errs []error
	if d.line != nil {
		if err := d.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("deassert pump pin: %w", err))
		}
		if err := d.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pump pin: %w", err))
		}
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
