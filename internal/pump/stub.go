//go:build !linux

package pump

import "errors"

// NewGPIODriver is only available on Linux, where the GPIO character device
// exists. Non-Linux builds run with the fake driver instead.
func NewGPIODriver(chipName string, pin int) (Driver, error) {
	return nil, errors.New("pump: gpio driver requires linux")
}
