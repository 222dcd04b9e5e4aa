// Package sensor provides moisture reading sources: an MQTT-fed source for
// the real probe node and a simulated source for hardware-free runs.
package sensor

import "errors"

// ErrUnavailable means no usable reading exists right now. The automation
// core treats every read error the same way regardless of cause.
var ErrUnavailable = errors.New("sensor: reading unavailable")
