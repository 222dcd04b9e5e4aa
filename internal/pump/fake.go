package pump

import "sync"

// FakeDriver records relay transitions. Used by tests and dry runs.
type FakeDriver struct {
	mu          sync.Mutex
	state       bool
	transitions []bool
	closed      bool

	// SetError, if set, is returned by every Set call.
	SetError error
}

func NewFakeDriver() *FakeDriver {
	return &FakeDriver{}
}

func (f *FakeDriver) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.state = on
	f.transitions = append(f.transitions, on)
	return nil
}

func (f *FakeDriver) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// State returns the current relay value.
func (f *FakeDriver) State() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Ons counts the asserted transitions recorded so far.
func (f *FakeDriver) Ons() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.transitions {
		if v {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called.
func (f *FakeDriver) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
