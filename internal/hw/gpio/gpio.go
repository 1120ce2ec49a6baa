package gpio

import (
	"sync"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates how a GPIO is configured.
type PinMode int

const (
	Input PinMode = iota
	InputPullUp
	Output
)

func (m PinMode) String() string {
	switch m {
	case Input:
		return "input"
	case InputPullUp:
		return "input-pullup"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// Driver defines the abstract interface for controlling GPIOs.
// The kiosk reads a shutter button and drives a busy LED through it,
// either on a Raspberry Pi or through the mock on a dev machine.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// NewDriver creates a GPIO driver based on the chosen mode.
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return NewMockDriver(), nil
	}
	return NewRPiRealDriver()
}

// MockDriver keeps pin levels in memory. Pull-up inputs read High until
// something calls Set, so an idle button reads as released.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level
	modes  map[int]PinMode
}

func NewMockDriver() *MockDriver {
	return &MockDriver{levels: make(map[int]Level), modes: make(map[int]PinMode)}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[pin] = mode
	if mode == InputPullUp {
		m.levels[pin] = High
	}
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.Set(pin, level)
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

// Set forces a pin level, e.g. to simulate a button press.
func (m *MockDriver) Set(pin int, level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
}

// Mode returns the configured mode of pin.
func (m *MockDriver) Mode(pin int) (PinMode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mode, ok := m.modes[pin]
	return mode, ok
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
