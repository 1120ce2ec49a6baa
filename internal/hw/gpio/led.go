package gpio

// LED is an output pin driven High while lit. A nil *LED is a valid no-op,
// so callers need not check whether one is wired.
type LED struct {
	driver Driver
	pin    int
}

// NewLED configures pin as an output and switches it off.
func NewLED(d Driver, pin int) (*LED, error) {
	if err := d.SetupPin(pin, Output); err != nil {
		return nil, err
	}
	l := &LED{driver: d, pin: pin}
	return l, l.Off()
}

func (l *LED) On() error {
	if l == nil {
		return nil
	}
	return l.driver.WritePin(l.pin, High)
}

func (l *LED) Off() error {
	if l == nil {
		return nil
	}
	return l.driver.WritePin(l.pin, Low)
}
