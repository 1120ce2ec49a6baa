package gpio

import (
	"context"
	"time"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// Button watches a pulled-up input wired to ground through a push button.
// A press is a falling edge that stays Low for at least the debounce time.
type Button struct {
	driver   Driver
	pin      int
	debounce time.Duration
	poll     time.Duration
}

// NewButton configures pin as a pull-up input.
func NewButton(d Driver, pin int, debounce, poll time.Duration) (*Button, error) {
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	if err := d.SetupPin(pin, InputPullUp); err != nil {
		return nil, err
	}
	return &Button{driver: d, pin: pin, debounce: debounce, poll: poll}, nil
}

// Watch samples the pin until ctx is done and calls onPress once per press.
// onPress runs on the watcher goroutine; a slow handler delays the next
// sample, which also swallows presses made while it runs.
func (b *Button) Watch(ctx context.Context, onPress func()) error {
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	stable := High
	var lowSince time.Time
	fired := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			level, err := b.driver.ReadPin(b.pin)
			if err != nil {
				debug.Error("button read", err)
				continue
			}
			switch {
			case level == Low && stable == High:
				stable = Low
				lowSince = now
				fired = false
			case level == High:
				stable = High
			}
			if stable == Low && !fired && now.Sub(lowSince) >= b.debounce {
				fired = true
				debug.Live("Button on pin %d pressed", b.pin)
				onPress()
			}
		}
	}
}
