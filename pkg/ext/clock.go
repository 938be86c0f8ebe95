package ext

import "time"

// Clock wraps the Now method. Report generation and the dashboard take the
// current time from a Clock so that tests can pin it.
type Clock interface {
	Now() time.Time
}

type systemClock struct {
}

// Now returns the current UTC time truncated to whole seconds, which is the
// precision stamped into generated artifacts.
func (c *systemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func NewSystemClock() Clock {
	return &systemClock{}
}

type fixedClock struct {
	fixedTime time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.fixedTime
}

func NewFixedClock(fixedTime time.Time) Clock {
	return &fixedClock{
		fixedTime: fixedTime,
	}
}
