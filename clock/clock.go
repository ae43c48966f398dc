package clock

import "time"

// Clock abstracts time.Now so repositories can be tested with fixed times.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func NewClock() Clock {
	return &realClock{}
}

func (c *realClock) Now() time.Time {
	return time.Now()
}

// FixedClock always reports the same instant.
type FixedClock struct {
	Time time.Time
}

func (c FixedClock) Now() time.Time {
	return c.Time
}
