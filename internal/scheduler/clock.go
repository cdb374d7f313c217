package scheduler

import "time"

// Clock supplies the current time. All scheduling decisions are time-relative,
// so the engines take a Clock rather than calling time.Now directly.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock { return systemClock{} }
