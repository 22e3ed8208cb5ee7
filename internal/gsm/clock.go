package gsm

import "time"

// Clock abstracts time retrieval; snapshot ids are derived from it.
type Clock interface {
	Now() time.Time
}

// RealClock returns the local wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
