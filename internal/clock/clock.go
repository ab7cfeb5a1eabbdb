package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock is the reference clock for the accounting core. The daily scan
// ceiling resets on UTC calendar dates, so every date computation goes
// through this interface rather than time.Now.
type Clock interface {
	Now() time.Time
}

// DateLayout is the canonical format for a day-of-record.
const DateLayout = "2006-01-02"

// Date formats t as a UTC calendar date.
func Date(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func NewSystemClock() Clock {
	return systemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
