// Package biztime centralises time access. Everything is stored and compared
// in UTC; the configured location is only used by the scheduler.
package biztime

import (
	"fmt"
	"sync"
	"time"
)

const DefaultTimezone = "UTC"

var (
	location     *time.Location
	locationOnce sync.Once
	initErr      error
)

// Init sets the scheduler timezone. Must be called before the first Location call to take effect.
func Init(tz string) error {
	locationOnce.Do(func() {
		if tz == "" {
			tz = DefaultTimezone
		}
		location, initErr = time.LoadLocation(tz)
	})
	return initErr
}

func Location() *time.Location {
	if err := Init(""); err != nil {
		panic(fmt.Sprintf("biztime: failed to initialise timezone: %v", err))
	}
	return location
}

func NowUTC() time.Time {
	return time.Now().UTC()
}

// Clock abstracts "now" so TTL and activity windows can be tested.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return NowUTC()
}

// ManualClock is a settable Clock for tests and replay tooling.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start.UTC()}
}

func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}
