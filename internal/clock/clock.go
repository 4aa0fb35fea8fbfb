package clock

import (
	"sync"
	"time"
)

// Clock provides time information to the timer and history.
// This interface allows time to be mocked in tests.
type Clock interface {
	Now() time.Time
}

// RealClock provides actual system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// TestClock provides fixed time for testing.
type TestClock struct {
	CurrentTime time.Time
}

// Now returns the test time.
func (t *TestClock) Now() time.Time {
	return t.CurrentTime
}

// Ticker is a source of periodic callbacks. Only one cadence is expected to
// be active per timer; Start may be called again after the previous cadence
// has been stopped.
type Ticker interface {
	Start(fn func()) Stopper
}

// Stopper halts a cadence started by a Ticker. Stop is idempotent and never
// blocks on an in-flight callback.
type Stopper interface {
	Stop()
}

// RealTicker fires fn from its own goroutine once per Period.
type RealTicker struct {
	Period time.Duration
}

// Start begins a wall-clock cadence.
func (r RealTicker) Start(fn func()) Stopper {
	period := r.Period
	if period <= 0 {
		period = time.Second
	}

	tk := time.NewTicker(period)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-tk.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	return &realStopper{ticker: tk, done: done}
}

type realStopper struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (s *realStopper) Stop() {
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.done)
	})
}

// Fake is a virtual-time Clock and Ticker. Advance moves time forward one
// second at a time and invokes every active cadence after each step, so a
// cadence started from inside a callback receives the following second.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	entries map[int]func()
	order   []int
}

// NewFake returns a Fake positioned at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, entries: make(map[int]func())}
}

// Now returns the virtual time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set jumps the virtual time without firing any cadence.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Start registers fn to be invoked on every virtual second.
func (f *Fake) Start(fn func()) Stopper {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.entries[id] = fn
	f.order = append(f.order, id)

	return &fakeStopper{fake: f, id: id}
}

// Active reports how many cadences are currently registered.
func (f *Fake) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Advance steps the virtual time forward by d, truncated to whole seconds.
func (f *Fake) Advance(d time.Duration) {
	for i := int64(0); i < int64(d/time.Second); i++ {
		f.mu.Lock()
		f.now = f.now.Add(time.Second)
		ids := append([]int(nil), f.order...)
		f.mu.Unlock()

		for _, id := range ids {
			// A callback may stop another cadence within the same step.
			f.mu.Lock()
			fn, ok := f.entries[id]
			f.mu.Unlock()
			if ok {
				fn()
			}
		}
	}
}

func (f *Fake) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.entries, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

type fakeStopper struct {
	fake *Fake
	id   int
}

func (s *fakeStopper) Stop() {
	s.fake.remove(s.id)
}
