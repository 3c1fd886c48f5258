package nvm

import (
	"runtime"
	"time"
)

// WaitPolicy controls how a driver waits for its hardware to leave the busy
// state. The first BusyPolls polls only yield the processor; every poll
// after that sleeps for PollInterval so a long erase does not starve
// lower-priority goroutines. Busy-waits never time out: a busy bit that
// never clears hangs the caller, and liveness is the job of an external
// watchdog.
type WaitPolicy struct {
	BusyPolls    int
	PollInterval time.Duration
}

// DefaultWait suits page programs (tens of microseconds busy) as well as
// sector erases (hundreds of milliseconds) without burning a core.
var DefaultWait = WaitPolicy{
	BusyPolls:    16,
	PollInterval: 500 * time.Microsecond,
}

// Pause blocks between busy polls; poll counts from zero within one wait.
func (w WaitPolicy) Pause(poll int) {
	if poll < w.BusyPolls {
		runtime.Gosched()
		return
	}
	time.Sleep(w.PollInterval)
}

// OrDefault replaces a zero policy with DefaultWait during config validation.
func (w WaitPolicy) OrDefault() WaitPolicy {
	if w.BusyPolls == 0 && w.PollInterval == 0 {
		return DefaultWait
	}
	return w
}
