package app

import "time"

// Timer is a cancellable scheduled task.
type Timer interface {
	Stop() bool
}

// Scheduler runs delayed callbacks. Sessions bind every task they schedule to their own lifecycle.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealScheduler is backed by time.AfterFunc.
func RealScheduler() Scheduler {
	return realScheduler{}
}

func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}
