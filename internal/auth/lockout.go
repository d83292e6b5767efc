package auth

import "time"

// LockoutPolicy is the pure decision function mapping a failed-attempt
// count onto lock/no-lock. It holds no state; counters live on the
// account row.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// OnFailure reports whether the attempt that produced newCount triggers a
// lock, and if so until when. The comparison uses >= so a counter that
// overshot the threshold (concurrent failures racing the lock write)
// still locks.
func (p LockoutPolicy) OnFailure(newCount int, now time.Time) (bool, time.Time) {
	if p.Threshold <= 0 || newCount < p.Threshold {
		return false, time.Time{}
	}
	return true, now.Add(p.Duration)
}

// RemainingMinutes rounds the time left on a lock up to whole minutes.
// Lock messages never expose finer precision than this.
func RemainingMinutes(until, now time.Time) int {
	d := until.Sub(now)
	if d <= 0 {
		return 0
	}
	mins := int((d + time.Minute - 1) / time.Minute)
	return mins
}
