// Package lock provides keyed mutual exclusion for booking writes. A booking
// holds the lock for every doctor-day its interval touches while it reads,
// validates and writes, so concurrent requests cannot both pass validation.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrLockTimeout is returned when the context ends before the lock is free.
var ErrLockTimeout = errors.New("timed out waiting for booking lock")

// Locker acquires an exclusive lock on key. The returned release func must be
// called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// DayKeys returns the lock keys for every UTC calendar day that [start, end)
// touches, in ascending order.
func DayKeys(doctorID uuid.UUID, start, end time.Time) []string {
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		end = start.Add(time.Nanosecond)
	}
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	var keys []string
	for day.Before(end) {
		keys = append(keys, fmt.Sprintf("booking:%s:%s", doctorID, day.Format("2006-01-02")))
		day = day.AddDate(0, 0, 1)
	}
	return keys
}

// AcquireAll takes every key in sorted order and returns a func releasing them
// in reverse. If any acquisition fails the keys already held are released.
func AcquireAll(ctx context.Context, l Locker, keys []string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var releases []func()
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for i, k := range sorted {
		if i > 0 && k == sorted[i-1] {
			continue
		}
		release, err := l.Acquire(ctx, k)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}
