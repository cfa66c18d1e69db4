// Package cron computes scheduler wake-up times.
package cron

import (
	"time"

	"github.com/robfig/cron/v3"
)

type Schedule interface {
	Next(after time.Time) time.Time
}

// Every returns a fixed-delay schedule. Intervals are rounded down to whole
// seconds with a minimum of one second.
func Every(interval time.Duration) Schedule {
	return cron.Every(interval)
}
