// Package nextrun computes the next run instant for scan schedules. It is
// pure: no I/O, deterministic for a fixed "now".
package nextrun

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/threatengine/onboarding/internal/models"
)

// ErrInvalidCron is returned when a cron expression does not parse as a
// standard 5-field expression.
var ErrInvalidCron = errors.New("invalid cron expression")

// ErrInvalidInterval is returned when an interval schedule has a
// non-positive interval.
var ErrInvalidInterval = errors.New("interval must be positive")

// Standard 5-field cron (minute hour dom month dow), no @descriptors. The
// stored expressions must stay portable across engines, so descriptors are
// rejected up front.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Compute returns the next run instant in UTC for a schedule, or nil when the
// schedule has no next run (one_time, or an unrecognized kind — the loop
// treats those as non-recurring; creation-time validation rejects them).
//
// Cron expressions are evaluated in the schedule's timezone and the result is
// converted back to UTC. Interval schedules run at now + interval.
func Compute(kind, cronExpr string, intervalSeconds int, timezone string, now time.Time) (*time.Time, error) {
	switch kind {
	case models.KindCron:
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
		sched, err := parser.Parse(cronExpr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCron, cronExpr, err)
		}
		next := sched.Next(now.In(loc)).UTC()
		return &next, nil

	case models.KindInterval:
		if intervalSeconds <= 0 {
			return nil, ErrInvalidInterval
		}
		next := now.UTC().Add(time.Duration(intervalSeconds) * time.Second)
		return &next, nil

	case models.KindOneTime:
		return nil, nil
	}

	// Unknown kinds get no next run rather than an error: a bad row in the
	// store must not wedge the polling loop.
	return nil, nil
}

// ValidateCron checks that expr is a valid standard 5-field cron expression.
func ValidateCron(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCron, err)
	}
	return nil
}
