package utils

import (
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/safeops/postureboard/pkg/ext"
)

// NextCronDuration returns the time left until the first activation of the
// cron expression after from. The duration is negative or zero when that
// activation has already passed.
func NextCronDuration(cronString string, from time.Time, clock ext.Clock) (time.Duration, error) {
	expr, err := cronexpr.Parse(cronString)
	if err != nil {
		return time.Duration(0), err
	}
	next := expr.Next(from)
	if next.IsZero() {
		return time.Duration(0), ErrNoActivation
	}
	return timeToExpiration(next, clock), nil
}

// DurationExceeded returns true if the duration is not positive.
func DurationExceeded(duration time.Duration) bool {
	return duration.Nanoseconds() <= 0
}

// timeToExpiration returns the duration between now and expiresAt.
func timeToExpiration(expiresAt time.Time, clock ext.Clock) time.Duration {
	return expiresAt.Sub(clock.Now())
}

// IsTTLExpired checks whether the current time has exceeded creation time
// plus ttl.
func IsTTLExpired(ttl time.Duration, creationTime time.Time, clock ext.Clock) (bool, time.Duration) {
	durationToTTLExpiration := timeToExpiration(creationTime.Add(ttl), clock)
	return DurationExceeded(durationToTTLExpiration), durationToTTLExpiration
}
