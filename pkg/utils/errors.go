package utils

import "errors"

// ErrNoActivation is returned for cron expressions that never fire again,
// such as a schedule restricted to a past year.
var ErrNoActivation = errors.New("cron expression has no future activation")
