package timing

import "errors"

var (
	// ErrInvalidElapsed is returned when a pulse would carry an elapsed time
	// that is not finite and positive. Such a pulse is never delivered.
	ErrInvalidElapsed = errors.New("timing: elapsed time must be finite and positive")

	// ErrClockPaused is returned by Tick while the clock is paused.
	ErrClockPaused = errors.New("timing: clock is paused")

	// ErrClockRunning is returned by Run if the clock is already running.
	ErrClockRunning = errors.New("timing: clock is already running")

	// ErrInvalidTimeRatio is returned for a time ratio that is not finite
	// and positive.
	ErrInvalidTimeRatio = errors.New("timing: time ratio must be finite and positive")
)
