package logging

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// FailureReporter logs recovered handler and listener failures. A handler
// that fails on every pulse would otherwise flood the log, so lines beyond
// the allowed rate are counted and the count is attached to the next line
// that gets through.
type FailureReporter struct {
	log        logrus.FieldLogger
	limiter    *rate.Limiter
	suppressed atomic.Uint64
}

// NewFailureReporter creates a reporter allowing perSecond lines per second
// with the given burst. A non-positive perSecond disables throttling.
func NewFailureReporter(
	log logrus.FieldLogger,
	perSecond float64,
	burst int,
) *FailureReporter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}

	if burst < 1 {
		burst = 1
	}

	return &FailureReporter{
		log:     log,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Report logs a failure at error level unless throttled. It returns true if
// the line was written.
func (r *FailureReporter) Report(fields logrus.Fields, msg string) bool {
	if !r.limiter.Allow() {
		r.suppressed.Add(1)
		return false
	}

	entry := r.log.WithFields(fields)
	if n := r.suppressed.Swap(0); n > 0 {
		entry = entry.WithField("suppressed", n)
	}

	entry.Error(msg)

	return true
}

// Suppressed returns the number of lines dropped since the last written one.
func (r *FailureReporter) Suppressed() uint64 {
	return r.suppressed.Load()
}
