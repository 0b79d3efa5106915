package connector

import "time"

// Metrics receives connector observations. Implementations live in
// pkg/metrics; a nil Metrics passed to New selects the no-op implementation.
type Metrics interface {
	// RecordOperation records a completed operation and its outcome.
	RecordOperation(op string, duration time.Duration, err error)

	// RecordLockWait records how long a mutation waited for the
	// transaction lock.
	RecordLockWait(duration time.Duration)

	// RecordWorkingCopyLeak records a working copy left behind by a failed
	// mutation.
	RecordWorkingCopyLeak()
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, time.Duration, error) {}
func (noopMetrics) RecordLockWait(time.Duration)                 {}
func (noopMetrics) RecordWorkingCopyLeak()                       {}
