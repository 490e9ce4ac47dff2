package domain

import (
	"errors"
	"fmt"
)

// RateLimitedError is returned when the retry ceiling was exhausted on a
// rate-limit-class platform error. The unit of work is skipped, never the
// whole run.
type RateLimitedError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// RemoteError is a non-rate-limit transport or platform error. It carries
// the platform error code so callers can classify retryability.
type RemoteError struct {
	Operation  string
	HTTPStatus int
	Code       int
	Subcode    int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: platform error %d (subcode %d, http %d): %s",
		e.Operation, e.Code, e.Subcode, e.HTTPStatus, e.Message)
}

// platform error codes that denote per-account throttling
var rateLimitCodes = map[int]bool{
	4:     true, // application request limit
	17:    true, // user request limit
	32:    true, // page request limit
	613:   true, // custom rate limit
	80004: true, // ads insights throttle
}

// RateLimited reports whether the error denotes platform throttling rather
// than a hard failure.
func (e *RemoteError) RateLimited() bool {
	return rateLimitCodes[e.Code] || e.HTTPStatus == 429
}

// IsRateLimitSignal classifies any error chain for the executor.
func IsRateLimitSignal(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.RateLimited()
	}
	return false
}

// ParseAmbiguousError flags an ad name that matched neither parsing phase
// confidently. The parser still returns safe defaults; this is a signal for
// the run summary, not an abort.
type ParseAmbiguousError struct {
	AdName string
}

func (e *ParseAmbiguousError) Error() string {
	return fmt.Sprintf("ad name %q matched no parsing phase", e.AdName)
}

// StorageWriteError is a hard failure for one write batch. Earlier batches
// stay committed because writes are per-batch upserts.
type StorageWriteError struct {
	Records int
	Err     error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("storage write failed for %d records: %v", e.Records, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }
