package jobs

import "errors"

// permanentError marks a handler failure that must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps an error so the queue fails the job immediately
// instead of applying backoff. Nil stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err carries the no-retry marker.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
