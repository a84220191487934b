package jobqueue

import "errors"

var (
	// ErrStorageNil is returned when a nil storage is provided
	ErrStorageNil = errors.New("job storage cannot be nil")

	// ErrPayloadMarshal is returned when payload marshaling fails
	ErrPayloadMarshal = errors.New("failed to marshal job payload to JSON")

	// ErrNoJob is returned by ClaimJob when nothing is ready to run
	ErrNoJob = errors.New("no job ready to run")

	// ErrJobNotFound is returned when a job id is unknown
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotFailed is returned when requeueing a job that is not dead
	ErrJobNotFailed = errors.New("only failed jobs can be requeued")

	// ErrHandlerNotFound is returned when no handler is registered for a job kind
	ErrHandlerNotFound = errors.New("no handler registered for job kind")

	// ErrNoHandlers is returned when a worker starts without handlers
	ErrNoHandlers = errors.New("no job handlers registered")
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the job fails regardless of its retry budget
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
