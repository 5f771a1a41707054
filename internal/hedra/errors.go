package hedra

import "errors"

// ErrGenerationFailed is wrapped by the error WaitForVideo returns when the
// service reports a job's status as "failed".
var ErrGenerationFailed = errors.New("video generation failed")

// ErrGenerationTimeout is wrapped by the error WaitForVideo returns when a
// job's polling exceeds the configured overall timeout.
var ErrGenerationTimeout = errors.New("video generation timed out")

// Error is the single error kind returned by all Client operations. Transport
// failures, non-2xx responses, and malformed bodies all surface as *Error; the
// two terminal wait outcomes are told apart with errors.Is against the
// sentinels above.
type Error struct {
	Op     string // remote operation that failed, e.g. "upload asset"
	Target string // local file or remote identifier involved, if any
	Msg    string // human-readable detail
	Err    error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	s := e.Op
	if e.Target != "" {
		s += " " + e.Target
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }
