package orchestrator

// UserError is a failure the user should see. Error returns exactly the
// message to display; Err carries the underlying cause when there is one.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }

// Is matches any UserError with the same message, so callers can test
// against the sentinels below with errors.Is regardless of cause.
func (e *UserError) Is(target error) bool {
	t, ok := target.(*UserError)
	return ok && t.Message == e.Message
}

var (
	ErrTitleFailed              = &UserError{Message: "Failed to get session title."}
	ErrSessionRunning           = &UserError{Message: "Session is still running. Please wait for it to finish."}
	ErrWorkingDirectoryRequired = &UserError{Message: "Working Directory is required to start a session."}
)
