package reminders

import "errors"

var (
	ErrAlreadyRunning = errors.New("poller already running")
	ErrInboxFetch     = errors.New("inbox fetch failed")
	ErrInboxDecode    = errors.New("inbox response malformed")
)
