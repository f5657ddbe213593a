package compose

import "errors"

var (
	ErrUpFailed     = errors.New("compose up failed")
	ErrStopFailed   = errors.New("compose stop failed")
	ErrStatusFailed = errors.New("compose status failed")
)
