package upstream

import "errors"

var (
	ErrNotFound         = errors.New("upstream: not found")
	ErrConflict         = errors.New("upstream: conflict")
	ErrUnavailable      = errors.New("upstream: unavailable")
	ErrUnexpectedStatus = errors.New("upstream: unexpected status")
	ErrBadResponse      = errors.New("upstream: malformed response")
)
