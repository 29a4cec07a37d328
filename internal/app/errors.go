package app

import "errors"

var (
	ErrStateDirUnavailable = errors.New("state directory is not usable")
	ErrStoreOpen           = errors.New("persisted state could not be opened")
)
