package domain

import "errors"

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrNotFound               = errors.New("resource not found")
	ErrConflict               = errors.New("conflict")
	ErrCampaignClosed         = errors.New("campaign closed")
	ErrLockConflict           = errors.New("assignment lock held elsewhere")
	ErrLockBackendUnavailable = errors.New("lock backend unavailable")
	ErrStorageUnavailable     = errors.New("storage unavailable")
	ErrDependencyUnavailable  = errors.New("dependency unavailable")
)
