package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInactive          = errors.New("referral link is inactive")
	ErrExpired           = errors.New("referral link has expired")
	ErrDuplicate         = errors.New("already exists")
	ErrStorage           = errors.New("storage error")
	ErrUnknownAction     = errors.New("unknown action")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("forbidden")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// lookupError turns a repository miss into ErrNotFound and anything else
// into ErrStorage.
func lookupError(err, notFound error, what string) error {
	if errors.Is(err, notFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return storageError("get "+what, err)
}
