// Package apperr holds the error kinds shared by storage, services and transports.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotAFolder    = errors.New("not a folder")
	ErrNotAFile      = errors.New("not a file")
	ErrInvalidInput  = errors.New("invalid input")
)
