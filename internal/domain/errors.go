package domain

import "errors"

var (
	// ErrTokenRejected means the provider refused a hand-off token.
	ErrTokenRejected = errors.New("provider: token rejected")
	// ErrAlreadyExists reports a lost conditional create.
	ErrAlreadyExists = errors.New("already exists")
)
