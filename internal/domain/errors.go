package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrOffline             = errors.New("remote system unreachable")
	ErrUnavailable         = errors.New("data unavailable")
	ErrActionNotAllowed    = errors.New("action not allowed for this exchange")
	ErrConvocationNotFound = errors.New("no convocation resolvable for referee position")
	ErrContextDone         = errors.New("context cancelled")
)
