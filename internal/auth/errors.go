package auth

import "errors"

var (
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrSuspended       = errors.New("auth: account suspended")
	ErrAdminRequired   = errors.New("auth: admin access required")
)
