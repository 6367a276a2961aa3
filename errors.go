package main

import "github.com/rotisserie/eris"

var (
	ErrNotFound           = eris.New("participant not found")
	ErrRoleFull           = eris.New("role slot is full")
	ErrDuplicate          = eris.New("participant already registered")
	ErrInvariant          = eris.New("registry invariant violated")
	ErrInvalidCredentials = eris.New("invalid username or password")
	ErrUsernameTaken      = eris.New("username already taken")
	ErrRateLimited        = eris.New("too many attempts, try again later")
)
