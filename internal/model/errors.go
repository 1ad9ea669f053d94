package model

import "errors"

// Sentinel errors shared by the store and the HTTP layer.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid request")
	ErrExpired   = errors.New("time limit exceeded")
)
