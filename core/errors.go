package core

import "errors"

var (
	ErrInvalidAddress   = errors.New("invalid ethereum address")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrNonceMismatch    = errors.New("nonce has already been consumed")
	ErrMissingRole      = errors.New("new users must specify a valid role")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token has expired")
	ErrRoleMismatch     = errors.New("access denied for role")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrStore            = errors.New("store operation failed")
)
