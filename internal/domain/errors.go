package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrURLRequired        = errors.New("URL is required")
	ErrInvalidURL         = errors.New("please enter a valid HTTP or HTTPS URL")
	ErrDuplicateBookmark  = errors.New("this URL is already in your library")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrMissingCredentials = errors.New("email and password are required")
)
