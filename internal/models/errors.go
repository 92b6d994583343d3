package models

import "errors"

var (
	ErrNotFound               = errors.New("resource not found")
	ErrAlreadyResolved        = errors.New("alert already resolved")
	ErrDuplicateNotification  = errors.New("notification already exists for user and alert")
	ErrDuplicateAlert         = errors.New("open alert already exists for movement")
	ErrInvalidLevelTransition = errors.New("invalid alert level transition")
	ErrUnauthorized           = errors.New("unauthorized")
)
