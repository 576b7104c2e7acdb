package domain

import "github.com/flurbudurbur/Hiatus/pkg/errors"

var (
	ErrNotFound                      = errors.New("entity not found")
	ErrUnauthorized                  = errors.New("caller is not allowed to change this entity")
	ErrLifecycleWindowExpired        = errors.New("recovery window has expired")
	ErrAccountDeletionPeriodExceeded = errors.New("account deletion period exceeded")
	ErrConflict                      = errors.New("entity was modified concurrently")
	ErrUnsupportedKind               = errors.New("unsupported entity kind")
	ErrOwnerInactive                 = errors.New("owning account is not active")
	ErrInvalidInput                  = errors.New("invalid input")
	ErrQueueFull                     = errors.New("restore queue is full")
)
