package authorization

import (
	"context"
	"errors"
)

// Service answers whether an authenticated actor may perform an action.
type Service interface {
	Authorize(ctx context.Context, actor string, role string, object string, action string) error
}

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)
