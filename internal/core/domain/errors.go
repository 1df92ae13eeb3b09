package domain

import "github.com/pkg/errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrImageInconsistency   = errors.New("representative image inconsistency")
	ErrInvalidQuantity      = errors.New("invalid order quantity")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrOrderAlreadyCanceled = errors.New("order already canceled")
)
