package orderbook

import "errors"

var (
	ErrNilOrder        = errors.New("nil order")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidPrice    = errors.New("price must be positive")
)
