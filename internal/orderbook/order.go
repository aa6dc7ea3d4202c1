package orderbook

import (
	"fmt"
	"time"
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// OrderType is the lifecycle policy of an order.
type OrderType int

const (
	// GoodTillCancel rests in the book until fully filled or cancelled.
	GoodTillCancel OrderType = iota
	// FillAndKill matches immediately against resting liquidity; any
	// unmatched remainder is discarded, never rested.
	FillAndKill
)

func (t OrderType) String() string {
	if t == GoodTillCancel {
		return "GTC"
	}
	return "FAK"
}

// Order is a single unit of trading interest. Price is in cents to avoid
// float issues. Once admitted to a book the order belongs to the book;
// remaining quantity only ever decreases, via Fill.
type Order struct {
	ID       uint64    `json:"id"`
	Side     Side      `json:"side"`
	Type     OrderType `json:"type"`
	Price    int64     `json:"price"`
	Quantity int64     `json:"quantity"`

	remaining int64
}

// NewOrder validates and constructs an order. The id comes from the
// caller's id supply; the book never generates ids itself.
func NewOrder(orderType OrderType, id uint64, side Side, price, quantity int64) (*Order, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if price <= 0 {
		return nil, ErrInvalidPrice
	}
	return &Order{
		ID:        id,
		Side:      side,
		Type:      orderType,
		Price:     price,
		Quantity:  quantity,
		remaining: quantity,
	}, nil
}

func (o *Order) Remaining() int64 {
	return o.remaining
}

func (o *Order) Filled() int64 {
	return o.Quantity - o.remaining
}

func (o *Order) IsFilled() bool {
	return o.remaining == 0
}

// Fill reduces the remaining quantity. Overfilling means the matching loop
// sized a fill past min(remainings) and the book is corrupt, so it panics
// rather than returning a recoverable error.
func (o *Order) Fill(quantity int64) {
	if quantity > o.remaining {
		panic(fmt.Sprintf("order %d: fill %d exceeds remaining %d", o.ID, quantity, o.remaining))
	}
	o.remaining -= quantity
}

// Execution is one side's fact within a trade: which order traded, at that
// order's own resting price, and for how much.
type Execution struct {
	OrderID  uint64 `json:"order_id"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

// Trade pairs the buy-side and sell-side executions of a single match.
// The two prices may differ when an aggressive bid crosses a cheaper ask;
// no price-improvement redistribution is performed. Trades are immutable
// once returned.
type Trade struct {
	ID        string    `json:"id"`
	Buy       Execution `json:"buy"`
	Sell      Execution `json:"sell"`
	Timestamp time.Time `json:"timestamp"`
}
