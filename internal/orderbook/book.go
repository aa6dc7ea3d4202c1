package orderbook

import (
	"container/list"
	"sync"

	"github.com/gammazero/deque"
)

const defaultTapeLimit = 4096

// orderEntry is the order index record: the order plus its exact location
// in the price level queues, so cancellation never scans a level.
type orderEntry struct {
	order *Order
	level *priceLevel
	elem  *list.Element
}

// Book is an in-memory limit order book for a single symbol. All order
// lifecycle operations go through Submit, Cancel and Modify; matching runs
// to completion inside the submitting call, so the book is never observed
// mid-match and never left crossed.
type Book struct {
	Symbol string

	mu     sync.RWMutex
	bids   *bookSide
	asks   *bookSide
	orders map[uint64]orderEntry

	tape      deque.Deque[Trade]
	tapeLimit int

	onTrade []func(Trade)
}

func New(symbol string) *Book {
	return &Book{
		Symbol:    symbol,
		bids:      newBookSide(func(a, b int64) bool { return a > b }),
		asks:      newBookSide(func(a, b int64) bool { return a < b }),
		orders:    make(map[uint64]orderEntry),
		tapeLimit: defaultTapeLimit,
	}
}

// OnTrade registers a callback invoked once per trade, after the
// triggering operation has released the book lock. Register before the
// first Submit.
func (b *Book) OnTrade(fn func(Trade)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrade = append(b.onTrade, fn)
}

// Submit admits an order and returns the trades it produced, in match
// order. Submitting an id the book already knows is a silent no-op. A
// FillAndKill order that cannot cross on arrival is discarded without
// trades; if it partially fills, the remainder is discarded too.
func (b *Book) Submit(order *Order) ([]Trade, error) {
	if order == nil {
		return nil, ErrNilOrder
	}
	if order.Remaining() <= 0 {
		return nil, ErrInvalidQuantity
	}
	if order.Price <= 0 {
		return nil, ErrInvalidPrice
	}

	b.mu.Lock()
	trades := b.submitLocked(order)
	b.mu.Unlock()

	b.notifyTrades(trades)
	return trades, nil
}

func (b *Book) submitLocked(order *Order) []Trade {
	if _, exists := b.orders[order.ID]; exists {
		return nil
	}

	if order.Type == FillAndKill && !b.canMatch(order.Side, order.Price) {
		return nil
	}

	side := b.sideOf(order.Side)
	level := side.getOrCreate(order.Price)
	elem := level.queue.PushBack(order)
	b.orders[order.ID] = orderEntry{order: order, level: level, elem: elem}

	trades := b.matchOrders()

	// FillAndKill gates admission only; a partially filled remainder must
	// never rest.
	if order.Type == FillAndKill {
		b.cancelLocked(order.ID)
	}

	for _, t := range trades {
		b.recordTrade(t)
	}
	return trades
}

// canMatch reports whether an incoming order at the given side and price
// would cross the opposite side's best level.
func (b *Book) canMatch(side Side, price int64) bool {
	if side == Buy {
		best := b.asks.best()
		return best != nil && price >= best.price
	}
	best := b.bids.best()
	return best != nil && price <= best.price
}

// Cancel removes a resting order. Cancelling an unknown, already-filled or
// already-cancelled id is a no-op.
func (b *Book) Cancel(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelLocked(id)
}

func (b *Book) cancelLocked(id uint64) {
	entry, ok := b.orders[id]
	if !ok {
		return
	}
	delete(b.orders, id)

	entry.level.queue.Remove(entry.elem)
	if entry.level.queue.Len() == 0 {
		b.sideOf(entry.order.Side).removeLevel(entry.level)
	}
}

// Modify cancels the order and resubmits it with the caller-supplied side,
// price and quantity, keeping the original id and lifecycle policy. The
// replacement is treated as a brand-new arrival and goes to the back of
// its queue even at an unchanged price. Unknown ids are a no-op.
func (b *Book) Modify(id uint64, side Side, price, quantity int64) ([]Trade, error) {
	b.mu.Lock()
	entry, ok := b.orders[id]
	if !ok {
		b.mu.Unlock()
		return nil, nil
	}

	replacement, err := NewOrder(entry.order.Type, id, side, price, quantity)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}

	b.cancelLocked(id)
	trades := b.submitLocked(replacement)
	b.mu.Unlock()

	b.notifyTrades(trades)
	return trades, nil
}

// Size returns the number of live resting orders.
func (b *Book) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}

// BestBid returns the highest bid price, or 0 if no bids
func (b *Book) BestBid() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if best := b.bids.best(); best != nil {
		return best.price
	}
	return 0
}

// BestAsk returns the lowest ask price, or 0 if no asks
func (b *Book) BestAsk() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if best := b.asks.best(); best != nil {
		return best.price
	}
	return 0
}

// MidPrice returns the midpoint between best bid and ask
func (b *Book) MidPrice() int64 {
	bid := b.BestBid()
	ask := b.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// LevelSnapshot is one aggregated price level of a depth snapshot.
type LevelSnapshot struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// BookSnapshot is a point-in-time depth view, best price first per side.
// It is a copy: holders see no later book mutations.
type BookSnapshot struct {
	Symbol string          `json:"symbol"`
	Bids   []LevelSnapshot `json:"bids"`
	Asks   []LevelSnapshot `json:"asks"`
}

// Snapshot aggregates remaining quantity per price level on both sides.
func (b *Book) Snapshot() BookSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := BookSnapshot{
		Symbol: b.Symbol,
		Bids:   make([]LevelSnapshot, len(b.bids.levels)),
		Asks:   make([]LevelSnapshot, len(b.asks.levels)),
	}
	for i, level := range b.bids.levels {
		snap.Bids[i] = LevelSnapshot{Price: level.price, Quantity: level.totalQuantity()}
	}
	for i, level := range b.asks.levels {
		snap.Asks[i] = LevelSnapshot{Price: level.price, Quantity: level.totalQuantity()}
	}
	return snap
}

// RecentTrades returns up to n most recent trades, oldest first.
func (b *Book) RecentTrades(n int) []Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n < 0 {
		n = 0
	}
	if n > b.tape.Len() {
		n = b.tape.Len()
	}
	result := make([]Trade, n)
	start := b.tape.Len() - n
	for i := 0; i < n; i++ {
		result[i] = b.tape.At(start + i)
	}
	return result
}

func (b *Book) recordTrade(trade Trade) {
	b.tape.PushBack(trade)
	for b.tape.Len() > b.tapeLimit {
		b.tape.PopFront()
	}
}

func (b *Book) notifyTrades(trades []Trade) {
	b.mu.RLock()
	callbacks := b.onTrade
	b.mu.RUnlock()

	for _, trade := range trades {
		for _, fn := range callbacks {
			fn(trade)
		}
	}
}

func (b *Book) sideOf(side Side) *bookSide {
	if side == Buy {
		return b.bids
	}
	return b.asks
}
