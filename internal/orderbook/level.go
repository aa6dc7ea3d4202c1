package orderbook

import (
	"container/list"
	"sort"
)

// priceLevel holds all orders resting at one price, in strict arrival
// order. The queue is never reordered, only appended to and removed from.
type priceLevel struct {
	price int64
	queue *list.List // of *Order
}

func newPriceLevel(price int64) *priceLevel {
	return &priceLevel{price: price, queue: list.New()}
}

func (pl *priceLevel) front() *Order {
	return pl.queue.Front().Value.(*Order)
}

func (pl *priceLevel) totalQuantity() int64 {
	var total int64
	for e := pl.queue.Front(); e != nil; e = e.Next() {
		total += e.Value.(*Order).Remaining()
	}
	return total
}

// bookSide keeps one side's price levels sorted best-first: descending for
// bids, ascending for asks. A level exists iff its queue is non-empty.
type bookSide struct {
	levels  []*priceLevel
	byPrice map[int64]*priceLevel
	better  func(a, b int64) bool
}

func newBookSide(better func(a, b int64) bool) *bookSide {
	return &bookSide{
		byPrice: make(map[int64]*priceLevel),
		better:  better,
	}
}

// best returns the level at the side's best price, or nil if the side has
// no resting interest.
func (s *bookSide) best() *priceLevel {
	if len(s.levels) == 0 {
		return nil
	}
	return s.levels[0]
}

// getOrCreate returns the level at price, inserting a new one in sorted
// position if absent.
func (s *bookSide) getOrCreate(price int64) *priceLevel {
	if level, ok := s.byPrice[price]; ok {
		return level
	}

	level := newPriceLevel(price)
	i := sort.Search(len(s.levels), func(i int) bool {
		return !s.better(s.levels[i].price, price)
	})
	s.levels = append(s.levels, nil)
	copy(s.levels[i+1:], s.levels[i:])
	s.levels[i] = level
	s.byPrice[price] = level
	return level
}

// removeLevel drops a level from the side. Callers only invoke this once
// the level's queue is empty.
func (s *bookSide) removeLevel(level *priceLevel) {
	delete(s.byPrice, level.price)
	for i, l := range s.levels {
		if l == level {
			s.levels = append(s.levels[:i], s.levels[i+1:]...)
			return
		}
	}
}
