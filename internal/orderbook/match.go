package orderbook

import (
	"time"

	"github.com/google/uuid"
)

// matchOrders crosses the best bid level against the best ask level until
// no cross remains: price priority across levels, strict arrival order
// within a level, greedy min-quantity pairing. Caller holds the write
// lock. On return best bid < best ask, or a side is empty.
func (b *Book) matchOrders() []Trade {
	var trades []Trade

	for {
		bidLevel := b.bids.best()
		askLevel := b.asks.best()
		if bidLevel == nil || askLevel == nil {
			break
		}
		if bidLevel.price < askLevel.price {
			break
		}

		for bidLevel.queue.Len() > 0 && askLevel.queue.Len() > 0 {
			bid := bidLevel.front()
			ask := askLevel.front()

			quantity := min(bid.Remaining(), ask.Remaining())
			bid.Fill(quantity)
			ask.Fill(quantity)

			// Each side executes at its own resting price; an aggressive
			// bid over a cheaper ask records both prices as-is.
			trades = append(trades, Trade{
				ID:        uuid.New().String(),
				Buy:       Execution{OrderID: bid.ID, Price: bid.Price, Quantity: quantity},
				Sell:      Execution{OrderID: ask.ID, Price: ask.Price, Quantity: quantity},
				Timestamp: time.Now(),
			})

			if bid.IsFilled() {
				bidLevel.queue.Remove(bidLevel.queue.Front())
				delete(b.orders, bid.ID)
			}
			if ask.IsFilled() {
				askLevel.queue.Remove(askLevel.queue.Front())
				delete(b.orders, ask.ID)
			}
		}

		if bidLevel.queue.Len() == 0 {
			b.bids.removeLevel(bidLevel)
		}
		if askLevel.queue.Len() == 0 {
			b.asks.removeLevel(askLevel)
		}
	}

	return trades
}
