package orderbook

import (
	"math/rand"
	"testing"
)

func mustOrder(t *testing.T, orderType OrderType, id uint64, side Side, price, quantity int64) *Order {
	t.Helper()
	o, err := NewOrder(orderType, id, side, price, quantity)
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	return o
}

func submit(t *testing.T, b *Book, orderType OrderType, id uint64, side Side, price, quantity int64) []Trade {
	t.Helper()
	trades, err := b.Submit(mustOrder(t, orderType, id, side, price, quantity))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return trades
}

// checkInvariants walks the book's internals and fails if the price level
// index and order index disagree, a level is empty or out of order, a
// zero-remaining order is resting, or the book is crossed.
func checkInvariants(t *testing.T, b *Book) {
	t.Helper()
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[uint64]bool)
	queued := 0

	for _, s := range []*bookSide{b.bids, b.asks} {
		for i, level := range s.levels {
			if level.queue.Len() == 0 {
				t.Fatalf("empty level %d left in book", level.price)
			}
			if s.byPrice[level.price] != level {
				t.Fatalf("level %d missing from price map", level.price)
			}
			if i > 0 && !s.better(s.levels[i-1].price, level.price) {
				t.Fatalf("levels out of order: %d before %d", s.levels[i-1].price, level.price)
			}
			for e := level.queue.Front(); e != nil; e = e.Next() {
				o := e.Value.(*Order)
				queued++
				if seen[o.ID] {
					t.Fatalf("order %d appears twice in book", o.ID)
				}
				seen[o.ID] = true
				entry, ok := b.orders[o.ID]
				if !ok {
					t.Fatalf("queued order %d not in order index", o.ID)
				}
				if entry.level != level || entry.elem != e {
					t.Fatalf("order %d locator points elsewhere", o.ID)
				}
				if o.Remaining() <= 0 || o.Remaining() > o.Quantity {
					t.Fatalf("order %d has remaining %d of %d", o.ID, o.Remaining(), o.Quantity)
				}
			}
		}
		if len(s.byPrice) != len(s.levels) {
			t.Fatalf("price map size %d != levels %d", len(s.byPrice), len(s.levels))
		}
	}

	if queued != len(b.orders) {
		t.Fatalf("order index has %d entries, queues hold %d", len(b.orders), queued)
	}

	if bid, ask := b.bids.best(), b.asks.best(); bid != nil && ask != nil && bid.price >= ask.price {
		t.Fatalf("book left crossed: bid %d >= ask %d", bid.price, ask.price)
	}
}

func TestLimitOrderRestsInBook(t *testing.T) {
	book := New("SIM")

	trades := submit(t, book, GoodTillCancel, 1, Buy, 10000, 10)
	if len(trades) != 0 {
		t.Errorf("expected 0 trades, got %d", len(trades))
	}
	if book.Size() != 1 {
		t.Errorf("expected size 1, got %d", book.Size())
	}

	snap := book.Snapshot()
	if len(snap.Bids) != 1 || snap.Bids[0].Price != 10000 || snap.Bids[0].Quantity != 10 {
		t.Errorf("unexpected bid depth: %+v", snap.Bids)
	}
	checkInvariants(t, book)
}

func TestFullFillAtSamePrice(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Sell, 10000, 10)
	trades := submit(t, book, GoodTillCancel, 2, Buy, 10000, 10)

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Buy.OrderID != 2 || tr.Buy.Price != 10000 || tr.Buy.Quantity != 10 {
		t.Errorf("unexpected buy execution: %+v", tr.Buy)
	}
	if tr.Sell.OrderID != 1 || tr.Sell.Price != 10000 || tr.Sell.Quantity != 10 {
		t.Errorf("unexpected sell execution: %+v", tr.Sell)
	}
	if tr.ID == "" {
		t.Error("expected trade id to be set")
	}

	if book.Size() != 0 {
		t.Errorf("expected empty book, size %d", book.Size())
	}
	checkInvariants(t, book)
}

func TestPartialFillLeavesRemainder(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Sell, 10000, 4)
	trades := submit(t, book, GoodTillCancel, 2, Buy, 10000, 10)

	if len(trades) != 1 || trades[0].Buy.Quantity != 4 {
		t.Fatalf("expected one trade of 4, got %+v", trades)
	}

	// The ask is gone; 6 of the buy rests.
	snap := book.Snapshot()
	if len(snap.Asks) != 0 {
		t.Errorf("expected no asks, got %+v", snap.Asks)
	}
	if len(snap.Bids) != 1 || snap.Bids[0].Quantity != 6 {
		t.Errorf("expected bid remainder 6, got %+v", snap.Bids)
	}
	checkInvariants(t, book)
}

func TestPricePriority(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Sell, 10100, 10)
	submit(t, book, GoodTillCancel, 2, Sell, 10000, 10)

	trades := submit(t, book, GoodTillCancel, 3, Buy, 10100, 10)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Sell.OrderID != 2 || trades[0].Sell.Price != 10000 {
		t.Errorf("expected cheaper ask to fill first, got %+v", trades[0].Sell)
	}
	checkInvariants(t, book)
}

func TestTimePriorityWithinLevel(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Sell, 10000, 10)
	submit(t, book, GoodTillCancel, 2, Sell, 10000, 10)

	trades := submit(t, book, GoodTillCancel, 3, Buy, 10000, 10)
	if len(trades) != 1 || trades[0].Sell.OrderID != 1 {
		t.Fatalf("expected earlier order 1 to fill first, got %+v", trades)
	}

	// Order 2 still rests untouched.
	snap := book.Snapshot()
	if len(snap.Asks) != 1 || snap.Asks[0].Quantity != 10 {
		t.Errorf("expected order 2 still resting, got %+v", snap.Asks)
	}
	checkInvariants(t, book)
}

func TestCrossedPricesRecordOwnPrices(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Sell, 10000, 5)
	trades := submit(t, book, GoodTillCancel, 2, Buy, 10500, 5)

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Buy.Price != 10500 {
		t.Errorf("buy side should record its own price 10500, got %d", trades[0].Buy.Price)
	}
	if trades[0].Sell.Price != 10000 {
		t.Errorf("sell side should record its own price 10000, got %d", trades[0].Sell.Price)
	}
	checkInvariants(t, book)
}

func TestDuplicateIDIgnored(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Buy, 10000, 10)
	trades := submit(t, book, GoodTillCancel, 1, Sell, 10000, 10)

	if len(trades) != 0 {
		t.Errorf("duplicate id should be a no-op, got %d trades", len(trades))
	}
	if book.Size() != 1 {
		t.Errorf("expected size 1, got %d", book.Size())
	}
	checkInvariants(t, book)
}

func TestFillAndKillWithoutCrossDiscarded(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Sell, 10100, 10)

	// Buy below the best ask: no cross, order discarded outright.
	trades := submit(t, book, FillAndKill, 2, Buy, 10000, 10)
	if len(trades) != 0 {
		t.Errorf("expected no trades, got %d", len(trades))
	}
	if book.Size() != 1 {
		t.Errorf("expected size 1, got %d", book.Size())
	}
	checkInvariants(t, book)
}

func TestFillAndKillResidualDiscarded(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Buy, 10000, 6)
	trades := submit(t, book, FillAndKill, 2, Sell, 10000, 10)

	if len(trades) != 1 || trades[0].Buy.Quantity != 6 {
		t.Fatalf("expected one trade of 6, got %+v", trades)
	}

	// The 4 unfilled never rest.
	if book.Size() != 0 {
		t.Errorf("expected empty book, size %d", book.Size())
	}
	snap := book.Snapshot()
	if len(snap.Asks) != 0 {
		t.Errorf("FAK remainder must not rest, got %+v", snap.Asks)
	}
	checkInvariants(t, book)
}

func TestCancelIsIdempotent(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Buy, 10000, 10)

	book.Cancel(1)
	if book.Size() != 0 {
		t.Fatalf("expected empty book after cancel")
	}

	// Second cancel and cancel of a never-seen id are both no-ops.
	book.Cancel(1)
	book.Cancel(42)
	if book.Size() != 0 {
		t.Errorf("idempotent cancel changed the book")
	}
	checkInvariants(t, book)
}

func TestCancelPreservesQueueOrder(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Sell, 10000, 1)
	submit(t, book, GoodTillCancel, 2, Sell, 10000, 2)
	submit(t, book, GoodTillCancel, 3, Sell, 10000, 3)

	book.Cancel(2)
	checkInvariants(t, book)

	// 1 then 3 must fill in that order.
	trades := submit(t, book, GoodTillCancel, 4, Buy, 10000, 4)
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].Sell.OrderID != 1 || trades[1].Sell.OrderID != 3 {
		t.Errorf("queue order disturbed by cancel: %+v", trades)
	}
	checkInvariants(t, book)
}

func TestModifyLosesQueuePriority(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Sell, 10000, 10)
	submit(t, book, GoodTillCancel, 2, Sell, 10000, 10)

	// Re-price order 1 to its same price: it goes behind order 2.
	trades, err := book.Modify(1, Sell, 10000, 10)
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("expected no trades on modify, got %d", len(trades))
	}

	got := submit(t, book, GoodTillCancel, 3, Buy, 10000, 10)
	if len(got) != 1 || got[0].Sell.OrderID != 2 {
		t.Errorf("expected order 2 to fill first after modify, got %+v", got)
	}
	checkInvariants(t, book)
}

func TestModifyUnknownIDIsNoOp(t *testing.T) {
	book := New("SIM")

	trades, err := book.Modify(99, Buy, 10000, 10)
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if len(trades) != 0 || book.Size() != 0 {
		t.Errorf("modify of unknown id changed the book")
	}
}

func TestModifyCanFlipSide(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Buy, 10000, 10)
	submit(t, book, GoodTillCancel, 2, Buy, 9900, 5)

	// Flip order 1 to a sell that crosses the remaining bid.
	trades, err := book.Modify(1, Sell, 9900, 5)
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if len(trades) != 1 || trades[0].Buy.OrderID != 2 || trades[0].Sell.OrderID != 1 {
		t.Errorf("expected flipped order to trade against order 2, got %+v", trades)
	}
	checkInvariants(t, book)
}

func TestModifyRejectsInvalidInput(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Buy, 10000, 10)

	if _, err := book.Modify(1, Buy, 10000, 0); err != ErrInvalidQuantity {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := book.Modify(1, Buy, -5, 10); err != ErrInvalidPrice {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}

	// Rejected modifies leave the original untouched.
	if book.Size() != 1 {
		t.Errorf("rejected modify changed the book")
	}
	checkInvariants(t, book)
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	book := New("SIM")

	if _, err := book.Submit(nil); err != ErrNilOrder {
		t.Errorf("expected ErrNilOrder, got %v", err)
	}
	if _, err := NewOrder(GoodTillCancel, 1, Buy, 10000, 0); err != ErrInvalidQuantity {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := NewOrder(GoodTillCancel, 1, Buy, 10000, -3); err != ErrInvalidQuantity {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := NewOrder(GoodTillCancel, 1, Buy, 0, 10); err != ErrInvalidPrice {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
	if book.Size() != 0 {
		t.Errorf("invalid input reached the book")
	}
}

func TestFillPanicsOnOverfill(t *testing.T) {
	o := mustOrder(t, GoodTillCancel, 1, Buy, 10000, 5)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on overfill")
		}
	}()
	o.Fill(6)
}

func TestSnapshotAggregatesAndOrders(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Buy, 9900, 10)
	submit(t, book, GoodTillCancel, 2, Buy, 10000, 5)
	submit(t, book, GoodTillCancel, 3, Buy, 10000, 7)
	submit(t, book, GoodTillCancel, 4, Sell, 10100, 3)
	submit(t, book, GoodTillCancel, 5, Sell, 10200, 8)

	snap := book.Snapshot()

	if len(snap.Bids) != 2 || snap.Bids[0].Price != 10000 || snap.Bids[0].Quantity != 12 {
		t.Errorf("unexpected best bid level: %+v", snap.Bids)
	}
	if snap.Bids[1].Price != 9900 {
		t.Errorf("bids not best-first: %+v", snap.Bids)
	}
	if len(snap.Asks) != 2 || snap.Asks[0].Price != 10100 || snap.Asks[1].Price != 10200 {
		t.Errorf("asks not best-first: %+v", snap.Asks)
	}

	if book.BestBid() != 10000 || book.BestAsk() != 10100 || book.MidPrice() != 10050 {
		t.Errorf("best bid/ask/mid wrong: %d %d %d", book.BestBid(), book.BestAsk(), book.MidPrice())
	}
	checkInvariants(t, book)
}

func TestOnTradeCallback(t *testing.T) {
	book := New("SIM")

	var got []Trade
	book.OnTrade(func(tr Trade) { got = append(got, tr) })

	submit(t, book, GoodTillCancel, 1, Sell, 10000, 10)
	submit(t, book, GoodTillCancel, 2, Buy, 10000, 10)

	if len(got) != 1 || got[0].Sell.OrderID != 1 {
		t.Errorf("expected one callback trade, got %+v", got)
	}
}

func TestRecentTradesTape(t *testing.T) {
	book := New("SIM")

	submit(t, book, GoodTillCancel, 1, Sell, 10000, 30)
	submit(t, book, GoodTillCancel, 2, Buy, 10000, 10)
	submit(t, book, GoodTillCancel, 3, Buy, 10000, 10)
	submit(t, book, GoodTillCancel, 4, Buy, 10000, 10)

	trades := book.RecentTrades(2)
	if len(trades) != 2 {
		t.Fatalf("expected 2 recent trades, got %d", len(trades))
	}
	// Oldest first within the returned window.
	if trades[0].Buy.OrderID != 3 || trades[1].Buy.OrderID != 4 {
		t.Errorf("unexpected tape order: %+v", trades)
	}

	if got := book.RecentTrades(-1); len(got) != 0 {
		t.Errorf("negative window should return nothing, got %d trades", len(got))
	}
	if got := book.RecentTrades(100); len(got) != 3 {
		t.Errorf("oversized window should return the whole tape, got %d trades", len(got))
	}
}

// TestEndToEndScenario follows the full lifecycle: rest, partial fill,
// then a FillAndKill that consumes the remainder and discards its own.
func TestEndToEndScenario(t *testing.T) {
	book := New("SIM")

	trades := submit(t, book, GoodTillCancel, 1, Buy, 100, 10)
	if len(trades) != 0 {
		t.Fatalf("step 1: expected no trades")
	}
	snap := book.Snapshot()
	if len(snap.Bids) != 1 || snap.Bids[0].Quantity != 10 {
		t.Fatalf("step 1: depth wrong: %+v", snap.Bids)
	}

	trades = submit(t, book, GoodTillCancel, 2, Sell, 100, 4)
	if len(trades) != 1 || trades[0].Buy.OrderID != 1 || trades[0].Buy.Quantity != 4 {
		t.Fatalf("step 2: unexpected trades %+v", trades)
	}
	snap = book.Snapshot()
	if len(snap.Asks) != 0 || snap.Bids[0].Quantity != 6 {
		t.Fatalf("step 2: depth wrong: %+v", snap)
	}

	trades = submit(t, book, FillAndKill, 3, Sell, 100, 10)
	if len(trades) != 1 || trades[0].Buy.Quantity != 6 || trades[0].Sell.OrderID != 3 {
		t.Fatalf("step 3: unexpected trades %+v", trades)
	}
	snap = book.Snapshot()
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 || book.Size() != 0 {
		t.Fatalf("step 3: book should be empty: %+v", snap)
	}
	checkInvariants(t, book)
}

// TestInvariantsUnderRandomFlow hammers the book with a deterministic
// random mix of submits, cancels and modifies and re-checks every
// invariant after each operation.
func TestInvariantsUnderRandomFlow(t *testing.T) {
	book := New("SIM")
	rng := rand.New(rand.NewSource(7))

	var live []uint64
	nextID := uint64(1000)

	for i := 0; i < 2000; i++ {
		switch op := rng.Intn(10); {
		case op < 7: // submit
			orderType := GoodTillCancel
			if rng.Intn(4) == 0 {
				orderType = FillAndKill
			}
			side := Buy
			if rng.Intn(2) == 0 {
				side = Sell
			}
			id := nextID
			nextID++
			submit(t, book, orderType, id, side, int64(90+rng.Intn(21)), int64(1+rng.Intn(50)))
			live = append(live, id)
		case op < 9: // cancel
			if len(live) > 0 {
				book.Cancel(live[rng.Intn(len(live))])
			}
		default: // modify
			if len(live) > 0 {
				side := Buy
				if rng.Intn(2) == 0 {
					side = Sell
				}
				if _, err := book.Modify(live[rng.Intn(len(live))], side, int64(90+rng.Intn(21)), int64(1+rng.Intn(50))); err != nil {
					t.Fatalf("Modify: %v", err)
				}
			}
		}
		checkInvariants(t, book)
	}
}
