package sim

import (
	"math/rand"
	"sync"
	"time"

	"marketsim/internal/orderbook"
)

// keep at most this many ids around for cancel/modify picks
const liveIDWindow = 512

// Config controls the shape of the random order flow.
type Config struct {
	Interval time.Duration // time between operations

	MinPrice int64
	MaxPrice int64
	MinQty   int64
	MaxQty   int64

	FillAndKillPct float64 // chance a submitted order is FillAndKill
	CancelPct      float64 // chance an operation is a cancel
	ModifyPct      float64 // chance an operation is a modify

	MaxOrders int   // stop after this many operations, 0 = run until stopped
	Seed      int64 // 0 = seed from wall clock
}

// DefaultConfig mirrors the classic demo flow: uniform prices and sizes,
// half the orders FillAndKill, a trickle of cancels and modifies.
func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Millisecond,
		MinPrice:       1,
		MaxPrice:       1000,
		MinQty:         1,
		MaxQty:         1000,
		FillAndKillPct: 0.5,
		CancelPct:      0.05,
		ModifyPct:      0.05,
	}
}

// Driver issues a random stream of submits, cancels and modifies against
// a book, standing in for real order flow. It is the only component that
// draws order ids.
type Driver struct {
	mu sync.Mutex

	book *orderbook.Book
	ids  *IDSequence
	cfg  Config
	rng  *rand.Rand

	live   []uint64 // recently placed ids, candidates for cancel/modify
	placed int

	onOrder []func(*orderbook.Order)

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewDriver(book *orderbook.Book, ids *IDSequence, cfg Config) *Driver {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Driver{
		book:   book,
		ids:    ids,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// OnOrder registers a callback invoked for every order the driver submits,
// before the book processes it. Register before Start.
func (d *Driver) OnOrder(fn func(*orderbook.Order)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onOrder = append(d.onOrder, fn)
}

// Start launches the drive loop.
func (d *Driver) Start() {
	go d.loop()
}

// Stop halts the drive loop. Safe to call more than once.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// Done is closed when the loop exits, either by Stop or by reaching
// MaxOrders.
func (d *Driver) Done() <-chan struct{} {
	return d.doneCh
}

func (d *Driver) loop() {
	defer close(d.doneCh)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.Step()
			if d.cfg.MaxOrders > 0 && d.Placed() >= d.cfg.MaxOrders {
				return
			}
		case <-d.stopCh:
			return
		}
	}
}

// Step performs one random operation. Exposed so tests and batch runs can
// drive the book without the ticker.
func (d *Driver) Step() {
	d.mu.Lock()
	defer d.mu.Unlock()

	roll := d.rng.Float64()
	switch {
	case roll < d.cfg.CancelPct && len(d.live) > 0:
		d.book.Cancel(d.pickLive())
	case roll < d.cfg.CancelPct+d.cfg.ModifyPct && len(d.live) > 0:
		// Re-price and re-size a previous order; the book keeps its
		// policy and treats it as a fresh arrival.
		d.book.Modify(d.pickLive(), d.randomSide(), d.randomPrice(), d.randomQty())
	default:
		d.submitRandom()
	}
	d.placed++
}

// Placed returns the number of operations performed so far.
func (d *Driver) Placed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.placed
}

func (d *Driver) submitRandom() {
	orderType := orderbook.GoodTillCancel
	if d.rng.Float64() < d.cfg.FillAndKillPct {
		orderType = orderbook.FillAndKill
	}

	order, err := orderbook.NewOrder(orderType, d.ids.Next(), d.randomSide(), d.randomPrice(), d.randomQty())
	if err != nil {
		// Prices and quantities are drawn from positive ranges; a bad
		// order here is a driver bug.
		panic(err)
	}

	for _, fn := range d.onOrder {
		fn(order)
	}

	d.book.Submit(order)

	d.live = append(d.live, order.ID)
	if len(d.live) > liveIDWindow {
		d.live = d.live[len(d.live)-liveIDWindow:]
	}
}

func (d *Driver) pickLive() uint64 {
	return d.live[d.rng.Intn(len(d.live))]
}

func (d *Driver) randomSide() orderbook.Side {
	if d.rng.Intn(2) == 0 {
		return orderbook.Buy
	}
	return orderbook.Sell
}

func (d *Driver) randomPrice() int64 {
	return d.cfg.MinPrice + d.rng.Int63n(d.cfg.MaxPrice-d.cfg.MinPrice+1)
}

func (d *Driver) randomQty() int64 {
	return d.cfg.MinQty + d.rng.Int63n(d.cfg.MaxQty-d.cfg.MinQty+1)
}
