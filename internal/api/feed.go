package api

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// feed fans depth and trade frames out to WebSocket subscribers. Every
// frame is fire-and-forget market data: a subscriber whose buffer is full
// misses the frame and catches up on the next snapshot broadcast, so one
// slow consumer never stalls the book.
type feed struct {
	mu      sync.RWMutex
	stopped bool
	subs    map[*subscriber]struct{}
}

// subscriber is one WebSocket consumer. Frames flow conn-ward through out;
// the feed owns the channel and is the only closer.
type subscriber struct {
	conn *websocket.Conn
	out  chan []byte
}

const subscriberBuffer = 64

func newFeed() *feed {
	return &feed{subs: make(map[*subscriber]struct{})}
}

// attach admits a new subscriber. It reports false once the feed has
// stopped, in which case the caller must close the connection itself.
func (f *feed) attach(conn *websocket.Conn) (*subscriber, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return nil, false
	}
	sub := &subscriber{conn: conn, out: make(chan []byte, subscriberBuffer)}
	f.subs[sub] = struct{}{}
	return sub, true
}

func (f *feed) detach(sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[sub]; ok {
		delete(f.subs, sub)
		close(sub.out)
	}
}

// send queues a frame for a single subscriber. Holding the lock while
// checking membership guarantees out is still open.
func (f *feed) send(sub *subscriber, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if _, ok := f.subs[sub]; !ok {
		return
	}
	select {
	case sub.out <- data:
	default:
	}
}

// broadcast queues a frame for every subscriber.
func (f *feed) broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subs {
		select {
		case sub.out <- data:
		default:
		}
	}
}

// stop detaches every subscriber and refuses new ones.
func (f *feed) stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	for sub := range f.subs {
		delete(f.subs, sub)
		close(sub.out)
	}
}

// writeLoop drains out onto the connection until the feed closes the
// channel or the write fails.
func (sub *subscriber) writeLoop(f *feed) {
	defer func() {
		f.detach(sub)
		sub.conn.Close()
	}()

	for frame := range sub.out {
		if err := sub.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

// readLoop discards inbound messages until the peer disconnects. The feed
// is one-way; reading only serves to notice the close.
func (sub *subscriber) readLoop(f *feed) {
	defer func() {
		f.detach(sub)
		sub.conn.Close()
	}()

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}
