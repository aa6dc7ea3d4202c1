package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"marketsim/internal/journal"
	"marketsim/internal/orderbook"
)

// Server exposes the book's depth snapshot and trade tape as read-only
// JSON, plus a WebSocket feed. Orders never enter through here; the
// simulation driver is the only writer.
type Server struct {
	book        *orderbook.Book
	journal     *journal.Journal // optional
	feed        *feed
	upgrader    websocket.Upgrader
	corsOrigins []string
}

// NewServer wires a server around a book. journal may be nil, in which
// case /api/stats reports live book numbers only.
func NewServer(book *orderbook.Book, j *journal.Journal) *Server {
	s := &Server{
		book:    book,
		journal: j,
		feed:    newFeed(),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.checkCORSOrigin(r.Header.Get("Origin"))
		},
	}
	return s
}

// SetCORSOrigins restricts cross-origin access. Empty means allow all
// (development mode).
func (s *Server) SetCORSOrigins(origins []string) {
	s.corsOrigins = origins
}

func (s *Server) checkCORSOrigin(origin string) bool {
	if len(s.corsOrigins) == 0 {
		return true
	}
	if origin == "" {
		return true
	}
	for _, allowed := range s.corsOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	allowedOrigins := s.corsOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/book", s.getBook)
		r.Get("/trades", s.getTrades)
		r.Get("/stats", s.getStats)
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	snap := s.book.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

func (s *Server) getTrades(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	limit := 50
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	trades := s.book.RecentTrades(limit)
	if trades == nil {
		trades = []orderbook.Trade{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// StatsResponse combines live book state with journal aggregates.
type StatsResponse struct {
	Symbol     string `json:"symbol"`
	LiveOrders int    `json:"live_orders"`
	BestBid    int64  `json:"best_bid"`
	BestAsk    int64  `json:"best_ask"`
	Trades     int64  `json:"trades"`
	Volume     int64  `json:"volume"`
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Symbol:     s.book.Symbol,
		LiveOrders: s.book.Size(),
		BestBid:    s.book.BestBid(),
		BestAsk:    s.book.BestAsk(),
	}

	if s.journal != nil {
		stats, err := s.journal.Stats()
		if err != nil {
			log.Printf("journal stats: %v", err)
			http.Error(w, "stats unavailable", http.StatusInternalServerError)
			return
		}
		resp.Trades = stats.Trades
		resp.Volume = stats.Volume
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sub, ok := s.feed.attach(conn)
	if !ok {
		// Feed already stopped; the peer sees an immediate close.
		conn.Close()
		return
	}

	// Seed the subscriber with current depth so it renders without
	// waiting for the next broadcast.
	s.feed.send(sub, map[string]interface{}{
		"type": "book",
		"book": s.book.Snapshot(),
	})

	go sub.writeLoop(s.feed)
	go sub.readLoop(s.feed)
}

// HandleTrade pushes a trade to all WebSocket subscribers.
func (s *Server) HandleTrade(trade orderbook.Trade) {
	s.feed.broadcast(map[string]interface{}{
		"type":  "trade",
		"trade": trade,
	})
}

// BroadcastBook pushes the current depth snapshot to all subscribers.
func (s *Server) BroadcastBook() {
	s.feed.broadcast(map[string]interface{}{
		"type": "book",
		"book": s.book.Snapshot(),
	})
}

// Shutdown disconnects all WebSocket subscribers.
func (s *Server) Shutdown() {
	s.feed.stop()
}
