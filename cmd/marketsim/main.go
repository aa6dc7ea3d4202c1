package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketsim/internal/api"
	"marketsim/internal/display"
	"marketsim/internal/journal"
	"marketsim/internal/orderbook"
	"marketsim/internal/sim"
)

func main() {
	port := flag.String("port", "8088", "market data server port")
	dbPath := flag.String("db", "marketsim.db", "SQLite trade journal path")
	symbol := flag.String("symbol", "SIM", "instrument symbol")
	orders := flag.Int("orders", 5000, "number of operations to simulate (0 = run until interrupted)")
	interval := flag.Duration("interval", 5*time.Millisecond, "delay between simulated operations")
	seed := flag.Int64("seed", 0, "RNG seed (0 = derive from clock)")
	depth := flag.Int("depth", 6, "depth rows in the terminal view")
	render := flag.Bool("render", true, "render the live book to the terminal")
	corsOrigins := flag.String("cors", "", "comma-separated allowed CORS origins (empty = allow all for dev)")
	flag.Parse()

	jnl, err := journal.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open trade journal: %v", err)
	}

	book := orderbook.New(*symbol)
	server := api.NewServer(book, jnl)

	if *corsOrigins != "" {
		origins := strings.Split(*corsOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		server.SetCORSOrigins(origins)
		log.Printf("CORS restricted to: %v", origins)
	}

	// Every executed trade goes to the journal and out over the feed.
	book.OnTrade(func(trade orderbook.Trade) {
		if err := jnl.Record(trade); err != nil {
			log.Printf("Failed to journal trade %s: %v", trade.ID, err)
		}
		server.HandleTrade(trade)
		if !*render {
			log.Printf("Trade executed: buy_id=%d sell_id=%d price=%d quantity=%d",
				trade.Buy.OrderID, trade.Sell.OrderID, trade.Buy.Price, trade.Buy.Quantity)
		}
	})

	cfg := sim.DefaultConfig()
	cfg.Interval = *interval
	cfg.Seed = *seed
	cfg.MaxOrders = *orders

	driver := sim.NewDriver(book, sim.NewIDSequence(1000), cfg)
	if !*render {
		driver.OnOrder(func(o *orderbook.Order) {
			log.Printf("Order placed: id=%d type=%s side=%s price=%d quantity=%d",
				o.ID, o.Type, o.Side, o.Price, o.Quantity)
		})
	}

	// Terminal view repaints on a fixed cadence, independent of order flow.
	printer := display.NewPrinter(os.Stdout, *depth)
	renderStop := make(chan struct{})
	if *render {
		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					printer.Render(book.Snapshot())
					server.BroadcastBook()
				case <-renderStop:
					return
				}
			}
		}()
	}

	httpServer := &http.Server{
		Addr:    ":" + *port,
		Handler: server.Router(),
	}
	go func() {
		log.Printf("Market data server on http://localhost:%s", *port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	driver.Start()
	log.Printf("Simulating %s: orders=%d interval=%s", *symbol, *orders, *interval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("Interrupted, shutting down...")
		driver.Stop()
		<-driver.Done()
	case <-driver.Done():
		log.Printf("Simulation complete: %d operations", driver.Placed())
	}

	close(renderStop)

	// Final state, plain output after the live view stops.
	printer.Summary(book.Snapshot())
	if stats, err := jnl.Stats(); err == nil {
		log.Printf("Journal: %d trades, %d total volume", stats.Trades, stats.Volume)
	}

	server.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if err := jnl.Close(); err != nil {
		log.Printf("Journal close error: %v", err)
	}
	log.Println("Shutdown complete")
}
