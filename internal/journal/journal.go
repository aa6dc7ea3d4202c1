package journal

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"marketsim/internal/orderbook"
)

// Journal is an append-only SQLite record of executed trades. It stores
// results, never book state: a restarted process begins with an empty
// book and a journal of everything that traded before.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal at path and initializes the schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	j := &Journal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		buy_order_id INTEGER NOT NULL,
		buy_price INTEGER NOT NULL,   -- in cents
		sell_order_id INTEGER NOT NULL,
		sell_price INTEGER NOT NULL,  -- in cents
		quantity INTEGER NOT NULL,
		executed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_executed ON trades(executed_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record appends one trade.
func (j *Journal) Record(trade orderbook.Trade) error {
	_, err := j.db.Exec(`
		INSERT INTO trades (id, buy_order_id, buy_price, sell_order_id, sell_price, quantity, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, trade.ID, trade.Buy.OrderID, trade.Buy.Price,
		trade.Sell.OrderID, trade.Sell.Price, trade.Buy.Quantity, trade.Timestamp)
	return err
}

// RecordAll appends a batch of trades in one transaction.
func (j *Journal) RecordAll(trades []orderbook.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, trade := range trades {
		_, err := tx.Exec(`
			INSERT INTO trades (id, buy_order_id, buy_price, sell_order_id, sell_price, quantity, executed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, trade.ID, trade.Buy.OrderID, trade.Buy.Price,
			trade.Sell.OrderID, trade.Sell.Price, trade.Buy.Quantity, trade.Timestamp)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Recent returns up to limit most recent trades, oldest first.
func (j *Journal) Recent(limit int) ([]orderbook.Trade, error) {
	rows, err := j.db.Query(`
		SELECT id, buy_order_id, buy_price, sell_order_id, sell_price, quantity, executed_at
		FROM trades
		ORDER BY rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []orderbook.Trade
	for rows.Next() {
		var t orderbook.Trade
		var quantity int64
		if err := rows.Scan(
			&t.ID, &t.Buy.OrderID, &t.Buy.Price,
			&t.Sell.OrderID, &t.Sell.Price, &quantity, &t.Timestamp,
		); err != nil {
			return nil, err
		}
		t.Buy.Quantity = quantity
		t.Sell.Quantity = quantity
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, jj := 0, len(trades)-1; i < jj; i, jj = i+1, jj-1 {
		trades[i], trades[jj] = trades[jj], trades[i]
	}
	return trades, nil
}

// Stats summarizes the journal.
type Stats struct {
	Trades int64 `json:"trades"`
	Volume int64 `json:"volume"`
}

// Stats returns the trade count and total executed quantity.
func (j *Journal) Stats() (Stats, error) {
	var s Stats
	err := j.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(quantity), 0) FROM trades
	`).Scan(&s.Trades, &s.Volume)
	return s, err
}
