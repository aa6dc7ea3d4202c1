package display

import (
	"fmt"
	"io"

	"marketsim/internal/orderbook"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiGreen  = "\033[32m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiClear  = "\033[2J\033[1;1H"
)

// Printer renders depth snapshots as a two-column terminal table, bids in
// green and asks in red. It only ever reads snapshots; it never touches
// the book.
type Printer struct {
	w     io.Writer
	rows  int
	color bool
	clear bool
}

// NewPrinter renders at most rows levels per side. Color and screen
// clearing are on by default; disable for log-friendly output.
func NewPrinter(w io.Writer, rows int) *Printer {
	return &Printer{w: w, rows: rows, color: true, clear: true}
}

func (p *Printer) SetColor(on bool) { p.color = on }
func (p *Printer) SetClear(on bool) { p.clear = on }

// Render writes the snapshot's top levels. Rendering stops at the
// configured row count even when the book is deeper.
func (p *Printer) Render(snap orderbook.BookSnapshot) {
	if p.clear {
		fmt.Fprint(p.w, ansiClear)
	}

	p.frame("┌─────────────┬─────────────┐\n")
	fmt.Fprintf(p.w, "%s│  %sBIDS (BUY)%s │ %sASKS (SELL)%s │%s\n",
		p.tint(ansiYellow), p.tint(ansiBold), p.tint(ansiReset+ansiYellow),
		p.tint(ansiBold), p.tint(ansiReset+ansiYellow), p.tint(ansiReset))
	p.frame("├──────┬──────┼──────┬──────┤\n")

	for i := 0; i < p.rows; i++ {
		bid := p.cell(snap.Bids, i, ansiGreen)
		ask := p.cell(snap.Asks, i, ansiRed)
		fmt.Fprintf(p.w, "│%s│%s│\n", bid, ask)
	}

	p.frame("└──────┴──────┴──────┴──────┘\n")
}

func (p *Printer) cell(levels []orderbook.LevelSnapshot, i int, color string) string {
	if i >= len(levels) {
		return "      │      "
	}
	l := levels[i]
	return fmt.Sprintf("%s%6d%s│%s%6d%s",
		p.tint(color), l.Price, p.tint(ansiReset),
		p.tint(color), l.Quantity, p.tint(ansiReset))
}

func (p *Printer) frame(s string) {
	fmt.Fprintf(p.w, "%s%s%s", p.tint(ansiYellow), s, p.tint(ansiReset))
}

func (p *Printer) tint(code string) string {
	if !p.color {
		return ""
	}
	return code
}

// Summary writes a plain final-state listing, one level per line.
func (p *Printer) Summary(snap orderbook.BookSnapshot) {
	fmt.Fprintf(p.w, "Final book state for %s:\n", snap.Symbol)
	fmt.Fprintln(p.w, "Bids:")
	for _, l := range snap.Bids {
		fmt.Fprintf(p.w, "  price=%d quantity=%d\n", l.Price, l.Quantity)
	}
	fmt.Fprintln(p.w, "Asks:")
	for _, l := range snap.Asks {
		fmt.Fprintf(p.w, "  price=%d quantity=%d\n", l.Price, l.Quantity)
	}
}
