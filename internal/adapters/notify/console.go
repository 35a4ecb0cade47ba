package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/turtlebot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
	now   func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
// table=true imprime una tabla por ciclo; false, una línea compacta.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table, now: time.Now}
}

// Notify imprime el resultado del ciclo en el modo configurado.
func (c *Console) Notify(_ context.Context, reports []domain.CycleReport) error {
	if len(reports) == 0 {
		fmt.Fprintf(c.out, "[%s] no markets evaluated\n", c.now().Format("15:04:05"))
		return nil
	}

	if c.table {
		c.printFull(reports)
	} else {
		c.printCompact(reports)
	}
	return nil
}

// printCompact imprime lo esencial en una línea; solo detalla los trades y errores.
func (c *Console) printCompact(reports []domain.CycleReport) {
	buys, sells, holds, errs := countByAction(reports)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d mkts → BUY:%d SELL:%d HOLD:%d err:%d",
		c.now().Format("15:04:05"), len(reports), buys, sells, holds, errs)

	for _, r := range reports {
		switch {
		case r.Err != nil:
			fmt.Fprintf(&sb, " | %s ERR %s", r.Market, truncate(r.Err.Error(), 60))
		case r.Signal.IsTrade():
			fmt.Fprintf(&sb, " | %s %s %d@%s units:%d",
				r.Market, r.Signal.Label(), r.Signal.Quantity, formatPrice(r.Signal.Price), r.Units)
		}
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime la tabla del ciclo con el motivo de cada decisión.
func (c *Console) printFull(reports []domain.CycleReport) {
	buys, sells, holds, errs := countByAction(reports)
	fmt.Fprintf(c.out, "\n[%s] %d markets: BUY:%d SELL:%d HOLD:%d err:%d\n",
		c.now().Format("15:04:05"), len(reports), buys, sells, holds, errs)

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Signal", "Price", "Qty", "N", "Units", "Unit%", "Capital", "Reason")

	for _, r := range reports {
		if r.Err != nil {
			table.Append(r.Market, "ERROR", "-", "-", "-", "-", "-", "-", truncate(r.Err.Error(), 60))
			continue
		}
		qty := "-"
		if r.Signal.IsTrade() {
			qty = fmt.Sprintf("%d", r.Signal.Quantity)
		}
		table.Append(
			r.Market,
			r.Signal.Label(),
			formatPrice(r.Signal.Price),
			qty,
			formatPrice(r.Signal.N),
			fmt.Sprintf("%d", r.Units),
			fmt.Sprintf("%.2f%%", r.UnitPercent),
			formatPrice(r.Capital),
			truncate(r.Signal.Reason, 60),
		)
	}
	table.Render()

	fmt.Fprintln(c.out, "  N = volatilidad (ATR de Wilder) | Units = unidades abiertas tras el ciclo")
	fmt.Fprintln(c.out, "  Unit% = % del capital por unidad (se reduce tras pérdidas)")
}

// PrintHistory imprime las señales del journal, de la más antigua a la más reciente.
func (c *Console) PrintHistory(records []domain.SignalRecord) {
	if len(records) == 0 {
		fmt.Fprintln(c.out, "\n  No signals recorded in the selected range.")
		return
	}

	fmt.Fprintf(c.out, "\n=== SIGNAL HISTORY (%d) ===\n", len(records))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Date", "Market", "Signal", "System", "Price", "Qty", "Fill", "Fee", "P&L%")

	var sells, wins int
	for i, rec := range records {
		s := rec.Signal
		fill, fee := "-", "-"
		if rec.Fill != nil {
			fill = formatPrice(rec.Fill.Price)
			fee = formatPrice(rec.Fill.Fee)
		}
		pnl := "-"
		if s.Action == domain.ActionSell {
			sells++
			if s.ProfitRate > 0 {
				wins++
			}
			pnl = fmt.Sprintf("%+.2f%%", s.ProfitRate)
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			rec.Market,
			s.Label(),
			s.System.String(),
			formatPrice(s.Price),
			fmt.Sprintf("%d", s.Quantity),
			fill,
			fee,
			pnl,
		)
	}
	table.Render()

	if sells > 0 {
		fmt.Fprintf(c.out, "  Closed campaigns: %d | profitable: %d (%.0f%%)\n",
			sells, wins, float64(wins)/float64(sells)*100)
	}
	fmt.Fprintln(c.out)
}

// --- helpers ---

func countByAction(reports []domain.CycleReport) (buys, sells, holds, errs int) {
	for _, r := range reports {
		if r.Err != nil {
			errs++
			continue
		}
		switch r.Signal.Action {
		case domain.ActionBuy:
			buys++
		case domain.ActionSell:
			sells++
		default:
			holds++
		}
	}
	return
}

// formatPrice usa decimales solo cuando el precio los necesita:
// KRW-BTC cotiza en decenas de millones, las altcoins en fracciones.
func formatPrice(v float64) string {
	switch {
	case v >= 1000:
		return fmt.Sprintf("%.0f", v)
	case v >= 1:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%.6f", v)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
