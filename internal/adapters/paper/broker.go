// Package paper simula la ejecución de señales contra un saldo virtual.
//
// El broker llena cada señal al precio de la señal, cobra una comisión
// proporcional y mantiene el saldo en la moneda de cotización y las
// cantidades por mercado. Nunca toca el exchange.
package paper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/turtlebot/internal/domain"
)

// ErrInsufficientFunds se devuelve cuando un BUY no cabe en el saldo virtual.
var ErrInsufficientFunds = errors.New("paper: insufficient funds")

// ErrInsufficientHoldings se devuelve cuando un SELL supera la cantidad en cartera.
var ErrInsufficientHoldings = errors.New("paper: insufficient holdings")

// Broker implementa ports.OrderExecutor y ports.Account.
// Es seguro para uso concurrente: el trader evalúa varios mercados a la vez.
type Broker struct {
	mu       sync.Mutex
	quote    string
	cash     decimal.Decimal
	feeRate  decimal.Decimal
	holdings map[string]int64 // market → cantidad
	now      func() time.Time
}

// NewBroker crea un broker con initialCash en quote (p.ej. "KRW").
// feeRate es la comisión por operación como fracción (0.0004 = 0.04%).
func NewBroker(quote string, initialCash, feeRate float64) (*Broker, error) {
	if strings.TrimSpace(quote) == "" {
		return nil, fmt.Errorf("paper.NewBroker: %w", domain.Invalid("quote", "must not be empty"))
	}
	if !(initialCash >= 0) {
		return nil, fmt.Errorf("paper.NewBroker: %w", domain.Invalid("initial_cash", "must be >= 0, got %v", initialCash))
	}
	if !(feeRate >= 0) || feeRate >= 1 {
		return nil, fmt.Errorf("paper.NewBroker: %w", domain.Invalid("fee_rate", "must be in [0, 1), got %v", feeRate))
	}
	return &Broker{
		quote:    strings.ToUpper(quote),
		cash:     decimal.NewFromFloat(initialCash),
		feeRate:  decimal.NewFromFloat(feeRate),
		holdings: make(map[string]int64),
		now:      time.Now,
	}, nil
}

// Seed carga una campaña abierta restaurada del journal: la cantidad pasa a
// cartera y su coste sale del saldo, como si se hubiera comprado en esta sesión.
func (b *Broker) Seed(market string, units []domain.PositionUnit) error {
	if err := b.checkMarket(market); err != nil {
		return fmt.Errorf("paper.Seed: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, u := range units {
		cost := decimal.NewFromFloat(u.Price).Mul(decimal.NewFromInt(u.Quantity))
		b.cash = b.cash.Sub(cost)
		b.holdings[market] += u.Quantity
	}
	return nil
}

// Balance implementa ports.Account.
// Para la moneda de cotización devuelve el saldo; para cualquier otra, la
// cantidad en cartera sumada sobre los mercados QUOTE-currency.
func (b *Broker) Balance(_ context.Context, currency string) (float64, error) {
	currency = strings.ToUpper(currency)

	b.mu.Lock()
	defer b.mu.Unlock()

	if currency == b.quote {
		return b.cash.InexactFloat64(), nil
	}
	return float64(b.holdings[b.quote+"-"+currency]), nil
}

// Holding devuelve la cantidad en cartera de market.
func (b *Broker) Holding(market string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.holdings[market]
}

// Execute implementa ports.OrderExecutor. El fill se hace al precio de la señal.
func (b *Broker) Execute(_ context.Context, market string, sig domain.TradeSignal) (domain.Fill, error) {
	if !sig.IsTrade() {
		return domain.Fill{}, fmt.Errorf("paper.Execute: %w", domain.Violation("%s signal is not executable", sig.Action))
	}
	if err := b.checkMarket(market); err != nil {
		return domain.Fill{}, fmt.Errorf("paper.Execute: %w", err)
	}
	if sig.Quantity <= 0 || !(sig.Price > 0) {
		return domain.Fill{}, fmt.Errorf("paper.Execute: %w",
			domain.Invalid("signal", "price %v quantity %d", sig.Price, sig.Quantity))
	}

	notional := decimal.NewFromFloat(sig.Price).Mul(decimal.NewFromInt(sig.Quantity))
	fee := notional.Mul(b.feeRate)

	b.mu.Lock()
	defer b.mu.Unlock()

	switch sig.Action {
	case domain.ActionBuy:
		total := notional.Add(fee)
		if total.GreaterThan(b.cash) {
			return domain.Fill{}, fmt.Errorf("paper.Execute: %s buy %d: need %s %s, have %s: %w",
				market, sig.Quantity, total.StringFixed(2), b.quote, b.cash.StringFixed(2), ErrInsufficientFunds)
		}
		b.cash = b.cash.Sub(total)
		b.holdings[market] += sig.Quantity
	case domain.ActionSell:
		if held := b.holdings[market]; sig.Quantity > held {
			return domain.Fill{}, fmt.Errorf("paper.Execute: %s sell %d, hold %d: %w",
				market, sig.Quantity, held, ErrInsufficientHoldings)
		}
		b.cash = b.cash.Add(notional.Sub(fee))
		b.holdings[market] -= sig.Quantity
		if b.holdings[market] == 0 {
			delete(b.holdings, market)
		}
	}

	return domain.Fill{
		ID:         uuid.NewString(),
		Market:     market,
		Action:     sig.Action,
		Price:      sig.Price,
		Quantity:   sig.Quantity,
		Fee:        fee.InexactFloat64(),
		ExecutedAt: b.now().UTC(),
	}, nil
}

// checkMarket valida que market sea QUOTE-BASE con la moneda de cotización del broker.
func (b *Broker) checkMarket(market string) error {
	quote, base, ok := strings.Cut(market, "-")
	if !ok || base == "" {
		return domain.Invalid("market", "want QUOTE-BASE, got %q", market)
	}
	if !strings.EqualFold(quote, b.quote) {
		return domain.Invalid("market", "%s is not quoted in %s", market, b.quote)
	}
	return nil
}
