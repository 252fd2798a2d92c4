package paper

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/cyclone/internal/domain"
	"github.com/assist-by/cyclone/internal/exchange"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// 변동성 0인 결정적 거래소: 중간가 100, 스프레드 1% -> 매수 99.50 / 매도 100.50
func newTestClient(t *testing.T, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		Balances: map[string]decimal.Decimal{
			"USD": d("1000"),
			"BTC": d("2"),
		},
		Markets: []MarketSpec{{
			ID:                "btcusd",
			BaseCurrency:      "BTC",
			CounterCurrency:   "USD",
			StartPrice:        d("100"),
			PricePrecision:    2,
			QuantityPrecision: 4,
		}},
		FeePercentage:    d("0.5"),
		SpreadPercentage: d("1"),
		Depth:            3,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	_, err = NewClient(Config{Markets: []MarketSpec{{ID: "x", StartPrice: decimal.Zero}}})
	assert.Error(t, err)

	_, err = NewClient(Config{Markets: []MarketSpec{
		{ID: "x", StartPrice: d("1")},
		{ID: "x", StartPrice: d("1")},
	}})
	assert.Error(t, err)
}

func TestGetMarketOrders_Sorted(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	book, err := c.GetMarketOrders(ctx, "btcusd")
	require.NoError(t, err)
	require.Len(t, book.Bids, 3)
	require.Len(t, book.Asks, 3)

	bid, _ := book.BestBid()
	ask, _ := book.BestAsk()
	assert.True(t, bid.Price.Equal(d("99.5")), "bid = %s", bid.Price)
	assert.True(t, ask.Price.Equal(d("100.5")), "ask = %s", ask.Price)

	for i := 1; i < len(book.Bids); i++ {
		assert.True(t, book.Bids[i-1].Price.GreaterThan(book.Bids[i].Price))
		assert.True(t, book.Asks[i-1].Price.LessThan(book.Asks[i].Price))
	}
	for _, o := range book.Bids {
		assert.True(t, o.Total.Equal(o.Price.Mul(o.Quantity)))
	}
}

func TestCreateOrder_RestingBuyHoldsFunds(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.CreateOrder(ctx, "btcusd", domain.Buy, d("1"), d("99"))
	require.NoError(t, err)

	orders, err := c.GetYourOpenOrders(ctx, "btcusd")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, id, orders[0].ID)
	assert.True(t, orders[0].Total.Equal(d("99")))

	info, err := c.GetBalanceInfo(ctx)
	require.NoError(t, err)
	// 99 * 1 * (1 + 0.005) = 99.495
	assert.True(t, info.Available["USD"].Equal(d("900.505")), "available = %s", info.Available["USD"])
	assert.True(t, info.OnHold["USD"].Equal(d("99.495")), "on hold = %s", info.OnHold["USD"])
}

func TestCreateOrder_MarketableBuyFills(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.CreateOrder(ctx, "btcusd", domain.Buy, d("1"), d("101"))
	require.NoError(t, err)

	orders, err := c.GetYourOpenOrders(ctx, "btcusd")
	require.NoError(t, err)
	assert.Empty(t, orders)

	info, err := c.GetBalanceInfo(ctx)
	require.NoError(t, err)
	assert.True(t, info.Available["BTC"].Equal(d("3")))
	assert.True(t, info.OnHold["USD"].IsZero())
}

func TestCreateOrder_MarketableSellFills(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.CreateOrder(ctx, "btcusd", domain.Sell, d("1"), d("99"))
	require.NoError(t, err)

	info, err := c.GetBalanceInfo(ctx)
	require.NoError(t, err)
	// 99 * 1 * (1 - 0.005) = 98.505
	assert.True(t, info.Available["USD"].Equal(d("1098.505")), "available = %s", info.Available["USD"])
	assert.True(t, info.Available["BTC"].Equal(d("1")))
}

func TestCreateOrder_Errors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		marketID string
		side     domain.OrderSide
		qty      string
		price    string
	}{
		{name: "잔고 부족", marketID: "btcusd", side: domain.Buy, qty: "100", price: "99"},
		{name: "알 수 없는 마켓", marketID: "ethusd", side: domain.Buy, qty: "1", price: "1"},
		{name: "잘못된 방향", marketID: "btcusd", side: domain.OrderSide("HOLD"), qty: "1", price: "1"},
		{name: "0 수량", marketID: "btcusd", side: domain.Sell, qty: "0", price: "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CreateOrder(ctx, tt.marketID, tt.side, d(tt.qty), d(tt.price))
			require.Error(t, err)
			assert.Equal(t, exchange.Fatal, exchange.KindOf(err))
		})
	}
}

func TestCreateOrder_RoundsHalfEven(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.CreateOrder(ctx, "btcusd", domain.Buy, d("0.00125"), d("50.125"))
	require.NoError(t, err)

	orders, err := c.GetYourOpenOrders(ctx, "btcusd")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Price.Equal(d("50.12")), "price = %s", orders[0].Price)
	assert.True(t, orders[0].Quantity.Equal(d("0.0012")), "qty = %s", orders[0].Quantity)
}

func TestCancelOrder(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.CreateOrder(ctx, "btcusd", domain.Sell, d("1"), d("120"))
	require.NoError(t, err)

	ok, err := c.CancelOrder(ctx, id, "btcusd")
	require.NoError(t, err)
	assert.True(t, ok)

	info, err := c.GetBalanceInfo(ctx)
	require.NoError(t, err)
	assert.True(t, info.Available["BTC"].Equal(d("2")))
	assert.True(t, info.OnHold["BTC"].IsZero())

	ok, err = c.CancelOrder(ctx, id, "btcusd")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetPercentageFee(t *testing.T) {
	c := newTestClient(t)

	fee, err := c.GetPercentageFee(context.Background(), "btcusd", domain.Buy)
	require.NoError(t, err)
	assert.True(t, fee.Equal(d("0.005")))
}

func TestMaintenance(t *testing.T) {
	tests := []struct {
		name      string
		keepAlive bool
		want      exchange.Kind
	}{
		{name: "keep alive", keepAlive: true, want: exchange.Transient},
		{name: "strict", keepAlive: false, want: exchange.Fatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(cfg *Config) {
				cfg.Policy.KeepAliveDuringMaintenance = tt.keepAlive
			})
			c.SetMaintenance(true)

			_, err := c.GetBalanceInfo(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, exchange.ErrUnderMaintenance)
			assert.Equal(t, tt.want, exchange.KindOf(err))

			c.SetMaintenance(false)
			_, err = c.GetBalanceInfo(context.Background())
			assert.NoError(t, err)
		})
	}
}

func TestFaultInjection(t *testing.T) {
	c := newTestClient(t, func(cfg *Config) {
		cfg.FaultRate = 1
		cfg.FaultStatusCodes = []int{503}
		cfg.Policy = exchange.DefaultNetworkPolicy()
	})

	_, err := c.GetLatestMarketPrice(context.Background(), "btcusd")
	require.Error(t, err)
	assert.True(t, exchange.IsTransient(err))
}

func TestCanceledContextIsTransient(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetMarketOrders(ctx, "btcusd")
	require.Error(t, err)
	assert.True(t, exchange.IsTransient(err))
}

func TestRandomWalkMovesPrice(t *testing.T) {
	c := newTestClient(t, func(cfg *Config) {
		cfg.Volatility = 0.01
		cfg.Seed = 42
	})
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		p, err := c.GetLatestMarketPrice(ctx, "btcusd")
		require.NoError(t, err)
		assert.True(t, p.IsPositive())
		seen[p.String()] = true
	}
	assert.Greater(t, len(seen), 1)
}
