package router

import (
	"context"
	"errors"
	"sort"
	"testing"

	"ssiflow/config"
	"ssiflow/internal/channel"
	"ssiflow/internal/model"
	"ssiflow/store"
	"ssiflow/stream"
	"ssiflow/trading"
)

// fakeSession records order routing without touching a gateway.
type fakeSession struct {
	account   string
	created   []model.CreatedOrder
	cancelled []string
	positions map[string]model.StockPosition
	orders    []model.CreatedOrder
}

func (f *fakeSession) AccountID() string { return f.account }

func (f *fakeSession) CreateOrder(ctx context.Context, order *model.CreatedOrder) error {
	order.OrderID = "created-by-" + f.account
	f.created = append(f.created, *order)
	return nil
}

func (f *fakeSession) CancelOrder(ctx context.Context, order *model.CreatedOrder) error {
	f.cancelled = append(f.cancelled, order.OrderID)
	return nil
}

func (f *fakeSession) ModifyOrder(ctx context.Context, order *model.CreatedOrder, newQty int64, newPrice float64) error {
	return nil
}

func (f *fakeSession) AccountBalance(ctx context.Context) (model.AccountBalance, error) {
	return model.AccountBalance{AccountID: f.account, Balance: 1000}, nil
}

func (f *fakeSession) MaxBuySellQty(ctx context.Context, symbol string, price float64, side string) (model.MaxBuySellQty, error) {
	return model.MaxBuySellQty{AccountID: f.account, Symbol: symbol}, nil
}

func (f *fakeSession) CurrentPositions(ctx context.Context) (map[string]model.StockPosition, error) {
	return f.positions, nil
}

func (f *fakeSession) ClosedPositions(ctx context.Context) (map[string]model.StockPosition, error) {
	return nil, nil
}

func (f *fakeSession) CurrentPosition(ctx context.Context, symbol string) (model.StockPosition, error) {
	return f.positions[symbol], nil
}

func (f *fakeSession) ClosedPosition(ctx context.Context, symbol string) (model.StockPosition, error) {
	return model.StockPosition{}, nil
}

func (f *fakeSession) OrderHistory(ctx context.Context, group model.OrderStatusGroup, startDate, endDate string, page, pageSize int) ([]model.CreatedOrder, error) {
	return f.orders, nil
}

func (f *fakeSession) PendingOrders(ctx context.Context) ([]model.CreatedOrder, error) {
	return f.orders, nil
}

func (f *fakeSession) FilledOrders(ctx context.Context) ([]model.CreatedOrder, error) {
	return f.orders, nil
}

func (f *fakeSession) ViewPortfolio(ctx context.Context) ([]model.StockPosition, error) {
	symbols := make([]string, 0, len(f.positions))
	for s := range f.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	out := make([]model.StockPosition, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, f.positions[s])
	}
	return out, nil
}

var _ trading.Service = (*fakeSession)(nil)

func newMarketStream(t *testing.T, symbols []string) *stream.Adapter[model.CurrentMarket] {
	t.Helper()
	chans := channel.NewChannels(4)
	t.Cleanup(chans.Close)
	a, err := stream.NewMarketAdapter(config.DataServiceConfig{}, symbols, chans, store.NewMetrics())
	if err != nil {
		t.Fatalf("NewMarketAdapter: %v", err)
	}
	return a
}

func TestCreateOrderUnknownAccount(t *testing.T) {
	s := NewServices()
	s.AddTradingService(&fakeSession{account: "0901358"})

	err := s.CreateOrder(context.Background(), &model.CreatedOrder{AccountID: "9999999"})
	var unavailable *ServiceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want *ServiceUnavailableError", err)
	}
	if unavailable.Key != "9999999" {
		t.Fatalf("key = %q", unavailable.Key)
	}
}

func TestCreateOrderRoutesByAccount(t *testing.T) {
	s := NewServices()
	first := &fakeSession{account: "0901358"}
	second := &fakeSession{account: "0901359"}
	s.AddTradingService(first)
	s.AddTradingService(second)

	order := &model.CreatedOrder{AccountID: "0901359", Symbol: "VN30F2407"}
	if err := s.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if len(first.created) != 0 || len(second.created) != 1 {
		t.Fatalf("routing wrong: first=%d second=%d", len(first.created), len(second.created))
	}
	if order.OrderID != "created-by-0901359" {
		t.Fatalf("order id = %q", order.OrderID)
	}
}

func TestAddTradingServiceLastWriterWins(t *testing.T) {
	s := NewServices()
	old := &fakeSession{account: "0901358"}
	replacement := &fakeSession{account: "0901358"}
	s.AddTradingService(old)
	s.AddTradingService(replacement)

	if err := s.CreateOrder(context.Background(), &model.CreatedOrder{AccountID: "0901358"}); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if len(old.created) != 0 || len(replacement.created) != 1 {
		t.Fatal("order went to the replaced session")
	}
}

func TestViewPortfolioSortedThroughRouter(t *testing.T) {
	s := NewServices()
	s.AddTradingService(&fakeSession{
		account: "0901358",
		positions: map[string]model.StockPosition{
			"VCB": {Symbol: "VCB"},
			"ACB": {Symbol: "ACB"},
			"FPT": {Symbol: "FPT"},
		},
	})

	portfolio, err := s.ViewPortfolio(context.Background(), "0901358")
	if err != nil {
		t.Fatalf("ViewPortfolio: %v", err)
	}
	want := []string{"ACB", "FPT", "VCB"}
	for i, symbol := range want {
		if portfolio[i].Symbol != symbol {
			t.Fatalf("portfolio[%d] = %s, want %s", i, portfolio[i].Symbol, symbol)
		}
	}
}

func TestCurrentMarketUnknownChannel(t *testing.T) {
	s := NewServices()

	_, err := s.CurrentMarket("HPG")
	var unavailable *ServiceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want *ServiceUnavailableError", err)
	}
	if unavailable.Key != string(model.ChannelMarket) {
		t.Fatalf("key = %q", unavailable.Key)
	}
}

func TestCurrentMarketZeroSnapshotForUnknownKey(t *testing.T) {
	s := NewServices()
	adapter := newMarketStream(t, []string{"HPG"})
	s.AddDataStream(adapter)

	// registered channel, key never subscribed: zero snapshot, no error
	snapshot, err := s.CurrentMarket("SSI")
	if err != nil {
		t.Fatalf("CurrentMarket: %v", err)
	}
	if snapshot != (model.CurrentMarket{}) {
		t.Fatalf("snapshot = %+v, want zero", snapshot)
	}
}

func TestCurrentMarketAndHistoryThroughRouter(t *testing.T) {
	s := NewServices()
	adapter := newMarketStream(t, []string{"HPG"})
	s.AddDataStream(adapter)

	adapter.Store().Submit(model.CurrentMarket{Symbol: "HPG", CurrentVolume: 100, TotalVolume: 1000})
	adapter.Store().Submit(model.CurrentMarket{Symbol: "HPG", CurrentVolume: 100, TotalVolume: 1000}) // redelivery
	adapter.Store().Submit(model.CurrentMarket{Symbol: "HPG", CurrentVolume: 50, TotalVolume: 1500})

	snapshot, err := s.CurrentMarket("HPG")
	if err != nil {
		t.Fatalf("CurrentMarket: %v", err)
	}
	if snapshot.TotalVolume != 1500 {
		t.Fatalf("total volume = %v", snapshot.TotalVolume)
	}
	history, err := s.MarketHistory("HPG")
	if err != nil {
		t.Fatalf("MarketHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
}

func TestAddDataStreamLastWriterWins(t *testing.T) {
	s := NewServices()
	old := newMarketStream(t, []string{"HPG"})
	replacement := newMarketStream(t, []string{"SSI"})
	s.AddDataStream(old)
	s.AddDataStream(replacement)

	if len(s.DataStreams()) != 1 {
		t.Fatalf("streams = %d, want 1", len(s.DataStreams()))
	}
	replacement.Store().Submit(model.CurrentMarket{Symbol: "SSI", CurrentVolume: 1, TotalVolume: 10})
	snapshot, err := s.CurrentMarket("SSI")
	if err != nil {
		t.Fatalf("CurrentMarket: %v", err)
	}
	if snapshot.TotalVolume != 10 {
		t.Fatal("reads still hit the replaced stream")
	}
}

func TestHistoricalDataUnavailable(t *testing.T) {
	s := NewServices()
	_, err := s.DailyOHLCV(context.Background(), "SSI", "", "", 1, 10, false)
	var unavailable *ServiceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want *ServiceUnavailableError", err)
	}
}

func TestAccountBalanceRoutes(t *testing.T) {
	s := NewServices()
	s.AddTradingService(&fakeSession{account: "0901358"})

	balance, err := s.AccountBalance(context.Background(), "0901358")
	if err != nil {
		t.Fatalf("AccountBalance: %v", err)
	}
	if balance.Balance != 1000 {
		t.Fatalf("balance = %v", balance.Balance)
	}

	if _, err := s.AccountBalance(context.Background(), "unknown"); err == nil {
		t.Fatal("unknown account should be unavailable")
	}
}

// fakeTradingStream records lifecycle calls without a hub connection.
type fakeTradingStream struct {
	account  string
	startErr error
	started  int
	stopped  int
	fatal    chan error
}

func (f *fakeTradingStream) AccountID() string { return f.account }

func (f *fakeTradingStream) Start(ctx context.Context) error {
	f.started++
	return f.startErr
}

func (f *fakeTradingStream) Stop() { f.stopped++ }

func (f *fakeTradingStream) State() stream.State { return stream.StateActive }

func (f *fakeTradingStream) Fatal() <-chan error { return f.fatal }

var _ TradingStream = (*fakeTradingStream)(nil)

func TestStartStopTradingStreams(t *testing.T) {
	s := NewServices()
	first := &fakeTradingStream{account: "0901358"}
	second := &fakeTradingStream{account: "0901359"}
	s.AddTradingStream(first)
	s.AddTradingStream(second)

	if err := s.StartTradingStreams(context.Background()); err != nil {
		t.Fatalf("StartTradingStreams: %v", err)
	}
	if first.started != 1 || second.started != 1 {
		t.Fatalf("starts = %d, %d, want 1 each", first.started, second.started)
	}

	s.StopTradingStreams()
	if first.stopped != 1 || second.stopped != 1 {
		t.Fatalf("stops = %d, %d, want 1 each", first.stopped, second.stopped)
	}
	if got := len(s.TradingStreams()); got != 2 {
		t.Fatalf("registered trading streams = %d, want 2", got)
	}
}

func TestStartTradingStreamsKeepsGoingOnError(t *testing.T) {
	s := NewServices()
	startErr := errors.New("dial failed")
	broken := &fakeTradingStream{account: "0901358", startErr: startErr}
	healthy := &fakeTradingStream{account: "0901359"}
	s.AddTradingStream(broken)
	s.AddTradingStream(healthy)

	if err := s.StartTradingStreams(context.Background()); !errors.Is(err, startErr) {
		t.Fatalf("err = %v, want first start error", err)
	}
	if healthy.started != 1 {
		t.Fatal("healthy stream must still be started")
	}
}

func TestAddTradingStreamLastWriterWins(t *testing.T) {
	s := NewServices()
	old := &fakeTradingStream{account: "0901358"}
	replacement := &fakeTradingStream{account: "0901358"}
	s.AddTradingStream(old)
	s.AddTradingStream(replacement)

	if err := s.StartTradingStreams(context.Background()); err != nil {
		t.Fatalf("StartTradingStreams: %v", err)
	}
	if old.started != 0 || replacement.started != 1 {
		t.Fatalf("starts = %d, %d, replacement must win", old.started, replacement.started)
	}
}
