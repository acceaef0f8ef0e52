package router

import (
	"context"
	"fmt"
	"sync"

	"ssiflow/internal/model"
	"ssiflow/logger"
	"ssiflow/marketdata"
	"ssiflow/store"
	"ssiflow/stream"
	"ssiflow/trading"
)

// ServiceUnavailableError means no service is registered under the requested
// key, which is either a channel id or an account id.
type ServiceUnavailableError struct {
	Key string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("no service registered for %q", e.Key)
}

// DataStream is the channel-agnostic lifecycle surface of a stream adapter.
type DataStream interface {
	Channel() model.ChannelID
	Start(ctx context.Context) error
	Stop()
	State() stream.State
	Fatal() <-chan error
}

// TradingStream is the lifecycle surface of one account's order notification
// stream.
type TradingStream interface {
	AccountID() string
	Start(ctx context.Context) error
	Stop()
	State() stream.State
	Fatal() <-chan error
}

// Services routes reads and order operations to the registered stream
// adapters, trading sessions and the historical data service. Registration is
// last writer wins; there is no default account.
type Services struct {
	mu             sync.RWMutex
	streams        map[model.ChannelID]DataStream
	tradingStreams map[string]TradingStream
	sessions       map[string]trading.Service
	data           *marketdata.Service
	log            *logger.Log
}

func NewServices() *Services {
	return &Services{
		streams:        make(map[model.ChannelID]DataStream),
		tradingStreams: make(map[string]TradingStream),
		sessions:       make(map[string]trading.Service),
		log:            logger.GetLogger(),
	}
}

// AddDataStream registers a stream adapter under its channel, replacing any
// previous registration for that channel.
func (s *Services) AddDataStream(ds DataStream) {
	s.mu.Lock()
	_, replaced := s.streams[ds.Channel()]
	s.streams[ds.Channel()] = ds
	s.mu.Unlock()
	if replaced {
		s.log.WithComponent("router").WithFields(logger.Fields{
			"channel": string(ds.Channel()),
		}).Warn("replacing previously registered data stream")
	}
}

// AddTradingStream registers an order notification stream under its account
// id, replacing any previous registration for that account.
func (s *Services) AddTradingStream(ts TradingStream) {
	s.mu.Lock()
	_, replaced := s.tradingStreams[ts.AccountID()]
	s.tradingStreams[ts.AccountID()] = ts
	s.mu.Unlock()
	if replaced {
		s.log.WithComponent("router").WithFields(logger.Fields{
			"account": ts.AccountID(),
		}).Warn("replacing previously registered trading stream")
	}
}

// AddTradingService registers a trading session under its account id,
// replacing any previous registration for that account.
func (s *Services) AddTradingService(svc trading.Service) {
	s.mu.Lock()
	_, replaced := s.sessions[svc.AccountID()]
	s.sessions[svc.AccountID()] = svc
	s.mu.Unlock()
	if replaced {
		s.log.WithComponent("router").WithFields(logger.Fields{
			"account": svc.AccountID(),
		}).Warn("replacing previously registered trading service")
	}
}

// AddDataService registers the historical market data service.
func (s *Services) AddDataService(svc *marketdata.Service) {
	s.mu.Lock()
	s.data = svc
	s.mu.Unlock()
}

// StartDataStreams starts every registered adapter. Adapters that fail to
// start leave the rest running; the first error is returned after all have
// been attempted. Terminal failures after startup surface on each adapter's
// Fatal channel.
func (s *Services) StartDataStreams(ctx context.Context) error {
	s.mu.RLock()
	streams := make([]DataStream, 0, len(s.streams))
	for _, ds := range s.streams {
		streams = append(streams, ds)
	}
	s.mu.RUnlock()

	var firstErr error
	for _, ds := range streams {
		if err := ds.Start(ctx); err != nil {
			s.log.WithComponent("router").WithFields(logger.Fields{
				"channel": string(ds.Channel()),
			}).WithError(err).Error("failed to start data stream")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// StopDataStreams stops every registered adapter and waits for their workers
// to drain.
func (s *Services) StopDataStreams() {
	s.mu.RLock()
	streams := make([]DataStream, 0, len(s.streams))
	for _, ds := range s.streams {
		streams = append(streams, ds)
	}
	s.mu.RUnlock()
	for _, ds := range streams {
		ds.Stop()
	}
}

// DataStreams returns the registered adapters, for supervision of their Fatal
// channels.
func (s *Services) DataStreams() []DataStream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DataStream, 0, len(s.streams))
	for _, ds := range s.streams {
		out = append(out, ds)
	}
	return out
}

// StartTradingStreams starts every registered notification stream. A stream
// that fails to start leaves the rest running; the first error is returned
// after all have been attempted.
func (s *Services) StartTradingStreams(ctx context.Context) error {
	s.mu.RLock()
	streams := make([]TradingStream, 0, len(s.tradingStreams))
	for _, ts := range s.tradingStreams {
		streams = append(streams, ts)
	}
	s.mu.RUnlock()

	var firstErr error
	for _, ts := range streams {
		if err := ts.Start(ctx); err != nil {
			s.log.WithComponent("router").WithFields(logger.Fields{
				"account": ts.AccountID(),
			}).WithError(err).Error("failed to start trading stream")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// StopTradingStreams stops every registered notification stream and waits
// for their read loops to drain.
func (s *Services) StopTradingStreams() {
	s.mu.RLock()
	streams := make([]TradingStream, 0, len(s.tradingStreams))
	for _, ts := range s.tradingStreams {
		streams = append(streams, ts)
	}
	s.mu.RUnlock()
	for _, ts := range streams {
		ts.Stop()
	}
}

// TradingStreams returns the registered notification streams, for
// supervision of their Fatal channels.
func (s *Services) TradingStreams() []TradingStream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TradingStream, 0, len(s.tradingStreams))
	for _, ts := range s.tradingStreams {
		out = append(out, ts)
	}
	return out
}

// storeFor resolves the snapshot store of one channel. Unknown channels and
// channels registered with a different event shape are both unavailable.
func storeFor[T store.Observation](s *Services, ch model.ChannelID) (*store.Store[T], error) {
	s.mu.RLock()
	ds, ok := s.streams[ch]
	s.mu.RUnlock()
	if !ok {
		return nil, &ServiceUnavailableError{Key: string(ch)}
	}
	adapter, ok := ds.(*stream.Adapter[T])
	if !ok {
		return nil, &ServiceUnavailableError{Key: string(ch)}
	}
	return adapter.Store(), nil
}

// CurrentMarket returns the latest market snapshot for symbol. A symbol the
// channel never registered yields the zero snapshot.
func (s *Services) CurrentMarket(symbol string) (model.CurrentMarket, error) {
	st, err := storeFor[model.CurrentMarket](s, model.ChannelMarket)
	if err != nil {
		return model.CurrentMarket{}, err
	}
	return st.Current(symbol), nil
}

// MarketHistory returns the accepted market ticks for symbol in acceptance
// order.
func (s *Services) MarketHistory(symbol string) ([]model.CurrentMarket, error) {
	st, err := storeFor[model.CurrentMarket](s, model.ChannelMarket)
	if err != nil {
		return nil, err
	}
	return st.History(symbol), nil
}

// CurrentBar returns the latest bar snapshot for symbol.
func (s *Services) CurrentBar(symbol string) (model.CurrentBar, error) {
	st, err := storeFor[model.CurrentBar](s, model.ChannelBar)
	if err != nil {
		return model.CurrentBar{}, err
	}
	return st.Current(symbol), nil
}

// BarHistory returns the accepted bars for symbol in acceptance order.
func (s *Services) BarHistory(symbol string) ([]model.CurrentBar, error) {
	st, err := storeFor[model.CurrentBar](s, model.ChannelBar)
	if err != nil {
		return nil, err
	}
	return st.History(symbol), nil
}

// CurrentIndex returns the latest index snapshot for name.
func (s *Services) CurrentIndex(name string) (model.CurrentIndex, error) {
	st, err := storeFor[model.CurrentIndex](s, model.ChannelIndex)
	if err != nil {
		return model.CurrentIndex{}, err
	}
	return st.Current(name), nil
}

// IndexHistory returns the accepted index values for name in acceptance
// order.
func (s *Services) IndexHistory(name string) ([]model.CurrentIndex, error) {
	st, err := storeFor[model.CurrentIndex](s, model.ChannelIndex)
	if err != nil {
		return nil, err
	}
	return st.History(name), nil
}

// CurrentForeignRoom returns the latest foreign room snapshot for symbol.
func (s *Services) CurrentForeignRoom(symbol string) (model.CurrentForeignRoom, error) {
	st, err := storeFor[model.CurrentForeignRoom](s, model.ChannelForeignRoom)
	if err != nil {
		return model.CurrentForeignRoom{}, err
	}
	return st.Current(symbol), nil
}

// ForeignRoomHistory returns the accepted foreign room updates for symbol in
// acceptance order.
func (s *Services) ForeignRoomHistory(symbol string) ([]model.CurrentForeignRoom, error) {
	st, err := storeFor[model.CurrentForeignRoom](s, model.ChannelForeignRoom)
	if err != nil {
		return nil, err
	}
	return st.History(symbol), nil
}

func (s *Services) session(accountID string) (trading.Service, error) {
	s.mu.RLock()
	svc, ok := s.sessions[accountID]
	s.mu.RUnlock()
	if !ok {
		return nil, &ServiceUnavailableError{Key: accountID}
	}
	return svc, nil
}

// CreateOrder routes an order to the session owning its account id.
func (s *Services) CreateOrder(ctx context.Context, order *model.CreatedOrder) error {
	svc, err := s.session(order.AccountID)
	if err != nil {
		return err
	}
	return svc.CreateOrder(ctx, order)
}

// CancelOrder routes a cancel to the session owning the order's account id.
func (s *Services) CancelOrder(ctx context.Context, order *model.CreatedOrder) error {
	svc, err := s.session(order.AccountID)
	if err != nil {
		return err
	}
	return svc.CancelOrder(ctx, order)
}

// ModifyOrder routes a modify to the session owning the order's account id.
func (s *Services) ModifyOrder(ctx context.Context, order *model.CreatedOrder, newQty int64, newPrice float64) error {
	svc, err := s.session(order.AccountID)
	if err != nil {
		return err
	}
	return svc.ModifyOrder(ctx, order, newQty, newPrice)
}

// AccountBalance reads the balance of one registered account.
func (s *Services) AccountBalance(ctx context.Context, accountID string) (model.AccountBalance, error) {
	svc, err := s.session(accountID)
	if err != nil {
		return model.AccountBalance{}, err
	}
	return svc.AccountBalance(ctx)
}

// MaxBuySellQty reads the maximum order size for one registered account.
func (s *Services) MaxBuySellQty(ctx context.Context, accountID, symbol string, price float64, side string) (model.MaxBuySellQty, error) {
	svc, err := s.session(accountID)
	if err != nil {
		return model.MaxBuySellQty{}, err
	}
	return svc.MaxBuySellQty(ctx, symbol, price, side)
}

// CurrentPositions reads the open positions of one registered account.
func (s *Services) CurrentPositions(ctx context.Context, accountID string) (map[string]model.StockPosition, error) {
	svc, err := s.session(accountID)
	if err != nil {
		return nil, err
	}
	return svc.CurrentPositions(ctx)
}

// ClosedPositions reads the closed positions of one registered account.
func (s *Services) ClosedPositions(ctx context.Context, accountID string) (map[string]model.StockPosition, error) {
	svc, err := s.session(accountID)
	if err != nil {
		return nil, err
	}
	return svc.ClosedPositions(ctx)
}

// CurrentPosition reads the open position for one symbol on one account.
func (s *Services) CurrentPosition(ctx context.Context, accountID, symbol string) (model.StockPosition, error) {
	svc, err := s.session(accountID)
	if err != nil {
		return model.StockPosition{}, err
	}
	return svc.CurrentPosition(ctx, symbol)
}

// ClosedPosition reads the closed position for one symbol on one account.
func (s *Services) ClosedPosition(ctx context.Context, accountID, symbol string) (model.StockPosition, error) {
	svc, err := s.session(accountID)
	if err != nil {
		return model.StockPosition{}, err
	}
	return svc.ClosedPosition(ctx, symbol)
}

// OrderHistory reads the order history of one registered account.
func (s *Services) OrderHistory(ctx context.Context, accountID string, group model.OrderStatusGroup, startDate, endDate string, page, pageSize int) ([]model.CreatedOrder, error) {
	svc, err := s.session(accountID)
	if err != nil {
		return nil, err
	}
	return svc.OrderHistory(ctx, group, startDate, endDate, page, pageSize)
}

// PendingOrders reads the working orders of one registered account.
func (s *Services) PendingOrders(ctx context.Context, accountID string) ([]model.CreatedOrder, error) {
	svc, err := s.session(accountID)
	if err != nil {
		return nil, err
	}
	return svc.PendingOrders(ctx)
}

// FilledOrders reads the filled orders of one registered account.
func (s *Services) FilledOrders(ctx context.Context, accountID string) ([]model.CreatedOrder, error) {
	svc, err := s.session(accountID)
	if err != nil {
		return nil, err
	}
	return svc.FilledOrders(ctx)
}

// ViewPortfolio reads the open positions of one registered account sorted by
// symbol ascending.
func (s *Services) ViewPortfolio(ctx context.Context, accountID string) ([]model.StockPosition, error) {
	svc, err := s.session(accountID)
	if err != nil {
		return nil, err
	}
	return svc.ViewPortfolio(ctx)
}

func (s *Services) dataService() (*marketdata.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, &ServiceUnavailableError{Key: "market data"}
	}
	return s.data, nil
}

// DailyOHLCV delegates to the historical data service.
func (s *Services) DailyOHLCV(ctx context.Context, symbol, startDate, endDate string, pageIndex, pageSize int, ascending bool) ([]model.OHLCV, error) {
	svc, err := s.dataService()
	if err != nil {
		return nil, err
	}
	return svc.DailyOHLCV(ctx, symbol, startDate, endDate, pageIndex, pageSize, ascending)
}

// IntradayOHLCV delegates to the historical data service.
func (s *Services) IntradayOHLCV(ctx context.Context, symbol, startDate, endDate string, pageIndex, pageSize, resolution int, ascending bool) ([]model.OHLCV, error) {
	svc, err := s.dataService()
	if err != nil {
		return nil, err
	}
	return svc.IntradayOHLCV(ctx, symbol, startDate, endDate, pageIndex, pageSize, resolution, ascending)
}

// DailyIndex delegates to the historical data service.
func (s *Services) DailyIndex(ctx context.Context, indexID, startDate, endDate string, pageIndex, pageSize int, ascending bool) ([]model.DailyIndex, error) {
	svc, err := s.dataService()
	if err != nil {
		return nil, err
	}
	return svc.DailyIndex(ctx, indexID, startDate, endDate, pageIndex, pageSize, ascending)
}

// StockPrice delegates to the historical data service.
func (s *Services) StockPrice(ctx context.Context, symbol, startDate, endDate string, pageIndex, pageSize int) ([]model.StockPrice, error) {
	svc, err := s.dataService()
	if err != nil {
		return nil, err
	}
	return svc.StockPrice(ctx, symbol, startDate, endDate, pageIndex, pageSize)
}

// ListIndexNames delegates to the historical data service.
func (s *Services) ListIndexNames(ctx context.Context, exchange string, pageIndex, pageSize int) ([]string, error) {
	svc, err := s.dataService()
	if err != nil {
		return nil, err
	}
	return svc.ListIndexNames(ctx, exchange, pageIndex, pageSize)
}

// ListIndexComponents delegates to the historical data service.
func (s *Services) ListIndexComponents(ctx context.Context, indexID string, pageIndex, pageSize int) ([]string, error) {
	svc, err := s.dataService()
	if err != nil {
		return nil, err
	}
	return svc.ListIndexComponents(ctx, indexID, pageIndex, pageSize)
}
