package trading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"ssiflow/config"
	"ssiflow/internal/model"
	"ssiflow/logger"
)

const (
	paperOrderPath       = "demo-trading/order"
	paperModifyOrderPath = "demo-trading/order/modify"
	paperCancelOrderPath = "demo-trading/order/cancel"
	paperBalancePath     = "demo-trading/der-account-balance"
	paperPositionPath    = "demo-trading/stock-derivative"
	paperMaxBuySellPath  = "demo-trading/max-buy-sell"
)

// paperResponse is the paper gateway envelope. Unlike the live gateway it
// signals success through a code string, not a message.
type paperResponse struct {
	Code string          `json:"code"`
	Data json.RawMessage `json:"data"`
}

func (r *paperResponse) success() bool {
	return strings.EqualFold(r.Code, "success")
}

// PaperSession trades against the simulated exchange. Authentication is a
// pre-issued bearer token; there is no consumer credential exchange.
type PaperSession struct {
	derived

	cfg     config.TradingServiceConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// NewPaperSession builds a session against the paper trading gateway.
func NewPaperSession(cfg config.TradingServiceConfig, trading config.TradingConfig) *PaperSession {
	s := &PaperSession{
		cfg:     cfg,
		client:  &http.Client{Timeout: trading.Timeout},
		limiter: rate.NewLimiter(rate.Limit(trading.RateLimit.RequestsPerSecond), trading.RateLimit.BurstSize),
		log:     logger.GetLogger(),
	}
	s.derived = derived{svc: s}
	return s
}

func (s *PaperSession) AccountID() string { return s.cfg.AccountID }

func (s *PaperSession) endpoint(path string) string {
	return strings.TrimSuffix(s.cfg.PaperURL, "/") + "/" + path
}

// call performs one rate-limited exchange against the paper gateway and maps
// its envelope onto the shared error taxonomy.
func (s *PaperSession) call(ctx context.Context, op, method, path string, query url.Values, body interface{}) (*paperResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	endpoint := s.endpoint(path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.AuthToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("%s returned status %d", path, resp.StatusCode)}
	}

	var out paperResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("decode %s response: %w", path, err)}
	}
	if !out.success() {
		return nil, &RejectedError{Op: op, Reason: out.Code}
	}
	return &out, nil
}

// paperOrderRow is the per-order record the paper gateway returns from order
// mutations and history queries.
type paperOrderRow struct {
	OrderID            string  `json:"orderID"`
	OrderStatus        string  `json:"orderStatus"`
	CurrentOrderStatus string  `json:"currentOrderStatus"`
	MarketID           string  `json:"marketID"`
	InstrumentID       string  `json:"instrumentID"`
	BuySell            string  `json:"buySell"`
	OrderType          string  `json:"orderType"`
	Price              float64 `json:"price"`
	AvgPrice           float64 `json:"avgPrice"`
	Quantity           int64   `json:"quantity"`
	OsQty              int64   `json:"osQty"`
	FilledQty          int64   `json:"filledQty"`
}

func firstOrderRow(data json.RawMessage) (*paperOrderRow, error) {
	var rows []paperOrderRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty order response")
	}
	return &rows[0], nil
}

// CreateOrder submits a new order to the simulated exchange. On success the
// order id and status from the gateway are stamped back onto the order.
func (s *PaperSession) CreateOrder(ctx context.Context, order *model.CreatedOrder) error {
	order.MarketID = s.cfg.Market
	order.AccountID = s.cfg.AccountID
	logger.IncrementOrderRequest(s.cfg.AccountID)

	body := map[string]interface{}{
		"instrumentID": order.Symbol,
		"account":      order.AccountID,
		"buySell":      order.OrderSide,
		"channelID":    orderChannelID,
		"marketID":     order.MarketID,
		"orderType":    order.OrderType,
		"price":        order.OrderPrice,
		"quantity":     order.OrderQty,
		"stopOrder":    order.StopOrder,
		"stopPrice":    order.StopPrice,
		"lossStep":     order.LossStep,
		"profitStep":   order.ProfitStep,
		"isAutoPrice":  false,
	}
	res, err := s.call(ctx, "create order", http.MethodPost, paperOrderPath, nil, body)
	if err != nil {
		return err
	}
	row, err := firstOrderRow(res.Data)
	if err != nil {
		return &TransportError{Op: "create order", Err: err}
	}
	order.OrderID = row.OrderID
	order.OrderStatus = row.OrderStatus
	return nil
}

// CancelOrder cancels a working order on the simulated exchange.
func (s *PaperSession) CancelOrder(ctx context.Context, order *model.CreatedOrder) error {
	order.MarketID = s.cfg.Market
	order.AccountID = s.cfg.AccountID
	logger.IncrementOrderRequest(s.cfg.AccountID)

	body := map[string]interface{}{
		"orderID":      order.OrderID,
		"marketID":     order.MarketID,
		"instrumentID": order.Symbol,
		"buySell":      order.OrderSide,
		"account":      order.AccountID,
	}
	_, err := s.call(ctx, "cancel order", http.MethodPost, paperCancelOrderPath, nil, body)
	return err
}

// ModifyOrder changes price or quantity of a working order. Non-zero values
// already on the order win over the new arguments.
func (s *PaperSession) ModifyOrder(ctx context.Context, order *model.CreatedOrder, newQty int64, newPrice float64) error {
	fillOrderBlanks(order, newQty, newPrice)
	order.MarketID = s.cfg.Market
	order.AccountID = s.cfg.AccountID
	logger.IncrementOrderRequest(s.cfg.AccountID)

	body := map[string]interface{}{
		"orderID":      order.OrderID,
		"account":      order.AccountID,
		"price":        order.OrderPrice,
		"quantity":     order.OrderQty,
		"marketID":     order.MarketID,
		"instrumentID": order.Symbol,
		"buySell":      order.OrderSide,
		"orderType":    order.OrderType,
	}
	res, err := s.call(ctx, "modify order", http.MethodPost, paperModifyOrderPath, nil, body)
	if err != nil {
		return err
	}
	if row, err := firstOrderRow(res.Data); err == nil {
		order.OrderStatus = row.OrderStatus
	}
	return nil
}

type paperBalancePayload struct {
	AccountBalance float64 `json:"accountBalance"`
	FloatingPL     float64 `json:"floatingPL"`
	TotalPL        float64 `json:"totalPL"`
	EE             float64 `json:"ee"`
	NAV            float64 `json:"nav"`
	Withdrawable   float64 `json:"withdrawable"`
	Fee            float64 `json:"fee"`
	ExtInterest    float64 `json:"extInterest"`
}

// AccountBalance reads the simulated cash state.
func (s *PaperSession) AccountBalance(ctx context.Context) (model.AccountBalance, error) {
	query := url.Values{"account": {s.cfg.AccountID}}
	res, err := s.call(ctx, "account balance", http.MethodGet, paperBalancePath, query, nil)
	if err != nil {
		return model.AccountBalance{}, err
	}
	var payload paperBalancePayload
	if err := json.Unmarshal(res.Data, &payload); err != nil {
		return model.AccountBalance{}, &TransportError{Op: "account balance", Err: err}
	}
	return model.AccountBalance{
		AccountID:    s.cfg.AccountID,
		MarketID:     s.cfg.Market,
		Balance:      payload.AccountBalance,
		TradingPL:    payload.TotalPL - payload.FloatingPL,
		FloatingPL:   payload.FloatingPL,
		TotalPL:      payload.TotalPL,
		EE:           payload.EE,
		NAV:          payload.NAV,
		Withdrawable: payload.Withdrawable,
		Fee:          payload.Fee,
		Interest:     payload.ExtInterest,
	}, nil
}

type paperPositionRow struct {
	InstrumentID string  `json:"instrumentID"`
	LongQty      int64   `json:"longQty"`
	ShortQty     int64   `json:"shortQty"`
	TradePrice   float64 `json:"tradePrice"`
	MarketPrice  float64 `json:"marketPrice"`
	FloatingPL   float64 `json:"floatingPL"`
	TradingPL    float64 `json:"tradingPL"`
}

type paperPositionsPayload struct {
	OpenPositions  []paperPositionRow `json:"openPositions"`
	ClosePositions []paperPositionRow `json:"closePositions"`
}

func (s *PaperSession) positions(ctx context.Context) (*paperPositionsPayload, error) {
	query := url.Values{"account": {s.cfg.AccountID}}
	res, err := s.call(ctx, "positions", http.MethodGet, paperPositionPath, query, nil)
	if err != nil {
		return nil, err
	}
	var payload paperPositionsPayload
	if err := json.Unmarshal(res.Data, &payload); err != nil {
		return nil, &TransportError{Op: "positions", Err: err}
	}
	return &payload, nil
}

func (s *PaperSession) positionMap(rows []paperPositionRow) map[string]model.StockPosition {
	out := make(map[string]model.StockPosition, len(rows))
	for _, row := range rows {
		out[row.InstrumentID] = model.StockPosition{
			Symbol:      row.InstrumentID,
			MarketID:    s.cfg.Market,
			AccountID:   s.cfg.AccountID,
			Position:    row.LongQty - row.ShortQty,
			TradingPL:   row.TradingPL,
			FloatingPL:  row.FloatingPL,
			MarketPrice: row.MarketPrice,
			AvgPrice:    row.TradePrice,
		}
	}
	return out
}

// CurrentPositions returns the open simulated positions keyed by symbol.
func (s *PaperSession) CurrentPositions(ctx context.Context) (map[string]model.StockPosition, error) {
	payload, err := s.positions(ctx)
	if err != nil {
		return nil, err
	}
	return s.positionMap(payload.OpenPositions), nil
}

// ClosedPositions returns the closed simulated positions keyed by symbol.
func (s *PaperSession) ClosedPositions(ctx context.Context) (map[string]model.StockPosition, error) {
	payload, err := s.positions(ctx)
	if err != nil {
		return nil, err
	}
	return s.positionMap(payload.ClosePositions), nil
}

type paperMaxQtyPayload struct {
	MaxBuyQty       int64   `json:"maxBuyQty"`
	MaxSellQty      int64   `json:"maxSellQty"`
	PurchasingPower float64 `json:"purchasingPower"`
}

// MaxBuySellQty reads the maximum simulated order size for symbol at price.
func (s *PaperSession) MaxBuySellQty(ctx context.Context, symbol string, price float64, side string) (model.MaxBuySellQty, error) {
	query := url.Values{
		"stockSymbol": {symbol},
		"account":     {s.cfg.AccountID},
		"price":       {strconv.FormatFloat(price, 'f', -1, 64)},
		"type":        {side},
	}
	res, err := s.call(ctx, "max buy sell qty", http.MethodGet, paperMaxBuySellPath, query, nil)
	if err != nil {
		return model.MaxBuySellQty{}, err
	}
	var payload paperMaxQtyPayload
	if err := json.Unmarshal(res.Data, &payload); err != nil {
		return model.MaxBuySellQty{}, &TransportError{Op: "max buy sell qty", Err: err}
	}
	maxQty := payload.MaxBuyQty
	if maxQty == 0 {
		maxQty = payload.MaxSellQty
	}
	return model.MaxBuySellQty{
		AccountID: s.cfg.AccountID,
		MarketID:  s.cfg.Market,
		Symbol:    symbol,
		MaxQty:    maxQty,
		Power:     payload.PurchasingPower,
	}, nil
}

type paperOrderHistoryPayload struct {
	OrderHistories []paperOrderRow `json:"orderHistories"`
}

// OrderHistory returns simulated orders in the date window. The gateway
// filters by status server side; grouping is applied again client side so
// both sessions behave identically.
func (s *PaperSession) OrderHistory(ctx context.Context, group model.OrderStatusGroup, startDate, endDate string, page, pageSize int) ([]model.CreatedOrder, error) {
	startDate, endDate = dateRange(startDate, endDate)
	query := url.Values{
		"account":     {s.cfg.AccountID},
		"page":        {strconv.Itoa(page)},
		"pageSize":    {strconv.Itoa(pageSize)},
		"orderStatus": {strings.Join(group, ",")},
		"startDate":   {startDate},
		"endDate":     {endDate},
	}
	res, err := s.call(ctx, "order history", http.MethodGet, paperOrderPath, query, nil)
	if err != nil {
		return nil, err
	}
	var payload paperOrderHistoryPayload
	if err := json.Unmarshal(res.Data, &payload); err != nil {
		return nil, &TransportError{Op: "order history", Err: err}
	}
	orders := make([]model.CreatedOrder, 0, len(payload.OrderHistories))
	for _, row := range payload.OrderHistories {
		orders = append(orders, model.CreatedOrder{
			Symbol:      row.InstrumentID,
			MarketID:    row.MarketID,
			AccountID:   s.cfg.AccountID,
			OrderSide:   row.BuySell,
			OrderType:   row.OrderType,
			OrderPrice:  row.Price,
			OrderQty:    row.Quantity,
			OrderID:     row.OrderID,
			OrderStatus: row.CurrentOrderStatus,
			AvgPrice:    row.AvgPrice,
			OsQty:       row.OsQty,
			FilledQty:   row.FilledQty,
		})
	}
	return filterByGroup(orders, group), nil
}
