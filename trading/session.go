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
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"ssiflow/config"
	"ssiflow/internal/model"
	"ssiflow/logger"
)

const (
	tokenPath          = "api/v2/Trading/AccessToken"
	newOrderPath       = "api/v2/Trading/derNewOrder"
	modifyOrderPath    = "api/v2/Trading/derModifyOrder"
	cancelOrderPath    = "api/v2/Trading/derCancelOrder"
	accountBalancePath = "api/v2/Trading/stockAccountBalance"
	orderHistoryPath   = "api/v2/Trading/orderHistory"
	positionPath       = "api/v2/Trading/derivativePosition"
	maxBuyQtyPath      = "api/v2/Trading/maxBuyQty"
	maxSellQtyPath     = "api/v2/Trading/maxSellQty"

	orderChannelID = "IW"
)

// fcResponse is the gateway envelope common to every trading endpoint.
type fcResponse struct {
	Message string          `json:"message"`
	Status  int             `json:"status"`
	Data    json.RawMessage `json:"data"`
}

func (r *fcResponse) success() bool {
	return strings.EqualFold(r.Message, "success")
}

// Session is a live trading session against the gateway REST API for one
// (account, market) pair. Safe for concurrent use; all requests share one
// rate limiter and one cached access token.
type Session struct {
	derived

	cfg      config.TradingServiceConfig
	client   *http.Client
	limiter  *rate.Limiter
	log      *logger.Log
	deviceID string

	tokenMu sync.Mutex
	token   string
}

// NewSession builds a live session. The timeout bounds every round trip; the
// limiter smooths request bursts across all operations of the session.
func NewSession(cfg config.TradingServiceConfig, trading config.TradingConfig) *Session {
	s := &Session{
		cfg:      cfg,
		client:   &http.Client{Timeout: trading.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(trading.RateLimit.RequestsPerSecond), trading.RateLimit.BurstSize),
		log:      logger.GetLogger(),
		deviceID: uuid.NewString(),
	}
	s.derived = derived{svc: s}
	return s
}

func (s *Session) AccountID() string { return s.cfg.AccountID }

func (s *Session) endpoint(path string) string {
	return strings.TrimSuffix(s.cfg.URL, "/") + "/" + path
}

// accessToken lazily authenticates against the gateway and caches the result
// for the lifetime of the session.
func (s *Session) accessToken(ctx context.Context) (string, error) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	if s.token != "" {
		return s.token, nil
	}

	body := map[string]interface{}{
		"consumerID":     s.cfg.ConsumerID,
		"consumerSecret": s.cfg.ConsumerSecret,
		"twoFactorType":  s.cfg.TwoFAType,
		"code":           "",
		"isSave":         false,
	}
	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	res, err := s.roundTrip(ctx, http.MethodPost, tokenPath, nil, body, "")
	if err != nil {
		return "", &TransportError{Op: "access token", Err: err}
	}
	if !res.success() {
		return "", &RejectedError{Op: "access token", Reason: res.Message}
	}
	if err := json.Unmarshal(res.Data, &payload); err != nil {
		return "", &TransportError{Op: "access token", Err: err}
	}
	s.token = payload.AccessToken
	return s.token, nil
}

// roundTrip performs one rate-limited HTTP exchange and decodes the standard
// envelope. bearer may be empty for the token endpoint itself.
func (s *Session) roundTrip(ctx context.Context, method, path string, query url.Values, body interface{}, bearer string) (*fcResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
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
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	var out fcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	return &out, nil
}

// call wraps roundTrip with token acquisition and the error taxonomy shared
// by every authenticated operation.
func (s *Session) call(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) error {
	token, err := s.accessToken(ctx)
	if err != nil {
		return err
	}
	res, err := s.roundTrip(ctx, method, path, query, body, token)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if !res.success() {
		return &RejectedError{Op: op, Reason: res.Message}
	}
	if out != nil && len(res.Data) > 0 {
		if err := json.Unmarshal(res.Data, out); err != nil {
			return &TransportError{Op: op, Err: err}
		}
	}
	return nil
}

type orderRequest struct {
	Account      string  `json:"account"`
	RequestID    string  `json:"requestID"`
	InstrumentID string  `json:"instrumentID"`
	Market       string  `json:"market,omitempty"`
	MarketID     string  `json:"marketID,omitempty"`
	BuySell      string  `json:"buySell"`
	OrderType    string  `json:"orderType,omitempty"`
	OrderID      string  `json:"orderID,omitempty"`
	Price        float64 `json:"price"`
	Quantity     int64   `json:"quantity"`
	StopOrder    bool    `json:"stopOrder"`
	StopPrice    float64 `json:"stopPrice"`
	StopType     string  `json:"stopType"`
	StopStep     float64 `json:"stopStep"`
	LossStep     float64 `json:"lossStep"`
	ProfitStep   float64 `json:"profitStep"`
	ChannelID    string  `json:"channelID"`
	DeviceID     string  `json:"deviceId"`
	UserAgent    string  `json:"userAgent"`
}

// CreateOrder submits a new order. The session stamps its own account and
// market ids; the caller-provided values are overwritten.
func (s *Session) CreateOrder(ctx context.Context, order *model.CreatedOrder) error {
	order.MarketID = s.cfg.Market
	order.AccountID = s.cfg.AccountID
	logger.IncrementOrderRequest(s.cfg.AccountID)

	req := orderRequest{
		Account:      order.AccountID,
		RequestID:    uuid.NewString(),
		InstrumentID: order.Symbol,
		Market:       order.MarketID,
		BuySell:      order.OrderSide,
		OrderType:    order.OrderType,
		Price:        order.OrderPrice,
		Quantity:     order.OrderQty,
		StopOrder:    order.StopOrder,
		StopPrice:    order.StopPrice,
		StopType:     order.StopType,
		StopStep:     order.StopStep,
		LossStep:     order.LossStep,
		ProfitStep:   order.ProfitStep,
		ChannelID:    orderChannelID,
		DeviceID:     s.deviceID,
		UserAgent:    userAgent(),
	}
	if err := s.call(ctx, "create order", http.MethodPost, newOrderPath, nil, req, nil); err != nil {
		return err
	}
	s.log.WithComponent("trading_session").WithFields(logger.Fields{
		"account": s.cfg.AccountID,
		"symbol":  order.Symbol,
		"side":    order.OrderSide,
	}).Info("order created")
	return nil
}

// CancelOrder cancels an order previously created on this account.
func (s *Session) CancelOrder(ctx context.Context, order *model.CreatedOrder) error {
	order.MarketID = s.cfg.Market
	order.AccountID = s.cfg.AccountID
	logger.IncrementOrderRequest(s.cfg.AccountID)

	req := orderRequest{
		Account:      order.AccountID,
		RequestID:    uuid.NewString(),
		OrderID:      order.OrderID,
		MarketID:     order.MarketID,
		InstrumentID: order.Symbol,
		BuySell:      order.OrderSide,
		DeviceID:     s.deviceID,
		UserAgent:    userAgent(),
	}
	return s.call(ctx, "cancel order", http.MethodPost, cancelOrderPath, nil, req, nil)
}

// ModifyOrder changes price or quantity of a working order. Non-zero values
// already on the order win over the new arguments.
func (s *Session) ModifyOrder(ctx context.Context, order *model.CreatedOrder, newQty int64, newPrice float64) error {
	fillOrderBlanks(order, newQty, newPrice)
	order.MarketID = s.cfg.Market
	order.AccountID = s.cfg.AccountID
	logger.IncrementOrderRequest(s.cfg.AccountID)

	req := orderRequest{
		Account:      order.AccountID,
		RequestID:    uuid.NewString(),
		OrderID:      order.OrderID,
		MarketID:     order.MarketID,
		InstrumentID: order.Symbol,
		Price:        order.OrderPrice,
		Quantity:     order.OrderQty,
		BuySell:      order.OrderSide,
		OrderType:    order.OrderType,
		DeviceID:     s.deviceID,
		UserAgent:    userAgent(),
	}
	return s.call(ctx, "modify order", http.MethodPost, modifyOrderPath, nil, req, nil)
}

type assetsPayload struct {
	TotalValue float64 `json:"totalValue"`
	EE         float64 `json:"ee"`
}

type balancePayload struct {
	AccountBalance float64       `json:"accountBalance"`
	Fee            float64       `json:"fee"`
	Commission     float64       `json:"commission"`
	Interest       float64       `json:"interest"`
	FloatingPL     float64       `json:"floatingPL"`
	TotalPL        float64       `json:"totalPL"`
	Withdrawable   float64       `json:"withdrawable"`
	InternalAssets assetsPayload `json:"internalAssets"`
	ExchangeAssets assetsPayload `json:"exchangeAssets"`
}

// AccountBalance reads the cash state of the account. Trading P/L is derived
// as total minus floating; NAV as exchange assets minus internal assets.
func (s *Session) AccountBalance(ctx context.Context) (model.AccountBalance, error) {
	var payload balancePayload
	query := url.Values{"account": {s.cfg.AccountID}}
	if err := s.call(ctx, "account balance", http.MethodGet, accountBalancePath, query, nil, &payload); err != nil {
		return model.AccountBalance{}, err
	}
	return model.AccountBalance{
		AccountID:    s.cfg.AccountID,
		MarketID:     s.cfg.Market,
		Balance:      payload.AccountBalance,
		TradingPL:    payload.TotalPL - payload.FloatingPL,
		FloatingPL:   payload.FloatingPL,
		TotalPL:      payload.TotalPL,
		EE:           payload.ExchangeAssets.EE,
		NAV:          payload.ExchangeAssets.TotalValue - payload.InternalAssets.TotalValue,
		Withdrawable: payload.Withdrawable,
		Fee:          payload.Fee,
		Interest:     payload.Interest,
		Commission:   payload.Commission,
	}, nil
}

type maxQtyPayload struct {
	MaxBuyQty       int64   `json:"maxBuyQty"`
	MaxSellQty      int64   `json:"maxSellQty"`
	PurchasingPower float64 `json:"purchasingPower"`
}

// MaxBuySellQty reads the maximum order size for symbol at price on the given
// side.
func (s *Session) MaxBuySellQty(ctx context.Context, symbol string, price float64, side string) (model.MaxBuySellQty, error) {
	path := maxBuyQtyPath
	if side == model.SideSell {
		path = maxSellQtyPath
	}
	query := url.Values{
		"account":      {s.cfg.AccountID},
		"instrumentID": {symbol},
		"price":        {strconv.FormatFloat(price, 'f', -1, 64)},
	}
	var payload maxQtyPayload
	if err := s.call(ctx, "max buy sell qty", http.MethodGet, path, query, nil, &payload); err != nil {
		return model.MaxBuySellQty{}, err
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

type positionPayload struct {
	InstrumentID string  `json:"instrumentID"`
	LongQty      int64   `json:"longQty"`
	ShortQty     int64   `json:"shortQty"`
	TradePrice   float64 `json:"tradePrice"`
	MarketPrice  float64 `json:"marketPrice"`
	FloatingPL   float64 `json:"floatingPL"`
	TradingPL    float64 `json:"tradingPL"`
}

type positionsPayload struct {
	OpenPosition  []positionPayload `json:"openPosition"`
	ClosePosition []positionPayload `json:"closePosition"`
}

func (s *Session) positions(ctx context.Context) (*positionsPayload, error) {
	query := url.Values{
		"account":      {s.cfg.AccountID},
		"querySummary": {"true"},
	}
	var payload positionsPayload
	if err := s.call(ctx, "positions", http.MethodGet, positionPath, query, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *Session) positionMap(rows []positionPayload) map[string]model.StockPosition {
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

// CurrentPositions returns the open positions keyed by symbol, netted
// long minus short.
func (s *Session) CurrentPositions(ctx context.Context) (map[string]model.StockPosition, error) {
	payload, err := s.positions(ctx)
	if err != nil {
		return nil, err
	}
	return s.positionMap(payload.OpenPosition), nil
}

// ClosedPositions returns the closed positions keyed by symbol.
func (s *Session) ClosedPositions(ctx context.Context) (map[string]model.StockPosition, error) {
	payload, err := s.positions(ctx)
	if err != nil {
		return nil, err
	}
	return s.positionMap(payload.ClosePosition), nil
}

type orderHistoryRow struct {
	OrderID      string  `json:"orderID"`
	BuySell      string  `json:"buySell"`
	Price        float64 `json:"price"`
	Quantity     int64   `json:"quantity"`
	FilledQty    int64   `json:"filledQty"`
	OrderStatus  string  `json:"orderStatus"`
	InstrumentID string  `json:"instrumentID"`
	OrderType    string  `json:"orderType"`
	AvgPrice     float64 `json:"avgPrice"`
}

type orderHistoryPayload struct {
	OrderHistories []orderHistoryRow `json:"orderHistories"`
}

// OrderHistory returns orders in the date window filtered by status group.
// The gateway endpoint has no status filter so grouping happens client side.
func (s *Session) OrderHistory(ctx context.Context, group model.OrderStatusGroup, startDate, endDate string, page, pageSize int) ([]model.CreatedOrder, error) {
	startDate, endDate = dateRange(startDate, endDate)
	query := url.Values{
		"account":   {s.cfg.AccountID},
		"startDate": {startDate},
		"endDate":   {endDate},
		"page":      {strconv.Itoa(page)},
		"pageSize":  {strconv.Itoa(pageSize)},
	}
	var payload orderHistoryPayload
	if err := s.call(ctx, "order history", http.MethodGet, orderHistoryPath, query, nil, &payload); err != nil {
		return nil, err
	}
	orders := make([]model.CreatedOrder, 0, len(payload.OrderHistories))
	for _, row := range payload.OrderHistories {
		orders = append(orders, model.CreatedOrder{
			Symbol:      row.InstrumentID,
			MarketID:    s.cfg.Market,
			AccountID:   s.cfg.AccountID,
			OrderSide:   row.BuySell,
			OrderType:   row.OrderType,
			OrderPrice:  row.Price,
			OrderQty:    row.Quantity,
			OrderID:     row.OrderID,
			OrderStatus: row.OrderStatus,
			AvgPrice:    row.AvgPrice,
			OsQty:       row.Quantity - row.FilledQty,
			FilledQty:   row.FilledQty,
		})
	}
	return filterByGroup(orders, group), nil
}

// fillOrderBlanks keeps the existing non-zero quantity and price; the new
// arguments only fill what is missing.
func fillOrderBlanks(order *model.CreatedOrder, newQty int64, newPrice float64) {
	if order.OrderPrice == 0 {
		order.OrderPrice = newPrice
	}
	if order.OrderQty == 0 {
		order.OrderQty = newQty
	}
}

func userAgent() string {
	return "ssiflow"
}
