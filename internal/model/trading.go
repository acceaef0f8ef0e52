package model

// CreatedOrder is built client-side before submission; the response fields
// (OrderID, OrderStatus, AvgPrice, OsQty, FilledQty) are filled in by the
// trading session after a round trip. The caller owns the struct and the
// session mutates it in place on each lifecycle call.
type CreatedOrder struct {
	Symbol     string  `json:"symbol"`
	MarketID   string  `json:"market_id"`
	AccountID  string  `json:"account_id"`
	OrderSide  string  `json:"order_side"`
	OrderType  string  `json:"order_type"`
	OrderPrice float64 `json:"order_price"`
	OrderQty   int64   `json:"order_qty"`

	OrderID     string `json:"order_id,omitempty"`
	OrderStatus string `json:"order_status,omitempty"`

	// stop order fields for futures
	StopOrder  bool    `json:"stop_order,omitempty"`
	StopPrice  float64 `json:"stop_price,omitempty"`
	StopType   string  `json:"stop_type,omitempty"`
	StopStep   float64 `json:"stop_step,omitempty"`
	LossStep   float64 `json:"loss_step,omitempty"`
	ProfitStep float64 `json:"profit_step,omitempty"`

	// history fields
	AvgPrice  float64 `json:"avg_price,omitempty"`
	OsQty     int64   `json:"os_qty,omitempty"`
	FilledQty int64   `json:"filled_qty,omitempty"`
}

// StockPosition is the net position for one symbol on one account.
type StockPosition struct {
	Symbol      string  `json:"symbol"`
	MarketID    string  `json:"market_id"`
	AccountID   string  `json:"account_id"`
	Position    int64   `json:"position"`
	TradingPL   float64 `json:"trading_pl"`
	FloatingPL  float64 `json:"floating_pl"`
	MarketPrice float64 `json:"market_price"`
	AvgPrice    float64 `json:"avg_price"`
}

// AccountBalance summarises the cash state of one account.
type AccountBalance struct {
	Balance      float64 `json:"balance"`
	MarketID     string  `json:"market_id"`
	AccountID    string  `json:"account_id"`
	TradingPL    float64 `json:"trading_pl"`
	FloatingPL   float64 `json:"floating_pl"`
	TotalPL      float64 `json:"total_pl"`
	EE           float64 `json:"ee"`
	NAV          float64 `json:"nav"`
	Withdrawable float64 `json:"withdrawable"`
	Fee          float64 `json:"fee"`
	Interest     float64 `json:"interest"`
	Commission   float64 `json:"commission"`
}

// MaxBuySellQty is the maximum buyable/sellable quantity for a symbol at a
// price, together with remaining purchasing power.
type MaxBuySellQty struct {
	MarketID  string  `json:"market_id"`
	AccountID string  `json:"account_id"`
	Symbol    string  `json:"symbol"`
	MaxQty    int64   `json:"max_qty"`
	Power     float64 `json:"power"`
}
