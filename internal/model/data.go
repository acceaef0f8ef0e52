package model

// CurrentMarket is the latest reconciled tick for one symbol on the market
// channel. A zero TradingTime means no data has been accepted yet.
type CurrentMarket struct {
	TradingTime   string  `json:"trading_time"`
	Symbol        string  `json:"symbol"`
	CurrentPrice  float64 `json:"current_price"`
	CurrentVolume float64 `json:"current_volume"`
	TotalVolume   float64 `json:"total_volume"`
	PriceChange   float64 `json:"price_change"`
	ChangePercent float64 `json:"change_percent"`
	RefPrice      float64 `json:"ref_price"`
	CeilingPrice  float64 `json:"ceiling_price"`
	FloorPrice    float64 `json:"floor_price"`
	OpenPrice     float64 `json:"open_price"`
	HighPrice     float64 `json:"high_price"`
	LowPrice      float64 `json:"low_price"`
	AvgPrice      float64 `json:"avg_price"`
	BidPrice01    float64 `json:"bid_price_01"`
	BidVolume01   float64 `json:"bid_volume_01"`
	AskPrice01    float64 `json:"ask_price_01"`
	AskVolume01   float64 `json:"ask_volume_01"`
}

func (m CurrentMarket) Key() string { return m.Symbol }

// Supersedes reports whether m carries new information over prev. Volume is
// the monotonicity proxy: the feed redelivers unchanged or stale ticks and
// embedded timestamps are not reliable for ordering.
func (m CurrentMarket) Supersedes(prev CurrentMarket) bool {
	return m.TotalVolume > prev.TotalVolume && m.CurrentVolume != 0
}

// CurrentIndex is the latest reconciled value for one index.
type CurrentIndex struct {
	TradingTime   string  `json:"trading_time"`
	Name          string  `json:"name"`
	CurrentValue  float64 `json:"current_value"`
	RefValue      float64 `json:"ref_value"`
	TotalVolume   float64 `json:"total_volume"`
	TotalValue    float64 `json:"total_value"`
	ValueChange   float64 `json:"value_change"`
	ChangePercent float64 `json:"change_percent"`
}

func (i CurrentIndex) Key() string { return i.Name }

func (i CurrentIndex) Supersedes(prev CurrentIndex) bool {
	return i.TotalVolume > prev.TotalVolume
}

// CurrentBar is the latest OHLCV bar for one symbol.
type CurrentBar struct {
	Symbol      string  `json:"symbol"`
	TradingTime string  `json:"trading_time"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	Value       float64 `json:"value"`
}

func (b CurrentBar) Key() string { return b.Symbol }

func (b CurrentBar) Supersedes(prev CurrentBar) bool {
	return b.Volume > prev.Volume
}

// CurrentForeignRoom is the latest foreign-ownership room state for one
// symbol.
type CurrentForeignRoom struct {
	Symbol      string  `json:"symbol"`
	TradingTime string  `json:"trading_time"`
	TotalRoom   float64 `json:"total_room"`
	CurrentRoom float64 `json:"current_room"`
	BuyVolume   float64 `json:"buy_volume"`
	SellVolume  float64 `json:"sell_volume"`
	BuyValue    float64 `json:"buy_value"`
	SellValue   float64 `json:"sell_value"`
}

func (f CurrentForeignRoom) Key() string { return f.Symbol }

func (f CurrentForeignRoom) Supersedes(prev CurrentForeignRoom) bool {
	return f.BuyVolume > prev.BuyVolume && f.SellVolume > prev.SellVolume
}

// OHLCV is one historical candle returned by the REST data gateway.
type OHLCV struct {
	Symbol      string  `json:"symbol"`
	TradingTime string  `json:"trading_time"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	Value       float64 `json:"value"`
}

// DailyIndex mirrors the REST daily index response. The gateway returns all
// numeric fields as strings; they are kept verbatim.
type DailyIndex struct {
	IndexID        string `json:"index_id"`
	IndexValue     string `json:"index_value"`
	TradingDate    string `json:"trading_date"`
	Time           string `json:"time"`
	Change         string `json:"change"`
	RatioChange    string `json:"ratio_change"`
	TotalTrade     string `json:"total_trade"`
	TotalMatchVol  string `json:"total_match_vol"`
	TotalMatchVal  string `json:"total_match_val"`
	TypeIndex      string `json:"type_index"`
	IndexName      string `json:"index_name"`
	Advances       string `json:"advances"`
	NoChanges      string `json:"no_changes"`
	Declines       string `json:"declines"`
	Ceilings       string `json:"ceilings"`
	Floors         string `json:"floors"`
	TotalDealVol   string `json:"total_deal_vol"`
	TotalDealVal   string `json:"total_deal_val"`
	TotalVol       string `json:"total_vol"`
	TotalVal       string `json:"total_val"`
	TradingSession string `json:"trading_session"`
}

// StockPrice mirrors the REST daily stock price response.
type StockPrice struct {
	TradingDate         string `json:"trading_date"`
	PriceChange         string `json:"price_change"`
	PerPriceChange      string `json:"per_price_change"`
	CeilingPrice        string `json:"ceiling_price"`
	FloorPrice          string `json:"floor_price"`
	RefPrice            string `json:"ref_price"`
	OpenPrice           string `json:"open_price"`
	HighestPrice        string `json:"highest_price"`
	LowestPrice         string `json:"lowest_price"`
	ClosePrice          string `json:"close_price"`
	AveragePrice        string `json:"average_price"`
	ClosePriceAdjusted  string `json:"close_price_adjusted"`
	TotalMatchVol       string `json:"total_match_vol"`
	TotalMatchVal       string `json:"total_match_val"`
	TotalDealVal        string `json:"total_deal_val"`
	TotalDealVol        string `json:"total_deal_vol"`
	ForeignBuyVolTotal  string `json:"foreign_buy_vol_total"`
	ForeignCurrentRoom  string `json:"foreign_current_room"`
	ForeignSellVolTotal string `json:"foreign_sell_vol_total"`
	ForeignBuyValTotal  string `json:"foreign_buy_val_total"`
	ForeignSellValTotal string `json:"foreign_sell_val_total"`
	TotalBuyTrade       string `json:"total_buy_trade"`
	TotalBuyTradeVol    string `json:"total_buy_trade_vol"`
	TotalSellTrade      string `json:"total_sell_trade"`
	TotalSellTradeVol   string `json:"total_sell_trade_vol"`
	NetBuySellVol       string `json:"net_buy_sell_vol"`
	NetBuySellVal       string `json:"net_buy_sell_val"`
	TotalTradedVol      string `json:"total_traded_vol"`
	TotalTradedValue    string `json:"total_traded_value"`
	Symbol              string `json:"symbol"`
	Time                string `json:"time"`
}
