package marketdata

import "ssiflow/internal/model"

// stockPriceRow is the gateway daily stock price record, PascalCase keys and
// string-typed numerics.
type stockPriceRow struct {
	TradingDate         string `json:"TradingDate"`
	PriceChange         string `json:"PriceChange"`
	PerPriceChange      string `json:"PerPriceChange"`
	CeilingPrice        string `json:"CeilingPrice"`
	FloorPrice          string `json:"FloorPrice"`
	RefPrice            string `json:"RefPrice"`
	OpenPrice           string `json:"OpenPrice"`
	HighestPrice        string `json:"HighestPrice"`
	LowestPrice         string `json:"LowestPrice"`
	ClosePrice          string `json:"ClosePrice"`
	AveragePrice        string `json:"AveragePrice"`
	ClosePriceAdjusted  string `json:"ClosePriceAdjusted"`
	TotalMatchVol       string `json:"TotalMatchVol"`
	TotalMatchVal       string `json:"TotalMatchVal"`
	TotalDealVal        string `json:"TotalDealVal"`
	TotalDealVol        string `json:"TotalDealVol"`
	ForeignBuyVolTotal  string `json:"ForeignBuyVolTotal"`
	ForeignCurrentRoom  string `json:"ForeignCurrentRoom"`
	ForeignSellVolTotal string `json:"ForeignSellVolTotal"`
	ForeignBuyValTotal  string `json:"ForeignBuyValTotal"`
	ForeignSellValTotal string `json:"ForeignSellValTotal"`
	TotalBuyTrade       string `json:"TotalBuyTrade"`
	TotalBuyTradeVol    string `json:"TotalBuyTradeVol"`
	TotalSellTrade      string `json:"TotalSellTrade"`
	TotalSellTradeVol   string `json:"TotalSellTradeVol"`
	NetBuySellVol       string `json:"NetBuySellVol"`
	NetBuySellVal       string `json:"NetBuySellVal"`
	TotalTradedVol      string `json:"TotalTradedVol"`
	TotalTradedValue    string `json:"TotalTradedValue"`
	Symbol              string `json:"Symbol"`
	Time                string `json:"Time"`
}

func (r stockPriceRow) toModel() model.StockPrice {
	return model.StockPrice{
		TradingDate:         r.TradingDate,
		PriceChange:         r.PriceChange,
		PerPriceChange:      r.PerPriceChange,
		CeilingPrice:        r.CeilingPrice,
		FloorPrice:          r.FloorPrice,
		RefPrice:            r.RefPrice,
		OpenPrice:           r.OpenPrice,
		HighestPrice:        r.HighestPrice,
		LowestPrice:         r.LowestPrice,
		ClosePrice:          r.ClosePrice,
		AveragePrice:        r.AveragePrice,
		ClosePriceAdjusted:  r.ClosePriceAdjusted,
		TotalMatchVol:       r.TotalMatchVol,
		TotalMatchVal:       r.TotalMatchVal,
		TotalDealVal:        r.TotalDealVal,
		TotalDealVol:        r.TotalDealVol,
		ForeignBuyVolTotal:  r.ForeignBuyVolTotal,
		ForeignCurrentRoom:  r.ForeignCurrentRoom,
		ForeignSellVolTotal: r.ForeignSellVolTotal,
		ForeignBuyValTotal:  r.ForeignBuyValTotal,
		ForeignSellValTotal: r.ForeignSellValTotal,
		TotalBuyTrade:       r.TotalBuyTrade,
		TotalBuyTradeVol:    r.TotalBuyTradeVol,
		TotalSellTrade:      r.TotalSellTrade,
		TotalSellTradeVol:   r.TotalSellTradeVol,
		NetBuySellVol:       r.NetBuySellVol,
		NetBuySellVal:       r.NetBuySellVal,
		TotalTradedVol:      r.TotalTradedVol,
		TotalTradedValue:    r.TotalTradedValue,
		Symbol:              r.Symbol,
		Time:                r.Time,
	}
}
