package stream

import (
	"encoding/json"
	"fmt"

	"ssiflow/config"
	"ssiflow/internal/channel"
	"ssiflow/internal/model"
	"ssiflow/store"
)

// marketPayload is the X channel wire shape. Only the fields the snapshot
// carries are decoded; the gateway sends many more.
type marketPayload struct {
	Symbol      string  `json:"Symbol"`
	Time        string  `json:"Time"`
	LastPrice   float64 `json:"LastPrice"`
	LastVol     float64 `json:"LastVol"`
	TotalVol    float64 `json:"TotalVol"`
	RefPrice    float64 `json:"RefPrice"`
	Ceiling     float64 `json:"Ceiling"`
	Floor       float64 `json:"Floor"`
	Open        float64 `json:"Open"`
	High        float64 `json:"High"`
	Low         float64 `json:"Low"`
	AvgPrice    float64 `json:"AvgPrice"`
	BidPrice1   float64 `json:"BidPrice1"`
	BidVol1     float64 `json:"BidVol1"`
	AskPrice1   float64 `json:"AskPrice1"`
	AskVol1     float64 `json:"AskVol1"`
	Change      float64 `json:"Change"`
	RatioChange float64 `json:"RatioChange"`
}

func decodeMarket(content []byte) (model.CurrentMarket, error) {
	var p marketPayload
	if err := json.Unmarshal(content, &p); err != nil {
		return model.CurrentMarket{}, fmt.Errorf("decode market payload: %w", err)
	}
	if p.Symbol == "" {
		return model.CurrentMarket{}, fmt.Errorf("market payload missing Symbol")
	}
	return model.CurrentMarket{
		TradingTime:   p.Time,
		Symbol:        p.Symbol,
		CurrentPrice:  p.LastPrice,
		CurrentVolume: p.LastVol,
		TotalVolume:   p.TotalVol,
		PriceChange:   p.Change,
		ChangePercent: p.RatioChange,
		RefPrice:      p.RefPrice,
		CeilingPrice:  p.Ceiling,
		FloorPrice:    p.Floor,
		OpenPrice:     p.Open,
		HighPrice:     p.High,
		LowPrice:      p.Low,
		AvgPrice:      p.AvgPrice,
		BidPrice01:    p.BidPrice1,
		BidVolume01:   p.BidVol1,
		AskPrice01:    p.AskPrice1,
		AskVolume01:   p.AskVol1,
	}, nil
}

// barPayload is the B channel wire shape.
type barPayload struct {
	Symbol      string  `json:"Symbol"`
	TradingTime string  `json:"TradingTime"`
	Time        string  `json:"Time"`
	Open        float64 `json:"Open"`
	High        float64 `json:"High"`
	Low         float64 `json:"Low"`
	Close       float64 `json:"Close"`
	Volume      float64 `json:"Volume"`
	Value       float64 `json:"Value"`
}

func decodeBar(content []byte) (model.CurrentBar, error) {
	var p barPayload
	if err := json.Unmarshal(content, &p); err != nil {
		return model.CurrentBar{}, fmt.Errorf("decode bar payload: %w", err)
	}
	if p.Symbol == "" {
		return model.CurrentBar{}, fmt.Errorf("bar payload missing Symbol")
	}
	// some gateway versions tag the timestamp TradingTime, others Time
	tradingTime := p.TradingTime
	if tradingTime == "" {
		tradingTime = p.Time
	}
	return model.CurrentBar{
		Symbol:      p.Symbol,
		TradingTime: tradingTime,
		Open:        p.Open,
		High:        p.High,
		Low:         p.Low,
		Close:       p.Close,
		Volume:      p.Volume,
		Value:       p.Value,
	}, nil
}

// indexPayload is the MI channel wire shape; the key field is IndexName, not
// Symbol.
type indexPayload struct {
	IndexName       string  `json:"IndexName"`
	Time            string  `json:"Time"`
	IndexValue      float64 `json:"IndexValue"`
	PriorIndexValue float64 `json:"PriorIndexValue"`
	TotalQtty       float64 `json:"TotalQtty"`
	TotalValue      float64 `json:"TotalValue"`
	Change          float64 `json:"Change"`
	RatioChange     float64 `json:"RatioChange"`
}

func decodeIndex(content []byte) (model.CurrentIndex, error) {
	var p indexPayload
	if err := json.Unmarshal(content, &p); err != nil {
		return model.CurrentIndex{}, fmt.Errorf("decode index payload: %w", err)
	}
	if p.IndexName == "" {
		return model.CurrentIndex{}, fmt.Errorf("index payload missing IndexName")
	}
	return model.CurrentIndex{
		TradingTime:   p.Time,
		Name:          p.IndexName,
		CurrentValue:  p.IndexValue,
		RefValue:      p.PriorIndexValue,
		TotalVolume:   p.TotalQtty,
		TotalValue:    p.TotalValue,
		ValueChange:   p.Change,
		ChangePercent: p.RatioChange,
	}, nil
}

// foreignRoomPayload is the R channel wire shape.
type foreignRoomPayload struct {
	Symbol      string  `json:"Symbol"`
	Time        string  `json:"Time"`
	TotalRoom   float64 `json:"TotalRoom"`
	CurrentRoom float64 `json:"CurrentRoom"`
	BuyVol      float64 `json:"BuyVol"`
	SellVol     float64 `json:"SellVol"`
	BuyVal      float64 `json:"BuyVal"`
	SellVal     float64 `json:"SellVal"`
}

func decodeForeignRoom(content []byte) (model.CurrentForeignRoom, error) {
	var p foreignRoomPayload
	if err := json.Unmarshal(content, &p); err != nil {
		return model.CurrentForeignRoom{}, fmt.Errorf("decode foreign room payload: %w", err)
	}
	if p.Symbol == "" {
		return model.CurrentForeignRoom{}, fmt.Errorf("foreign room payload missing Symbol")
	}
	return model.CurrentForeignRoom{
		Symbol:      p.Symbol,
		TradingTime: p.Time,
		TotalRoom:   p.TotalRoom,
		CurrentRoom: p.CurrentRoom,
		BuyVolume:   p.BuyVol,
		SellVolume:  p.SellVol,
		BuyValue:    p.BuyVal,
		SellValue:   p.SellVal,
	}, nil
}

// NewMarketAdapter subscribes the X channel for the given symbols.
func NewMarketAdapter(cfg config.DataServiceConfig, symbols []string, chans *channel.Channels, metrics *store.Metrics) (*Adapter[model.CurrentMarket], error) {
	st := store.New(model.ChannelMarket, model.CurrentMarket.Supersedes, metrics)
	return newAdapter(cfg, model.ChannelMarket, symbols, decodeMarket, st, chans)
}

// NewBarAdapter subscribes the B channel for the given symbols.
func NewBarAdapter(cfg config.DataServiceConfig, symbols []string, chans *channel.Channels, metrics *store.Metrics) (*Adapter[model.CurrentBar], error) {
	st := store.New(model.ChannelBar, model.CurrentBar.Supersedes, metrics)
	return newAdapter(cfg, model.ChannelBar, symbols, decodeBar, st, chans)
}

// NewIndexAdapter subscribes the MI channel for the given index names.
func NewIndexAdapter(cfg config.DataServiceConfig, indexes []string, chans *channel.Channels, metrics *store.Metrics) (*Adapter[model.CurrentIndex], error) {
	st := store.New(model.ChannelIndex, model.CurrentIndex.Supersedes, metrics)
	return newAdapter(cfg, model.ChannelIndex, indexes, decodeIndex, st, chans)
}

// NewForeignRoomAdapter subscribes the R channel for the given symbols.
func NewForeignRoomAdapter(cfg config.DataServiceConfig, symbols []string, chans *channel.Channels, metrics *store.Metrics) (*Adapter[model.CurrentForeignRoom], error) {
	st := store.New(model.ChannelForeignRoom, model.CurrentForeignRoom.Supersedes, metrics)
	return newAdapter(cfg, model.ChannelForeignRoom, symbols, decodeForeignRoom, st, chans)
}
