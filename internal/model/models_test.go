package model

import (
	"encoding/json"
	"testing"
)

func TestStatusGroups(t *testing.T) {
	working := []string{"WA", "RS", "SD", "QU", "PF", "WM", "WC", "SOR", "SOS", "IAV"}
	if len(WorkingOrders) != len(working) {
		t.Fatalf("working group size = %d, want %d", len(WorkingOrders), len(working))
	}
	for _, s := range working {
		if !WorkingOrders.Contains(s) {
			t.Errorf("WorkingOrders missing %q", s)
		}
	}

	filled := []string{"PF", "FF", "FFPC"}
	if len(FilledOrders) != len(filled) {
		t.Fatalf("filled group size = %d, want %d", len(FilledOrders), len(filled))
	}
	for _, s := range filled {
		if !FilledOrders.Contains(s) {
			t.Errorf("FilledOrders missing %q", s)
		}
	}

	for _, s := range []string{"CL", "RJ", "EX"} {
		if !CanceledOrders.Contains(s) {
			t.Errorf("CanceledOrders missing %q", s)
		}
	}
	if CanceledOrders.Contains("FF") {
		t.Error("CanceledOrders should not contain FF")
	}
	if !WaitingOrders.Contains("SOI") {
		t.Error("WaitingOrders missing SOI")
	}
}

func TestSupersedes(t *testing.T) {
	prev := CurrentMarket{Symbol: "ABC", TotalVolume: 100}
	if (CurrentMarket{Symbol: "ABC", TotalVolume: 100, CurrentVolume: 5}).Supersedes(prev) {
		t.Error("equal total volume must not supersede")
	}
	if (CurrentMarket{Symbol: "ABC", TotalVolume: 150, CurrentVolume: 0}).Supersedes(prev) {
		t.Error("zero last volume must not supersede")
	}
	if !(CurrentMarket{Symbol: "ABC", TotalVolume: 150, CurrentVolume: 5}).Supersedes(prev) {
		t.Error("higher total volume with non-zero last volume must supersede")
	}

	if !(CurrentBar{Volume: 2}).Supersedes(CurrentBar{Volume: 1}) {
		t.Error("bar with higher volume must supersede")
	}
	if (CurrentBar{Volume: 1}).Supersedes(CurrentBar{Volume: 1}) {
		t.Error("bar with equal volume must not supersede")
	}

	if !(CurrentIndex{TotalVolume: 10}).Supersedes(CurrentIndex{TotalVolume: 9}) {
		t.Error("index with higher total volume must supersede")
	}

	fr := CurrentForeignRoom{BuyVolume: 10, SellVolume: 10}
	if (CurrentForeignRoom{BuyVolume: 20, SellVolume: 10}).Supersedes(fr) {
		t.Error("foreign room needs both volumes to advance")
	}
	if !(CurrentForeignRoom{BuyVolume: 20, SellVolume: 20}).Supersedes(fr) {
		t.Error("foreign room with both volumes advanced must supersede")
	}
}

func TestParseEnvelope(t *testing.T) {
	frame := []byte(`{"DataType":"X","Content":"{\"Symbol\":\"VN30F2407\",\"LastPrice\":1283.9}"}`)
	ch, content, err := ParseEnvelope(frame)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ch != ChannelMarket {
		t.Fatalf("channel = %q, want %q", ch, ChannelMarket)
	}
	var payload struct {
		Symbol    string  `json:"Symbol"`
		LastPrice float64 `json:"LastPrice"`
	}
	if err := json.Unmarshal(content, &payload); err != nil {
		t.Fatalf("unmarshal content: %v", err)
	}
	if payload.Symbol != "VN30F2407" || payload.LastPrice != 1283.9 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestParseEnvelopeObjectContent(t *testing.T) {
	frame := []byte(`{"DataType":"B","Content":{"Symbol":"X26","Volume":5000}}`)
	ch, content, err := ParseEnvelope(frame)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ch != ChannelBar {
		t.Fatalf("channel = %q, want %q", ch, ChannelBar)
	}
	var payload struct {
		Volume float64 `json:"Volume"`
	}
	if err := json.Unmarshal(content, &payload); err != nil {
		t.Fatalf("unmarshal content: %v", err)
	}
	if payload.Volume != 5000 {
		t.Fatalf("volume = %v, want 5000", payload.Volume)
	}
}

func TestParseEnvelopeMalformed(t *testing.T) {
	if _, _, err := ParseEnvelope([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed frame")
	}
	if _, _, err := ParseEnvelope([]byte(`{"Content":"{}"}`)); err == nil {
		t.Fatal("expected error for missing DataType")
	}
}
