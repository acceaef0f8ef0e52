package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ssiflow/config"
)

func newDataGateway(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/"+tokenPath {
			writeJSON(w, map[string]interface{}{
				"message": "Success",
				"data":    map[string]string{"accessToken": "md-token"},
			})
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer md-token" {
			t.Errorf("authorization header = %q", got)
		}
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestService(srv *httptest.Server) *Service {
	return NewService(config.DataServiceConfig{URL: srv.URL}, 5*time.Second)
}

func TestDailyOHLCVParsesStringNumerics(t *testing.T) {
	srv := newDataGateway(t, map[string]http.HandlerFunc{
		"/" + dailyOhlcPath: func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("symbol") != "SSI" || q.Get("fromDate") != "01/07/2026" {
				t.Errorf("query = %v", q)
			}
			writeJSON(w, map[string]interface{}{
				"message": "Success",
				"status":  "Success",
				"data": []interface{}{
					map[string]string{
						"Symbol": "SSI", "TradingDate": "01/07/2026",
						"Open": "21000", "High": "21500", "Low": "20900",
						"Close": "21400", "Volume": "1534900", "Value": "32561230000",
					},
				},
			})
		},
	})

	s := newTestService(srv)
	candles, err := s.DailyOHLCV(context.Background(), "SSI", "01/07/2026", "02/07/2026", 1, 10, false)
	if err != nil {
		t.Fatalf("DailyOHLCV: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("candles = %d, want 1", len(candles))
	}
	if candles[0].Close != 21400 || candles[0].Volume != 1534900 {
		t.Fatalf("candle = %+v", candles[0])
	}
	if candles[0].TradingTime != "01/07/2026" {
		t.Fatalf("trading time = %q", candles[0].TradingTime)
	}
}

func TestIntradayOHLCVCombinesDateAndTime(t *testing.T) {
	srv := newDataGateway(t, map[string]http.HandlerFunc{
		"/" + intradayOhlcPath: func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("resolution"); got != "5" {
				t.Errorf("resolution = %q", got)
			}
			writeJSON(w, map[string]interface{}{
				"message": "Success",
				"status":  "Success",
				"data": []interface{}{
					map[string]string{
						"Symbol": "HPG", "TradingDate": "01/07/2026", "Time": "09:20:00",
						"Open": "28.1", "High": "28.3", "Low": "28.0", "Close": "28.2",
						"Volume": "120300", "Value": "3391456000",
					},
				},
			})
		},
	})

	s := newTestService(srv)
	candles, err := s.IntradayOHLCV(context.Background(), "HPG", "01/07/2026", "01/07/2026", 1, 10, 5, true)
	if err != nil {
		t.Fatalf("IntradayOHLCV: %v", err)
	}
	if candles[0].TradingTime != "01/07/2026 09:20:00" {
		t.Fatalf("trading time = %q", candles[0].TradingTime)
	}
}

func TestDailyOHLCVDefaultDates(t *testing.T) {
	var start, end string
	srv := newDataGateway(t, map[string]http.HandlerFunc{
		"/" + dailyOhlcPath: func(w http.ResponseWriter, r *http.Request) {
			start = r.URL.Query().Get("fromDate")
			end = r.URL.Query().Get("toDate")
			writeJSON(w, map[string]interface{}{"message": "Success", "status": "Success", "data": []interface{}{}})
		},
	})

	s := newTestService(srv)
	if _, err := s.DailyOHLCV(context.Background(), "SSI", "", "", 1, 10, false); err != nil {
		t.Fatalf("DailyOHLCV: %v", err)
	}
	now := time.Now()
	if start != now.Format(dateLayout) || end != now.AddDate(0, 0, 1).Format(dateLayout) {
		t.Fatalf("default window = %q..%q", start, end)
	}
}

func TestDailyIndexOrderParam(t *testing.T) {
	var orderParam string
	srv := newDataGateway(t, map[string]http.HandlerFunc{
		"/" + dailyIndexPath: func(w http.ResponseWriter, r *http.Request) {
			orderParam = r.URL.Query().Get("order")
			writeJSON(w, map[string]interface{}{
				"message": "Success",
				"status":  "Success",
				"data": []interface{}{
					map[string]string{
						"IndexId": "VN30", "IndexValue": "1301.25",
						"TradingDate": "01/07/2026", "TotalVol": "254100000",
					},
				},
			})
		},
	})

	s := newTestService(srv)
	rows, err := s.DailyIndex(context.Background(), "VN30", "01/07/2026", "02/07/2026", 1, 10, false)
	if err != nil {
		t.Fatalf("DailyIndex: %v", err)
	}
	if orderParam != "desc" {
		t.Fatalf("order = %q, want desc for descending", orderParam)
	}
	if rows[0].IndexID != "VN30" || rows[0].IndexValue != "1301.25" {
		t.Fatalf("row = %+v", rows[0])
	}
}

func TestListIndexComponents(t *testing.T) {
	srv := newDataGateway(t, map[string]http.HandlerFunc{
		"/" + indexComponentsPath: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]interface{}{
				"message": "Success",
				"status":  "Success",
				"data": []interface{}{
					map[string]interface{}{
						"IndexCode": "VN30",
						"IndexComponent": []interface{}{
							map[string]string{"StockSymbol": "ACB"},
							map[string]string{"StockSymbol": "FPT"},
							map[string]string{"StockSymbol": "VCB"},
						},
					},
				},
			})
		},
	})

	s := newTestService(srv)
	symbols, err := s.ListIndexComponents(context.Background(), "VN30", 1, 100)
	if err != nil {
		t.Fatalf("ListIndexComponents: %v", err)
	}
	want := []string{"ACB", "FPT", "VCB"}
	if len(symbols) != len(want) {
		t.Fatalf("symbols = %v", symbols)
	}
	for i := range want {
		if symbols[i] != want[i] {
			t.Fatalf("symbols = %v, want %v", symbols, want)
		}
	}
}

func TestListIndexNames(t *testing.T) {
	srv := newDataGateway(t, map[string]http.HandlerFunc{
		"/" + indexListPath: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]interface{}{
				"message": "Success",
				"status":  "Success",
				"data": []interface{}{
					map[string]string{"IndexCode": "VN30"},
					map[string]string{"IndexCode": "VN100"},
				},
			})
		},
	})

	s := newTestService(srv)
	names, err := s.ListIndexNames(context.Background(), "HOSE", 1, 10)
	if err != nil {
		t.Fatalf("ListIndexNames: %v", err)
	}
	if len(names) != 2 || names[0] != "VN30" {
		t.Fatalf("names = %v", names)
	}
}

func TestGatewayRefusalIsError(t *testing.T) {
	srv := newDataGateway(t, map[string]http.HandlerFunc{
		"/" + dailyOhlcPath: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]interface{}{"message": "Invalid symbol", "status": "Error"})
		},
	})

	s := newTestService(srv)
	if _, err := s.DailyOHLCV(context.Background(), "NOPE", "", "", 1, 10, false); err == nil {
		t.Fatal("refused query should error")
	}
}
