package marketdata

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
	"time"

	"ssiflow/config"
	"ssiflow/internal/model"
	"ssiflow/logger"
)

const (
	tokenPath           = "api/v2/Market/AccessToken"
	dailyOhlcPath       = "api/v2/Market/DailyOhlc"
	intradayOhlcPath    = "api/v2/Market/IntradayOhlc"
	dailyIndexPath      = "api/v2/Market/DailyIndex"
	dailyStockPricePath = "api/v2/Market/DailyStockPrice"
	indexListPath       = "api/v2/Market/IndexList"
	indexComponentsPath = "api/v2/Market/IndexComponents"

	dateLayout = "02/01/2006"
)

// mdResponse is the data gateway envelope. Status is a string here, unlike
// the trading gateway's numeric status field.
type mdResponse struct {
	Message string          `json:"message"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
}

func (r *mdResponse) success() bool {
	return strings.EqualFold(r.Status, "success")
}

// Service reads historical market data over the gateway REST API. Safe for
// concurrent use.
type Service struct {
	cfg    config.DataServiceConfig
	client *http.Client
	log    *logger.Log

	tokenMu sync.Mutex
	token   string
}

// NewService builds a historical data client with the given request timeout.
func NewService(cfg config.DataServiceConfig, timeout time.Duration) *Service {
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    logger.GetLogger(),
	}
}

func (s *Service) endpoint(path string) string {
	return strings.TrimSuffix(s.cfg.URL, "/") + "/" + path
}

func (s *Service) accessToken(ctx context.Context) (string, error) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	if s.token != "" {
		return s.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"consumerID":     s.cfg.ConsumerID,
		"consumerSecret": s.cfg.ConsumerSecret,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(tokenPath), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("access token: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Message string `json:"message"`
		Data    struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode access token response: %w", err)
	}
	if !strings.EqualFold(out.Message, "success") {
		return "", fmt.Errorf("access token refused: %s", out.Message)
	}
	s.token = out.Data.AccessToken
	return s.token, nil
}

// get performs one authenticated query and unmarshals the data array.
func (s *Service) get(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	token, err := s.accessToken(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(path)+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s: gateway returned status %d", op, resp.StatusCode)
	}

	var envelope mdResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	if !envelope.success() {
		return fmt.Errorf("%s: gateway refused: %s", op, envelope.Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", op, err)
		}
	}
	return nil
}

// dateRange applies the today..tomorrow default when no window is given.
func dateRange(startDate, endDate string) (string, string) {
	if startDate == "" {
		now := time.Now()
		startDate = now.Format(dateLayout)
		endDate = now.AddDate(0, 0, 1).Format(dateLayout)
	}
	return startDate, endDate
}

func order(ascending bool) string {
	if ascending {
		return "asc"
	}
	return "desc"
}

// ohlcRow is the gateway candle record. Numeric fields arrive as strings.
type ohlcRow struct {
	Symbol      string `json:"Symbol"`
	TradingDate string `json:"TradingDate"`
	Time        string `json:"Time"`
	Open        string `json:"Open"`
	High        string `json:"High"`
	Low         string `json:"Low"`
	Close       string `json:"Close"`
	Volume      string `json:"Volume"`
	Value       string `json:"Value"`
}

func (r ohlcRow) toOHLCV(tradingTime string) model.OHLCV {
	return model.OHLCV{
		Symbol:      r.Symbol,
		TradingTime: tradingTime,
		Open:        parseFloat(r.Open),
		High:        parseFloat(r.High),
		Low:         parseFloat(r.Low),
		Close:       parseFloat(r.Close),
		Volume:      parseFloat(r.Volume),
		Value:       parseFloat(r.Value),
	}
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// DailyOHLCV returns daily candles for symbol in the date window
// (dd/MM/yyyy, default today..tomorrow).
func (s *Service) DailyOHLCV(ctx context.Context, symbol, startDate, endDate string, pageIndex, pageSize int, ascending bool) ([]model.OHLCV, error) {
	startDate, endDate = dateRange(startDate, endDate)
	query := url.Values{
		"symbol":    {symbol},
		"fromDate":  {startDate},
		"toDate":    {endDate},
		"pageIndex": {strconv.Itoa(pageIndex)},
		"pageSize":  {strconv.Itoa(pageSize)},
		"ascending": {strconv.FormatBool(ascending)},
	}
	var rows []ohlcRow
	if err := s.get(ctx, "daily ohlcv", dailyOhlcPath, query, &rows); err != nil {
		return nil, err
	}
	out := make([]model.OHLCV, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toOHLCV(row.TradingDate))
	}
	return out, nil
}

// IntradayOHLCV returns intraday candles resampled to resolution minutes.
func (s *Service) IntradayOHLCV(ctx context.Context, symbol, startDate, endDate string, pageIndex, pageSize, resolution int, ascending bool) ([]model.OHLCV, error) {
	startDate, endDate = dateRange(startDate, endDate)
	query := url.Values{
		"symbol":     {symbol},
		"fromDate":   {startDate},
		"toDate":     {endDate},
		"pageIndex":  {strconv.Itoa(pageIndex)},
		"pageSize":   {strconv.Itoa(pageSize)},
		"resolution": {strconv.Itoa(resolution)},
		"ascending":  {strconv.FormatBool(ascending)},
	}
	var rows []ohlcRow
	if err := s.get(ctx, "intraday ohlcv", intradayOhlcPath, query, &rows); err != nil {
		return nil, err
	}
	out := make([]model.OHLCV, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toOHLCV(row.TradingDate+" "+row.Time))
	}
	return out, nil
}

type dailyIndexRow struct {
	IndexID        string `json:"IndexId"`
	IndexValue     string `json:"IndexValue"`
	TradingDate    string `json:"TradingDate"`
	Time           string `json:"Time"`
	Change         string `json:"Change"`
	RatioChange    string `json:"RatioChange"`
	TotalTrade     string `json:"TotalTrade"`
	TotalMatchVol  string `json:"TotalMatchVol"`
	TotalMatchVal  string `json:"TotalMatchVal"`
	TypeIndex      string `json:"TypeIndex"`
	IndexName      string `json:"IndexName"`
	Advances       string `json:"Advances"`
	NoChanges      string `json:"NoChanges"`
	Declines       string `json:"Declines"`
	Ceilings       string `json:"Ceilings"`
	Floors         string `json:"Floors"`
	TotalDealVol   string `json:"TotalDealVol"`
	TotalDealVal   string `json:"TotalDealVal"`
	TotalVol       string `json:"TotalVol"`
	TotalVal       string `json:"TotalVal"`
	TradingSession string `json:"TradingSession"`
}

// DailyIndex returns daily records for one index, ordered by trading date.
func (s *Service) DailyIndex(ctx context.Context, indexID, startDate, endDate string, pageIndex, pageSize int, ascending bool) ([]model.DailyIndex, error) {
	startDate, endDate = dateRange(startDate, endDate)
	query := url.Values{
		"indexId":   {indexID},
		"fromDate":  {startDate},
		"toDate":    {endDate},
		"pageIndex": {strconv.Itoa(pageIndex)},
		"pageSize":  {strconv.Itoa(pageSize)},
		"orderBy":   {"Tradingdate"},
		"order":     {order(ascending)},
	}
	var rows []dailyIndexRow
	if err := s.get(ctx, "daily index", dailyIndexPath, query, &rows); err != nil {
		return nil, err
	}
	out := make([]model.DailyIndex, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.DailyIndex{
			IndexID:        row.IndexID,
			IndexValue:     row.IndexValue,
			TradingDate:    row.TradingDate,
			Time:           row.Time,
			Change:         row.Change,
			RatioChange:    row.RatioChange,
			TotalTrade:     row.TotalTrade,
			TotalMatchVol:  row.TotalMatchVol,
			TotalMatchVal:  row.TotalMatchVal,
			TypeIndex:      row.TypeIndex,
			IndexName:      row.IndexName,
			Advances:       row.Advances,
			NoChanges:      row.NoChanges,
			Declines:       row.Declines,
			Ceilings:       row.Ceilings,
			Floors:         row.Floors,
			TotalDealVol:   row.TotalDealVol,
			TotalDealVal:   row.TotalDealVal,
			TotalVol:       row.TotalVol,
			TotalVal:       row.TotalVal,
			TradingSession: row.TradingSession,
		})
	}
	return out, nil
}

// StockPrice returns the daily price records for symbol. Field values stay
// verbatim strings the way the gateway sends them.
func (s *Service) StockPrice(ctx context.Context, symbol, startDate, endDate string, pageIndex, pageSize int) ([]model.StockPrice, error) {
	startDate, endDate = dateRange(startDate, endDate)
	query := url.Values{
		"symbol":    {symbol},
		"fromDate":  {startDate},
		"toDate":    {endDate},
		"pageIndex": {strconv.Itoa(pageIndex)},
		"pageSize":  {strconv.Itoa(pageSize)},
		"market":    {""},
	}
	var rows []stockPriceRow
	if err := s.get(ctx, "stock price", dailyStockPricePath, query, &rows); err != nil {
		return nil, err
	}
	out := make([]model.StockPrice, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// ListIndexNames returns the index codes known to the exchange. exchange may
// be empty for all markets.
func (s *Service) ListIndexNames(ctx context.Context, exchange string, pageIndex, pageSize int) ([]string, error) {
	query := url.Values{
		"exchange":  {exchange},
		"pageIndex": {strconv.Itoa(pageIndex)},
		"pageSize":  {strconv.Itoa(pageSize)},
	}
	var rows []struct {
		IndexCode string `json:"IndexCode"`
	}
	if err := s.get(ctx, "index list", indexListPath, query, &rows); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.IndexCode)
	}
	return out, nil
}

// ListIndexComponents returns the constituent symbols of one index.
func (s *Service) ListIndexComponents(ctx context.Context, indexID string, pageIndex, pageSize int) ([]string, error) {
	query := url.Values{
		"indexCode": {indexID},
		"pageIndex": {strconv.Itoa(pageIndex)},
		"pageSize":  {strconv.Itoa(pageSize)},
	}
	var rows []struct {
		IndexComponent []struct {
			StockSymbol string `json:"StockSymbol"`
		} `json:"IndexComponent"`
	}
	if err := s.get(ctx, "index components", indexComponentsPath, query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(rows[0].IndexComponent))
	for _, c := range rows[0].IndexComponent {
		out = append(out, c.StockSymbol)
	}
	return out, nil
}
