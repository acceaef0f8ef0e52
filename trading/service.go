package trading

import (
	"context"
	"sort"
	"time"

	"ssiflow/internal/model"
)

const (
	defaultPage     = 1
	defaultPageSize = 50

	dateLayout = "02/01/2006"
)

// Service is the per-account trading surface. Order mutations stamp the
// session's account and market ids onto the order and mutate it in place;
// they return *RejectedError when the gateway declines and *TransportError
// when the round trip fails.
type Service interface {
	AccountID() string

	CreateOrder(ctx context.Context, order *model.CreatedOrder) error
	CancelOrder(ctx context.Context, order *model.CreatedOrder) error
	// ModifyOrder fills only the zero quantity and price fields from the new
	// arguments: values already on the order win.
	ModifyOrder(ctx context.Context, order *model.CreatedOrder, newQty int64, newPrice float64) error

	AccountBalance(ctx context.Context) (model.AccountBalance, error)
	MaxBuySellQty(ctx context.Context, symbol string, price float64, side string) (model.MaxBuySellQty, error)

	CurrentPositions(ctx context.Context) (map[string]model.StockPosition, error)
	ClosedPositions(ctx context.Context) (map[string]model.StockPosition, error)
	CurrentPosition(ctx context.Context, symbol string) (model.StockPosition, error)
	ClosedPosition(ctx context.Context, symbol string) (model.StockPosition, error)

	// OrderHistory returns orders between startDate and endDate (dd/MM/yyyy,
	// defaulting to today..tomorrow) whose status belongs to group. A nil
	// group keeps everything.
	OrderHistory(ctx context.Context, group model.OrderStatusGroup, startDate, endDate string, page, pageSize int) ([]model.CreatedOrder, error)
	PendingOrders(ctx context.Context) ([]model.CreatedOrder, error)
	FilledOrders(ctx context.Context) ([]model.CreatedOrder, error)

	ViewPortfolio(ctx context.Context) ([]model.StockPosition, error)
}

// derived implements the Service operations that are pure compositions of the
// primitives, shared by the live and paper sessions.
type derived struct {
	svc Service
}

func (d derived) PendingOrders(ctx context.Context) ([]model.CreatedOrder, error) {
	return d.svc.OrderHistory(ctx, model.WorkingOrders, "", "", defaultPage, defaultPageSize)
}

func (d derived) FilledOrders(ctx context.Context) ([]model.CreatedOrder, error) {
	return d.svc.OrderHistory(ctx, model.FilledOrders, "", "", defaultPage, defaultPageSize)
}

// ViewPortfolio returns the open positions sorted by symbol ascending.
func (d derived) ViewPortfolio(ctx context.Context) ([]model.StockPosition, error) {
	positions, err := d.svc.CurrentPositions(ctx)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(positions))
	for s := range positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	out := make([]model.StockPosition, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, positions[s])
	}
	return out, nil
}

// CurrentPosition returns the zero position for a symbol the account does not
// hold.
func (d derived) CurrentPosition(ctx context.Context, symbol string) (model.StockPosition, error) {
	positions, err := d.svc.CurrentPositions(ctx)
	if err != nil {
		return model.StockPosition{}, err
	}
	return positions[symbol], nil
}

func (d derived) ClosedPosition(ctx context.Context, symbol string) (model.StockPosition, error) {
	positions, err := d.svc.ClosedPositions(ctx)
	if err != nil {
		return model.StockPosition{}, err
	}
	return positions[symbol], nil
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

// filterByGroup keeps the orders whose status belongs to group. A nil group
// keeps everything.
func filterByGroup(orders []model.CreatedOrder, group model.OrderStatusGroup) []model.CreatedOrder {
	if group == nil {
		return orders
	}
	out := make([]model.CreatedOrder, 0, len(orders))
	for _, o := range orders {
		if group.Contains(o.OrderStatus) {
			out = append(out, o)
		}
	}
	return out
}
