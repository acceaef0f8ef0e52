package model

// ChannelID identifies an upstream subscription category on the market data
// hub. The set is fixed by the gateway protocol.
type ChannelID string

const (
	ChannelSecurityStatus ChannelID = "F"
	ChannelMarket         ChannelID = "X"
	ChannelForeignRoom    ChannelID = "R"
	ChannelIndex          ChannelID = "MI"
	ChannelBar            ChannelID = "B"
)

// ReservedKeyAll means "every symbol" in a subscription string. It is never a
// concrete business key; registration must enumerate symbols explicitly.
const ReservedKeyAll = "ALL"

// OrderSide values accepted by the trading gateway.
const (
	SideBuy  = "B"
	SideSell = "S"
)

// Order types.
const (
	OrderTypeLimit        = "LO"
	OrderTypeMarket       = "MAK"
	OrderTypeOpenAuction  = "ATO"
	OrderTypeCloseAuction = "ATC"
)

// Stop order types for derivatives.
const (
	StopTypeDown         = "D"
	StopTypeUp           = "U"
	StopTypeTrailingUp   = "V"
	StopTypeTrailingDown = "E"
	StopTypeOCO          = "O"
	StopTypeBullBear     = "B"
	StopTypeDefault      = ""
)

// Security markets.
const (
	MarketHOSE  = "HOSE"
	MarketHNX   = "HNX"
	MarketUPCOM = "UPCOM"
	MarketDER   = "DER"
)

// Trading markets used as marketID on order requests.
const (
	TradingMarketStock  = "VN"
	TradingMarketFuture = "VNFE"
)

// Raw order status codes returned by the backend.
const (
	StatusWaitingApproval       = "WA"
	StatusReadyToSend           = "RS"
	StatusSentToExchange        = "SD"
	StatusQueuedInExchange      = "QU"
	StatusFullyFilled           = "FF"
	StatusPartiallyFilled       = "PF"
	StatusFilledPartCancelled   = "FFPC"
	StatusWaitingModify         = "WM"
	StatusWaitingCancel         = "WC"
	StatusCancelled             = "CL"
	StatusRejected              = "RJ"
	StatusExpired               = "EX"
	StatusStopOrderReady        = "SOR"
	StatusStopOrderSent         = "SOS"
	StatusPreSessionOrder       = "IAV"
	StatusPreSessionStopOrder   = "SOI"
	StatusPreSessionPlaceholder = "PAS"
)

// OrderStatusGroup partitions the raw status codes into the four coarse
// groups filtering is defined over. New raw codes join a group without
// touching call sites.
type OrderStatusGroup []string

var (
	FilledOrders = OrderStatusGroup{
		StatusPartiallyFilled, StatusFullyFilled, StatusFilledPartCancelled,
	}
	WorkingOrders = OrderStatusGroup{
		StatusWaitingApproval, StatusReadyToSend, StatusSentToExchange,
		StatusQueuedInExchange, StatusPartiallyFilled, StatusWaitingModify,
		StatusWaitingCancel, StatusStopOrderReady, StatusStopOrderSent,
		StatusPreSessionOrder,
	}
	CanceledOrders = OrderStatusGroup{
		StatusCancelled, StatusRejected, StatusExpired,
	}
	WaitingOrders = OrderStatusGroup{
		StatusPreSessionStopOrder, StatusPreSessionPlaceholder,
	}
)

// Contains reports whether the raw status code belongs to the group.
func (g OrderStatusGroup) Contains(status string) bool {
	for _, s := range g {
		if s == status {
			return true
		}
	}
	return false
}

// Indexes known on the exchange. Used for subscription configuration only.
var AllIndexes = []string{
	"VN30", "HNX30", "VNALL", "VNSML", "VNIT", "VNX50", "VNXALL", "VNCOND",
	"HNXIndex", "VNUTI", "VNMID", "VNHEAL", "VNSI", "VNFINSELECT", "VNREAL",
	"VNIND", "VN100", "HNXUpcomIndex", "VNDIAMOND", "VNCONS", "VNFINLEAD",
	"VNMAT", "VNIndex", "VNENE", "VNFIN",
}
