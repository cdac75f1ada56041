package broker

// Gateway message IDs, modeled on the IB API message numbering the pack's
// ibkr client dispatches on (msgTickPrice, msgAccountSummary, msgPosition, ...).
const (
	msgStartAPI         = "71"
	msgPlaceOrder       = "3"
	msgCancelOrder      = "4"
	msgReqPositions     = "61"
	msgReqAccountSummary = "63"
	msgReqMarketData    = "1"
	msgReqHistoricalData = "20"

	msgTickPrice         = 1
	msgOrderStatus       = 3
	msgAccountSummary    = 63
	msgAccountSummaryEnd = 64
	msgPosition          = 61
	msgPositionEnd       = 62
	msgErrMsg            = 4
	msgHistoricalData    = 17
)

const apiVersionRange = "v100..151"
