package model

type MarketDepthLevel struct {
	Price      Price    `json:"price"`
	Volume     Quantity `json:"volume"`
	OrderCount int      `json:"orderCount"`
}

// BookDepth holds up to N levels per side; each side is truncated, never
// padded, when the ladder is shorter.
type BookDepth struct {
	BidPrices []Price    `json:"bidPrices"`
	BidSizes  []Quantity `json:"bidSizes"`
	AskPrices []Price    `json:"askPrices"`
	AskSizes  []Quantity `json:"askSizes"`
}

// TopOfBook represents best bid/ask
type TopOfBook struct {
	BestBid *MarketDepthLevel `json:"bestBid"`
	BestAsk *MarketDepthLevel `json:"bestAsk"`
	Spread  Price             `json:"spread"`
}
