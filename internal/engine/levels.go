package engine

// LevelInfo is the public view of one price level: the price and the sum of
// remaining quantities of every order resting there.
type LevelInfo struct {
	Price    Price
	Quantity Quantity
}

type LevelInfos = []LevelInfo

// OrderBookLevelInfos is a depth snapshot: bids best-first (descending
// price), asks best-first (ascending price). Only levels with nonzero
// aggregate quantity appear. The snapshot is detached from the book and
// stays valid after further mutations.
type OrderBookLevelInfos struct {
	bids LevelInfos
	asks LevelInfos
}

func NewOrderBookLevelInfos(bids, asks LevelInfos) OrderBookLevelInfos {
	return OrderBookLevelInfos{bids: bids, asks: asks}
}

func (l OrderBookLevelInfos) Bids() LevelInfos { return l.bids }
func (l OrderBookLevelInfos) Asks() LevelInfos { return l.asks }
