package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TradeInfo is one side's view of a fill: which order, at that order's own
// limit price, for how much.
type TradeInfo struct {
	OrderID  OrderID
	Price    Price
	Quantity Quantity
}

// Trade is the immutable record of one match event: the bid side and ask
// side of a single fill. Price is the executed price, which is always the
// maker's limit price (the side that was resting first). Both sides' own
// prices remain available through their TradeInfo, so a caller preferring
// a different convention can apply it.
type Trade struct {
	ID        string
	Bid       TradeInfo
	Ask       TradeInfo
	Price     Price
	Quantity  Quantity
	Timestamp time.Time
}

type Trades = []Trade

func newTrade(bid, ask TradeInfo, executed Price, quantity Quantity) Trade {
	return Trade{
		ID:        uuid.New().String(),
		Bid:       bid,
		Ask:       ask,
		Price:     executed,
		Quantity:  quantity,
		Timestamp: time.Now(),
	}
}

func (t Trade) String() string {
	return fmt.Sprintf("trade %s [bid %d / ask %d, %d@%d]",
		t.ID, t.Bid.OrderID, t.Ask.OrderID, t.Quantity, t.Price)
}
