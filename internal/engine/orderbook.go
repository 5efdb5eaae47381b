package engine

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tidwall/btree"
)

var (
	ErrDuplicateOrder     = errors.New("duplicate order id")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotModifiable = errors.New("order kind cannot be modified")
	ErrOverFill           = errors.New("fill exceeds remaining quantity")
)

// priceLevel holds the orders resting at one price: a FIFO queue of order
// ids in strict arrival order, plus a running aggregate of their remaining
// quantities. A level with an empty queue never stays in a tree.
type priceLevel struct {
	price  Price
	queue  *list.List // element values are OrderID
	volume Quantity
}

type priceLevels = btree.BTreeG[*priceLevel]

// orderEntry is the arena slot for one resting order. The orders map owning
// these entries is the single ownership root; level queues carry ids only,
// and elem is the non-owning position reference that makes cancellation
// constant time.
type orderEntry struct {
	order *Order
	level *priceLevel
	elem  *list.Element
}

// OrderBook is a single-instrument limit order book with strict price-time
// priority. Each book is an explicitly constructed instance, so callers may
// run one per instrument. Every public operation takes the book mutex for
// its full duration, matching included, so mutations are atomic with
// respect to each other and to snapshots.
type OrderBook struct {
	mu sync.Mutex

	// Price levels sorted best-first by each comparator: bids greatest
	// first, asks least first. Min on either tree is top of book.
	bids *priceLevels
	asks *priceLevels

	// Arena and index over every resting order.
	orders map[OrderID]*orderEntry

	// Monotonic arrival counter, stamped onto orders as they enter the
	// book. The lower sequence of a matched pair is the maker.
	seq uint64

	log zerolog.Logger
}

type Option func(*OrderBook)

// WithLogger attaches a logger for order and trade flow. The default is a
// no-op logger; the engine works unchanged without one.
func WithLogger(log zerolog.Logger) Option {
	return func(book *OrderBook) {
		book.log = log
	}
}

func NewOrderBook(opts ...Option) *OrderBook {
	// Sorted greatest first.
	bids := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price > b.price
	})
	// Sorted least first.
	asks := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price < b.price
	})

	book := &OrderBook{
		bids:   bids,
		asks:   asks,
		orders: make(map[OrderID]*orderEntry),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(book)
	}
	return book
}

// AddOrder submits an order to the book. The order is rejected if its id is
// already resting. A FillAndKill order that cannot cross anything on
// arrival is discarded without touching the book and produces no trades.
// Otherwise the order joins the tail of its price level and matching runs
// to a fixed point; the trades produced (possibly none) are returned, and
// any FillAndKill remainder is cancelled so it never rests.
func (book *OrderBook) AddOrder(order *Order) (Trades, error) {
	book.mu.Lock()
	defer book.mu.Unlock()

	if _, ok := book.orders[order.ID()]; ok {
		return nil, fmt.Errorf("order %d: %w", order.ID(), ErrDuplicateOrder)
	}

	// An order with nothing left to fill is already complete; resting it
	// would leave a zero-quantity order on a level.
	if order.IsFilled() {
		return nil, nil
	}

	if order.Kind() == FillAndKill && !book.canMatch(order.Side(), order.Price()) {
		book.log.Debug().
			Uint64("order_id", uint64(order.ID())).
			Msg("fill-and-kill discarded, no crossing level")
		return nil, nil
	}

	book.insert(order)
	trades, err := book.match()

	// FillAndKill never rests: drop whatever the matching loop left over.
	if order.Kind() == FillAndKill {
		if entry, ok := book.orders[order.ID()]; ok {
			book.remove(entry)
		}
	}

	if err != nil {
		book.log.Error().Err(err).
			Uint64("order_id", uint64(order.ID())).
			Msg("matching aborted")
		return trades, err
	}
	return trades, nil
}

// CancelOrder removes a resting order. An unknown id reports
// ErrOrderNotFound and leaves the book untouched; callers racing against a
// full fill may treat that as benign.
func (book *OrderBook) CancelOrder(id OrderID) error {
	book.mu.Lock()
	defer book.mu.Unlock()

	entry, ok := book.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	book.remove(entry)

	book.log.Debug().Uint64("order_id", uint64(id)).Msg("order cancelled")
	return nil
}

// ModifyOrder replaces a resting order's side, price and quantity while
// preserving its id and kind, implemented as cancel-then-add under one
// lock. The replacement re-enters full matching, so a price change can fill
// immediately. Only GoodTillCancel orders are modifiable; FillAndKill is a
// one-shot request.
func (book *OrderBook) ModifyOrder(mod OrderModify) (Trades, error) {
	book.mu.Lock()
	defer book.mu.Unlock()

	entry, ok := book.orders[mod.ID()]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", mod.ID(), ErrOrderNotFound)
	}
	kind := entry.order.Kind()
	if kind != GoodTillCancel {
		return nil, fmt.Errorf("order %d (%s): %w", mod.ID(), kind, ErrOrderNotModifiable)
	}

	book.remove(entry)
	replacement := mod.ToOrder(kind)
	if replacement.IsFilled() {
		// Modifying to zero quantity is a cancel.
		return nil, nil
	}

	book.insert(replacement)
	trades, err := book.match()
	if err != nil {
		book.log.Error().Err(err).
			Uint64("order_id", uint64(replacement.ID())).
			Msg("matching aborted")
	}
	return trades, err
}

// Levels produces a detached depth snapshot: (price, aggregate remaining
// quantity) per level, bids descending, asks ascending. Pure projection,
// never mutates the book.
func (book *OrderBook) Levels() OrderBookLevelInfos {
	book.mu.Lock()
	defer book.mu.Unlock()

	collect := func(levels *priceLevels) LevelInfos {
		infos := make(LevelInfos, 0, levels.Len())
		levels.Scan(func(level *priceLevel) bool {
			infos = append(infos, LevelInfo{Price: level.price, Quantity: level.volume})
			return true
		})
		return infos
	}
	return NewOrderBookLevelInfos(collect(book.bids), collect(book.asks))
}

// Size reports the number of resting orders.
func (book *OrderBook) Size() int {
	book.mu.Lock()
	defer book.mu.Unlock()
	return len(book.orders)
}

// BestBid reports the highest bid level, if any.
func (book *OrderBook) BestBid() (LevelInfo, bool) {
	book.mu.Lock()
	defer book.mu.Unlock()
	return bestOf(book.bids)
}

// BestAsk reports the lowest ask level, if any.
func (book *OrderBook) BestAsk() (LevelInfo, bool) {
	book.mu.Lock()
	defer book.mu.Unlock()
	return bestOf(book.asks)
}

func bestOf(levels *priceLevels) (LevelInfo, bool) {
	level, ok := levels.Min()
	if !ok {
		return LevelInfo{}, false
	}
	return LevelInfo{Price: level.price, Quantity: level.volume}, true
}

// canMatch reports whether an order on the given side at the given price
// would cross the current top of the counterside.
func (book *OrderBook) canMatch(side Side, price Price) bool {
	if side == Buy {
		bestAsk, ok := book.asks.Min()
		return ok && price >= bestAsk.price
	}
	bestBid, ok := book.bids.Min()
	return ok && price <= bestBid.price
}

// insert stamps the order's arrival sequence and places it at the tail of
// its price level, creating the level if absent.
func (book *OrderBook) insert(order *Order) {
	book.seq++
	order.seq = book.seq

	levels := book.sideLevels(order.Side())
	level, ok := levels.GetMut(&priceLevel{price: order.Price()})
	if !ok {
		level = &priceLevel{price: order.Price(), queue: list.New()}
		levels.Set(level)
	}
	elem := level.queue.PushBack(order.ID())
	level.volume += order.RemainingQuantity()

	book.orders[order.ID()] = &orderEntry{order: order, level: level, elem: elem}

	book.log.Debug().
		Uint64("order_id", uint64(order.ID())).
		Stringer("side", order.Side()).
		Int32("price", int32(order.Price())).
		Uint32("quantity", uint32(order.RemainingQuantity())).
		Msg("order resting")
}

// remove unlinks an order from its level queue and the arena, deleting the
// level the instant it empties.
func (book *OrderBook) remove(entry *orderEntry) {
	entry.level.queue.Remove(entry.elem)
	entry.level.volume -= entry.order.RemainingQuantity()
	delete(book.orders, entry.order.ID())

	if entry.level.queue.Len() == 0 {
		book.sideLevels(entry.order.Side()).Delete(entry.level)
	}
}

func (book *OrderBook) sideLevels(side Side) *priceLevels {
	if side == Buy {
		return book.bids
	}
	return book.asks
}

// match consumes top-of-book levels while they cross (bid >= ask), pairing
// the front orders of each best level in price-time priority. Every
// iteration strictly reduces remaining quantity on at least one side, so
// the loop always reaches a fixed point. A fill error means the loop
// computed an impossible match size; the operation aborts there with the
// trades emitted so far.
func (book *OrderBook) match() (Trades, error) {
	var trades Trades

	for {
		bestBid, bidOk := book.bids.MinMut()
		bestAsk, askOk := book.asks.MinMut()

		// If either side is empty, or prices no longer cross, we are done.
		if !bidOk || !askOk || bestBid.price < bestAsk.price {
			break
		}

		for bestBid.queue.Len() > 0 && bestAsk.queue.Len() > 0 {
			bidEntry := book.orders[bestBid.queue.Front().Value.(OrderID)]
			askEntry := book.orders[bestAsk.queue.Front().Value.(OrderID)]
			bid, ask := bidEntry.order, askEntry.order

			quantity := min(bid.RemainingQuantity(), ask.RemainingQuantity())
			if err := bid.Fill(quantity); err != nil {
				return trades, err
			}
			if err := ask.Fill(quantity); err != nil {
				return trades, err
			}
			bestBid.volume -= quantity
			bestAsk.volume -= quantity

			// The maker is whichever side was resting first; the trade
			// executes at the maker's limit price.
			executed := ask.Price()
			if bid.seq < ask.seq {
				executed = bid.Price()
			}
			trade := newTrade(
				TradeInfo{OrderID: bid.ID(), Price: bid.Price(), Quantity: quantity},
				TradeInfo{OrderID: ask.ID(), Price: ask.Price(), Quantity: quantity},
				executed,
				quantity,
			)
			trades = append(trades, trade)

			book.log.Debug().
				Uint64("bid_id", uint64(bid.ID())).
				Uint64("ask_id", uint64(ask.ID())).
				Int32("price", int32(executed)).
				Uint32("quantity", uint32(quantity)).
				Msg("trade")

			if bid.IsFilled() {
				bestBid.queue.Remove(bidEntry.elem)
				delete(book.orders, bid.ID())
			}
			if ask.IsFilled() {
				bestAsk.queue.Remove(askEntry.elem)
				delete(book.orders, ask.ID())
			}
		}

		// Fully consumed levels come off their trees immediately.
		if bestBid.queue.Len() == 0 {
			book.bids.Delete(bestBid)
		}
		if bestAsk.queue.Len() == 0 {
			book.asks.Delete(bestAsk)
		}
	}

	return trades, nil
}
