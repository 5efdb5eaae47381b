package engine

import "fmt"

// Order is a single resting or incoming order. Identity (id, side, price,
// kind) is fixed at construction; only the remaining quantity changes, and
// only through Fill. The book is the sole caller of Fill.
type Order struct {
	kind      OrderKind
	id        OrderID
	side      Side
	price     Price
	initial   Quantity
	remaining Quantity

	// Arrival sequence, assigned by the book on insertion. Zero until the
	// order enters a book. Determines FIFO position within a level and
	// which side of a match was the maker.
	seq uint64
}

func NewOrder(kind OrderKind, id OrderID, side Side, price Price, quantity Quantity) *Order {
	return &Order{
		kind:      kind,
		id:        id,
		side:      side,
		price:     price,
		initial:   quantity,
		remaining: quantity,
	}
}

func (o *Order) Kind() OrderKind { return o.kind }
func (o *Order) ID() OrderID     { return o.id }
func (o *Order) Side() Side      { return o.side }
func (o *Order) Price() Price    { return o.price }

func (o *Order) InitialQuantity() Quantity   { return o.initial }
func (o *Order) RemainingQuantity() Quantity { return o.remaining }
func (o *Order) FilledQuantity() Quantity    { return o.initial - o.remaining }

func (o *Order) IsFilled() bool { return o.remaining == 0 }

// Fill reduces the remaining quantity. Filling beyond the remaining
// quantity means the matching loop computed a bad match size; that is an
// internal invariant violation, never a normal-path error.
func (o *Order) Fill(quantity Quantity) error {
	if quantity > o.remaining {
		return fmt.Errorf("order %d: fill %d exceeds remaining %d: %w",
			o.id, quantity, o.remaining, ErrOverFill)
	}
	o.remaining -= quantity
	return nil
}

func (o *Order) String() string {
	return fmt.Sprintf("order %d [%s %s %d@%d, remaining %d]",
		o.id, o.kind, o.side, o.initial, o.price, o.remaining)
}

// OrderModify is a request to replace an existing order's side, price and
// quantity while keeping its id. It carries no behaviour beyond conversion
// into the replacement order.
type OrderModify struct {
	id       OrderID
	side     Side
	price    Price
	quantity Quantity
}

func NewOrderModify(id OrderID, side Side, price Price, quantity Quantity) OrderModify {
	return OrderModify{
		id:       id,
		side:     side,
		price:    price,
		quantity: quantity,
	}
}

func (m OrderModify) ID() OrderID        { return m.id }
func (m OrderModify) Side() Side         { return m.side }
func (m OrderModify) Price() Price       { return m.price }
func (m OrderModify) Quantity() Quantity { return m.quantity }

// ToOrder builds the replacement order. The kind is caller-specified so a
// modify preserves the original order's kind.
func (m OrderModify) ToOrder(kind OrderKind) *Order {
	return NewOrder(kind, m.id, m.side, m.price, m.quantity)
}
