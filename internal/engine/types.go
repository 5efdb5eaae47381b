package engine

// Alias integers for clearer typing across the engine. Prices are signed
// ticks so a sentinel (e.g. a negative "no price") stays representable.
type (
	OrderID  uint64
	Price    int32
	Quantity uint32
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// Opposite returns the counterside, i.e. the side an order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderKind int

const (
	// GoodTillCancel orders rest on the book after any immediate match,
	// until they are fully filled or explicitly cancelled.
	GoodTillCancel OrderKind = iota
	// FillAndKill orders match immediately against the book as far as
	// liquidity allows. Any unmatched remainder is discarded; they never
	// rest.
	FillAndKill
)

func (k OrderKind) String() string {
	switch k {
	case GoodTillCancel:
		return "good-till-cancel"
	case FillAndKill:
		return "fill-and-kill"
	}
	return "unknown"
}
