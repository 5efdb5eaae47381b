package exchange

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"skoll/internal/engine"
)

const (
	COMMAND_CHAN_SIZE = 100
)

var ErrWorkerClosed = errors.New("book worker closed")

// Command is one unit of work applied to the book by the worker goroutine.
type Command = func(book *engine.OrderBook)

// BookWorker owns mutating access to a single order book. All operations,
// reads included, funnel through one goroutine over a command channel, so
// callers on any number of goroutines observe the book as a strict
// sequence of whole operations and every reply reflects a quiescent book.
//
// The engine itself carries a mutex, so the worker is one of two valid
// disciplines for concurrent use; it exists for callers that want ordering
// across operations, not just atomicity of each one.
type BookWorker struct {
	book     *engine.OrderBook
	commands chan Command
	t        *tomb.Tomb
}

func NewBookWorker(ctx context.Context, book *engine.OrderBook) *BookWorker {
	t, _ := tomb.WithContext(ctx)
	worker := &BookWorker{
		book:     book,
		commands: make(chan Command, COMMAND_CHAN_SIZE),
		t:        t,
	}
	t.Go(worker.loop)
	return worker
}

// The worker waits on commands and actions them until killed.
func (w *BookWorker) loop() error {
	for {
		select {
		case <-w.t.Dying():
			return nil
		case cmd := <-w.commands:
			cmd(w.book)
		}
	}
}

// Stop kills the worker and waits for the loop to exit. Commands submitted
// after Stop report ErrWorkerClosed.
func (w *BookWorker) Stop() error {
	w.t.Kill(nil)
	return w.t.Wait()
}

func (w *BookWorker) submit(cmd Command) error {
	select {
	case w.commands <- cmd:
		return nil
	case <-w.t.Dying():
		return ErrWorkerClosed
	}
}

// AddOrder submits an order and waits for the matching result.
func (w *BookWorker) AddOrder(order *engine.Order) (engine.Trades, error) {
	type result struct {
		trades engine.Trades
		err    error
	}
	reply := make(chan result, 1)

	if err := w.submit(func(book *engine.OrderBook) {
		trades, err := book.AddOrder(order)
		reply <- result{trades: trades, err: err}
	}); err != nil {
		return nil, err
	}

	select {
	case res := <-reply:
		if res.err != nil {
			log.Error().Err(res.err).
				Uint64("order_id", uint64(order.ID())).
				Msg("order rejected")
			return res.trades, res.err
		}
		if len(res.trades) > 0 {
			log.Info().
				Uint64("order_id", uint64(order.ID())).
				Int("trades", len(res.trades)).
				Msg("order matched")
		}
		return res.trades, nil
	case <-w.t.Dead():
		return nil, ErrWorkerClosed
	}
}

// CancelOrder removes a resting order. An unknown id is treated as a
// closed-path race (the order filled before the cancel arrived) and is not
// surfaced as an error.
func (w *BookWorker) CancelOrder(id engine.OrderID) error {
	reply := make(chan error, 1)

	if err := w.submit(func(book *engine.OrderBook) {
		reply <- book.CancelOrder(id)
	}); err != nil {
		return err
	}

	select {
	case err := <-reply:
		if errors.Is(err, engine.ErrOrderNotFound) {
			log.Debug().Uint64("order_id", uint64(id)).Msg("cancel for unknown order")
			return nil
		}
		return err
	case <-w.t.Dead():
		return ErrWorkerClosed
	}
}

// ModifyOrder replaces a resting order and waits for the matching result.
func (w *BookWorker) ModifyOrder(mod engine.OrderModify) (engine.Trades, error) {
	type result struct {
		trades engine.Trades
		err    error
	}
	reply := make(chan result, 1)

	if err := w.submit(func(book *engine.OrderBook) {
		trades, err := book.ModifyOrder(mod)
		reply <- result{trades: trades, err: err}
	}); err != nil {
		return nil, err
	}

	select {
	case res := <-reply:
		if res.err != nil {
			log.Error().Err(res.err).
				Uint64("order_id", uint64(mod.ID())).
				Msg("modify rejected")
		}
		return res.trades, res.err
	case <-w.t.Dead():
		return nil, ErrWorkerClosed
	}
}

// Levels returns a depth snapshot taken between operations.
func (w *BookWorker) Levels() (engine.OrderBookLevelInfos, error) {
	reply := make(chan engine.OrderBookLevelInfos, 1)

	if err := w.submit(func(book *engine.OrderBook) {
		reply <- book.Levels()
	}); err != nil {
		return engine.OrderBookLevelInfos{}, err
	}

	select {
	case infos := <-reply:
		return infos, nil
	case <-w.t.Dead():
		return engine.OrderBookLevelInfos{}, ErrWorkerClosed
	}
}

// Size reports the number of resting orders, observed between operations.
func (w *BookWorker) Size() (int, error) {
	reply := make(chan int, 1)

	if err := w.submit(func(book *engine.OrderBook) {
		reply <- book.Size()
	}); err != nil {
		return 0, err
	}

	select {
	case n := <-reply:
		return n, nil
	case <-w.t.Dead():
		return 0, ErrWorkerClosed
	}
}
