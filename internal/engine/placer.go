package engine

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"skoll/internal/market"
	"skoll/internal/utils"
)

const defaultIntakeSize = 1024

// Journal persists accepted submissions so a book can be rebuilt by replaying
// them in sequence order. Wired in by the surrounding system; nil disables it.
type Journal interface {
	Append(seq uint64, o *Order) error
}

// Placer decouples order submission from processing. Many goroutines may
// enqueue concurrently; a single consumer drains the intake so queue order is
// arrival order and intake sequence is the time-priority key.
type Placer struct {
	engine *Engine
	clock  utils.Clock

	mu      sync.Mutex // serializes id assignment with the intake send
	seq     uint64
	intake  chan *Order
	journal Journal
}

func NewPlacer(engine *Engine, clock utils.Clock) *Placer {
	return &Placer{
		engine: engine,
		clock:  clock,
		intake: make(chan *Order, defaultIntakeSize),
	}
}

// SetJournal attaches the submission journal. Call before the first Enqueue.
func (p *Placer) SetJournal(j Journal) {
	p.journal = j
}

// Enqueue accepts a validated order into the intake queue, assigning its
// identity and arrival timestamp exactly once. The identity is monotonic in
// intake order.
func (p *Placer) Enqueue(o *Order) error {
	return p.EnqueueWith(o, nil)
}

// EnqueueWith additionally invokes accepted with the assigned identity before
// the order becomes visible to the consumer, so callers can index it without
// racing the outcome. A rejected submission is never journaled or stamped.
func (p *Placer) EnqueueWith(o *Order, accepted func(id uint64)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Claim the intake slot before journaling or stamping: a full intake must
	// reject the submission with no partial state left behind.
	if len(p.intake) == cap(p.intake) {
		return ErrIntakeFull
	}

	seq := p.seq + 1
	if p.journal != nil {
		if err := p.journal.Append(seq, o); err != nil {
			return fmt.Errorf("journal submission %d: %w", seq, err)
		}
	}

	o.accept(seq, p.clock.Now())
	if accepted != nil {
		accepted(seq)
	}

	// Every producer holds the mutex, so the capacity check above guarantees
	// room for this send.
	p.intake <- o
	p.seq = seq
	return nil
}

// ProcessNext pops the oldest intake entry and submits it to its book.
// An empty intake yields a NoOrder response: nothing to do, not a defect.
func (p *Placer) ProcessNext() Response {
	select {
	case o := <-p.intake:
		return p.place(o)
	default:
		return noOrderResponse()
	}
}

// Run drains the intake as the single consumer until the tomb dies. A wait
// interrupted by shutdown leaves no partial state. Each outcome is handed to
// sink, if any.
func (p *Placer) Run(t *tomb.Tomb, sink func(o *Order, resp Response)) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case o := <-p.intake:
			resp := p.place(o)
			if sink != nil {
				sink(o, resp)
			}
		}
	}
}

// Cancel removes a resting order from the instrument's book by identity.
func (p *Placer) Cancel(sym market.Symbol, orderID uint64) Response {
	book, ok := p.engine.Book(sym)
	if !ok {
		return rejectionResponse(ErrBookNotFound)
	}
	return book.Cancel(orderID)
}

// Restore replays a journaled submission under its original identity,
// bypassing the journal. The internal sequence resumes past the replayed one.
func (p *Placer) Restore(seq uint64, o *Order) Response {
	p.mu.Lock()
	o.accept(seq, p.clock.Now())
	if seq > p.seq {
		p.seq = seq
	}
	p.mu.Unlock()

	return p.place(o)
}

func (p *Placer) place(o *Order) Response {
	book, ok := p.engine.Book(o.instrument.Symbol)
	if !ok {
		log.Warn().
			Str("instrument", string(o.instrument.Symbol)).
			Uint64("order", o.id).
			Msg("no book registered for instrument")
		return rejectionResponse(ErrBookNotFound)
	}

	resp, execs := book.Submit(o)
	log.Debug().
		Uint64("order", o.id).
		Str("instrument", string(o.instrument.Symbol)).
		Str("outcome", resp.Kind.String()).
		Int("executions", len(execs)).
		Msg("order processed")
	return resp
}
