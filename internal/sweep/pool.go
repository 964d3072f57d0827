package sweep

import (
	"errors"
	"time"

	"github.com/msd-research/metropolis/internal/timeutil"
)

// pollWait bounds how long Submit and Drain wait on a busy slot before
// moving to the next one.
const pollWait = 10 * time.Millisecond

// Pool runs jobs on a fixed set of worker slots. Submit hands the next job
// to a free slot, harvesting at most one finished result on the way; Drain
// collects everything still in flight after the last Submit. Each submitted
// job is collected exactly once, in the order the round-robin poll finds
// completions, which is not submission order.
//
// A Pool with one slot runs jobs synchronously on the caller's goroutine.
// All methods must be called from a single goroutine.
type Pool[J, R any] struct {
	run   func(J) R
	slots []*slot[R]
	next  int
	clock timeutil.Clock
}

type slot[R any] struct {
	ch   chan R
	busy bool
}

// NewPool creates a pool with n slots running fn. n must be at least 1.
func NewPool[J, R any](n int, fn func(J) R, clock timeutil.Clock) (*Pool[J, R], error) {
	if n < 1 {
		return nil, errors.New("pool needs at least one slot")
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	slots := make([]*slot[R], n)
	for i := range slots {
		slots[i] = &slot[R]{}
	}
	return &Pool[J, R]{run: fn, slots: slots, clock: clock}, nil
}

// Size returns the slot count.
func (p *Pool[J, R]) Size() int {
	return len(p.slots)
}

// Submit dispatches job into a slot, blocking until one is available. If a
// finished result was harvested to free the slot it is returned with true.
func (p *Pool[J, R]) Submit(job J) (R, bool) {
	var zero R

	if len(p.slots) == 1 {
		// Degenerate single-slot pool: run inline, no goroutines.
		return p.run(job), true
	}

	for {
		s := p.slots[p.next]
		if !s.busy {
			p.start(s, job)
			p.advance()
			return zero, false
		}
		select {
		case r := <-s.ch:
			p.start(s, job)
			p.advance()
			return r, true
		case <-p.clock.After(pollWait):
			// Slot still running; try the next one.
			p.advance()
		}
	}
}

// Drain collects every in-flight result, calling emit as each finishes.
// Slots that never ran a job retire immediately.
func (p *Pool[J, R]) Drain(emit func(R)) {
	remaining := 0
	for _, s := range p.slots {
		if s.busy {
			remaining++
		}
	}
	for remaining > 0 {
		for _, s := range p.slots {
			if !s.busy {
				continue
			}
			select {
			case r := <-s.ch:
				s.busy = false
				remaining--
				emit(r)
			case <-p.clock.After(pollWait):
			}
		}
	}
}

func (p *Pool[J, R]) start(s *slot[R], job J) {
	ch := make(chan R, 1)
	s.ch = ch
	s.busy = true
	go func() {
		ch <- p.run(job)
	}()
}

func (p *Pool[J, R]) advance() {
	p.next = (p.next + 1) % len(p.slots)
}
