package subscription

import "sync/atomic"

// CreditBalance is a lock-free credit accounting primitive, ported from the
// original implementation's CreditBalance (flow/credit.rs): an atomic
// uint32 with CAS-loop add/consume so the inbound (CreditGrant/Ack) and
// outbound (delivery) halves of a session never block on one another.
type CreditBalance struct {
	credits atomic.Uint32
}

// NewCreditBalance returns a balance starting at 0.
func NewCreditBalance() *CreditBalance { return &CreditBalance{} }

// Add grants amount additional credits, saturating at the cap (spec §4.4:
// "saturating at a large cap, e.g. 2^31-1"). Returns the new total.
func (c *CreditBalance) Add(amount uint32) uint32 {
	for {
		current := c.credits.Load()
		next := current + amount
		if next > creditCap || next < current { // overflow or past cap
			next = creditCap
		}
		if c.credits.CompareAndSwap(current, next) {
			return next
		}
	}
}

const creditCap = 1<<31 - 1

// TryConsume consumes one credit if available. Returns true on success.
func (c *CreditBalance) TryConsume() bool {
	return c.TryConsumeMany(1) == 1
}

// TryConsumeMany consumes up to amount credits, returning how many were
// actually consumed (may be less than requested, never more).
func (c *CreditBalance) TryConsumeMany(amount uint32) uint32 {
	for {
		current := c.credits.Load()
		if current == 0 {
			return 0
		}
		toConsume := amount
		if current < toConsume {
			toConsume = current
		}
		if c.credits.CompareAndSwap(current, current-toConsume) {
			return toConsume
		}
	}
}

// Available returns the current credit count.
func (c *CreditBalance) Available() uint32 { return c.credits.Load() }

// Reset zeroes the balance, returning the previous count.
func (c *CreditBalance) Reset() uint32 { return c.credits.Swap(0) }
