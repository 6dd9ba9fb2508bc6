// Package subscription implements the Subscription Engine (spec §4.4): one
// goroutine per active stream driving the session state machine
// Opening → Active ↔ Idle → Closing/Closed, with a terminal Displaced state
// reached on group takeover. Credit accounting is lock-free
// (CreditBalance, ported from the original implementation's
// flow/credit.rs); position tracking and delivery ordering are enforced by
// a single goroutine reading sequentially from the Durable Log Store and
// waiting on the Notify Bus between reads.
package subscription
