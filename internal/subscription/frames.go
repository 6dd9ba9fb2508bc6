package subscription

import "github.com/google/uuid"

// InitialPosition selects where a new session starts reading from (spec
// §4.4).
type InitialPosition int

const (
	Earliest InitialPosition = iota
	Latest
)

// Init is the mandatory first upstream frame (spec §6's SubscriptionInit).
type Init struct {
	Topic           string
	Group           string
	ConsumerID      string
	InitialPosition InitialPosition
}

// UpstreamFrame is any frame a client may send after Init.
type UpstreamFrame interface{ isUpstream() }

// CreditGrant authorizes up to N further deliveries.
type CreditGrant struct{ N uint32 }

func (CreditGrant) isUpstream() {}

// Ack advances the (topic, group) cursor to Sequence once committed. The
// server trusts Sequence; MessageID is advisory only (spec §9 Open
// Questions — not currently cross-checked).
type Ack struct {
	MessageID uuid.UUID
	Sequence  uint64
}

func (Ack) isUpstream() {}

// MessageDelivery is the only downstream frame (spec §6).
type MessageDelivery struct {
	MessageID uuid.UUID
	Sequence  uint64
	Timestamp int64
	Attrs     map[string]string
	Payload   []byte
}

// Status is the terminal disposition of a stream (spec §6/§7).
type Status int

const (
	StatusOK Status = iota
	StatusCancelled
	StatusDisplaced // FailedPrecondition
	StatusUnavailable
	StatusInternal
	StatusInvalidArgument
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "Ok"
	case StatusCancelled:
		return "Cancelled"
	case StatusDisplaced:
		return "FailedPrecondition: displaced"
	case StatusUnavailable:
		return "Unavailable"
	case StatusInternal:
		return "Internal"
	case StatusInvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}
