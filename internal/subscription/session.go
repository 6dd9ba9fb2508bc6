package subscription

import (
	"context"

	"github.com/sluicelabs/sluice/internal/durablelog"
	"github.com/sluicelabs/sluice/internal/errs"
	"github.com/sluicelabs/sluice/internal/limits"
	"github.com/sluicelabs/sluice/internal/metrics"
	"github.com/sluicelabs/sluice/internal/topic"
	"github.com/sluicelabs/sluice/internal/writer"
)

// Sink is how a Session delivers frames to its transport, decoupling the
// state machine from the concrete wire format (HTTP/WebSocket today),
// mirroring the teacher's grpcSink seam in internal/server/grpc/channels.go.
type Sink interface {
	Send(MessageDelivery) error
}

// Session drives one bidirectional stream end-to-end (spec §4.4).
type Session struct {
	store    *durablelog.Store
	registry *topic.Registry
	writer   *writer.Core
	metrics  metrics.Hook

	topic      topic.Topic
	group      string
	position   uint64 // delivery_position: last sequence sent; reads resume after it
	credit     *CreditBalance
	membership *topic.Membership

	sink     Sink
	upstream <-chan UpstreamFrame
}

// Open validates the mandatory Init frame and constructs a Session,
// transitioning Opening → Active (spec §4.4 step 1).
func Open(ctx context.Context, store *durablelog.Store, registry *topic.Registry, w *writer.Core, m metrics.Hook, init Init, upstream <-chan UpstreamFrame, sink Sink) (*Session, error) {
	if m == nil {
		m = metrics.Noop{}
	}
	group := init.Group
	if group == "" {
		group = "default"
	}

	t, ok := registry.Get(init.Topic)
	if !ok {
		return nil, errs.ErrTopicNotFound
	}

	var start uint64
	switch init.InitialPosition {
	case Earliest:
		cursor, err := store.LookupCursor(t.ID, group)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, "subscription.Open", err)
		}
		start = cursor
	case Latest:
		start = registry.Tail(t.ID)
	}

	membership, err := registry.Join(t.ID, group)
	if err != nil {
		return nil, err
	}

	s := &Session{
		store:      store,
		registry:   registry,
		writer:     w,
		metrics:    m,
		topic:      t,
		group:      group,
		position:   start,
		credit:     NewCreditBalance(),
		membership: membership,
		sink:       sink,
		upstream:   upstream,
	}
	m.ObserveSubscriptionOpened()
	return s, nil
}

// Close releases the session's registry membership. Safe to call multiple
// times.
func (s *Session) Close() {
	s.registry.Leave(s.topic.ID, s.group, s.membership)
	s.metrics.ObserveSubscriptionClosed()
}

// Run drives the Active/Idle loop until the stream terminates, returning
// the terminal Status (spec §4.4 step 2-3).
func (s *Session) Run(ctx context.Context) Status {
	defer s.Close()

	notifyCh, err := s.registry.Subscribe(s.topic.ID)
	if err != nil {
		return StatusInternal
	}

	for {
		// Drain any pending upstream frame without blocking.
		select {
		case <-ctx.Done():
			return StatusCancelled
		case <-s.membership.Displaced:
			return StatusDisplaced
		case frame, ok := <-s.upstream:
			if !ok {
				return StatusOK
			}
			if status, terminal := s.handleUpstream(ctx, frame); terminal {
				return status
			}
			continue
		default:
		}

		if s.credit.Available() > 0 {
			delivered, err := s.deliverAvailable()
			if err != nil {
				return StatusInternal
			}
			if delivered > 0 {
				continue
			}
		}

		// notifyCh was captured before this read (or at loop entry), so a
		// commit landing between the last empty read and this select is still
		// observed via the close — spec §4.3's lost-wakeup avoidance rule.
		select {
		case <-ctx.Done():
			return StatusCancelled
		case <-s.membership.Displaced:
			return StatusDisplaced
		case frame, ok := <-s.upstream:
			if !ok {
				return StatusOK
			}
			if status, terminal := s.handleUpstream(ctx, frame); terminal {
				return status
			}
		case <-notifyCh:
			notifyCh, err = s.registry.Subscribe(s.topic.ID)
			if err != nil {
				return StatusInternal
			}
		}
	}
}

// handleUpstream consumes one upstream frame, returning (status, true) if
// the stream must terminate as a result.
func (s *Session) handleUpstream(ctx context.Context, frame UpstreamFrame) (Status, bool) {
	switch f := frame.(type) {
	case CreditGrant:
		if f.N > 0 {
			s.credit.Add(f.N)
		}
		return 0, false
	case Ack:
		// Asynchronous to delivery: the writer's max-monotone commit is what
		// actually advances the cursor; the session does not wait for it.
		go func() { _ = s.writer.Ack(ctx, s.topic.ID, s.group, f.Sequence) }()
		return 0, false
	default:
		return StatusInvalidArgument, true
	}
}

// deliverAvailable reads up to min(credit, ReadChunkSize) messages and
// sends them, decrementing credit and advancing position per delivery
// (spec §4.4 step 2, second bullet). Returns how many were delivered.
func (s *Session) deliverAvailable() (int, error) {
	delivered := 0
	for {
		want := s.credit.Available()
		if want == 0 {
			return delivered, nil
		}
		if want > limits.ReadChunkSize {
			want = limits.ReadChunkSize
		}
		msgs, err := s.store.ReadRange(s.topic.ID, s.position, int(want))
		if err != nil {
			return delivered, err
		}
		if len(msgs) == 0 {
			return delivered, nil
		}
		for _, msg := range msgs {
			if msg.Sequence <= s.position {
				// Defensive: spec §9 notes this is impossible by construction,
				// but a stale/duplicate row must never be redelivered.
				continue
			}
			if s.credit.TryConsumeMany(1) != 1 {
				return delivered, nil
			}
			err := s.sink.Send(MessageDelivery{
				MessageID: msg.Record.MessageID,
				Sequence:  msg.Sequence,
				Timestamp: msg.Record.Timestamp,
				Attrs:     msg.Record.Attrs,
				Payload:   msg.Record.Payload,
			})
			if err != nil {
				return delivered, err
			}
			s.position = msg.Sequence
			delivered++
			s.metrics.ObserveDelivery(s.topic.Name)
		}
		if len(msgs) < int(want) {
			return delivered, nil
		}
	}
}
