package topic

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sluicelabs/sluice/internal/errs"
)

// Topic is the read-only view of a registered topic exposed to callers
// outside the writer (spec §3, Topic entity).
type Topic struct {
	ID        uint64
	Name      string
	CreatedAt int64
}

// entry is the registry's internal per-topic record. tail is mutated only
// by the Writer Core goroutine but read concurrently by subscription
// sessions computing a LATEST start position, hence the atomic.
type entry struct {
	id        uint64
	name      string
	createdAt int64
	tail      atomic.Uint64

	notifyMu sync.Mutex
	notifyCh chan struct{}

	membersMu sync.Mutex
	members   map[string]*Membership // group name -> active membership
}

// Membership represents one session's claim on a (topic, group). Joining a
// group that already has a member closes the previous member's Displaced
// channel, which its read loop selects on to detect group takeover.
type Membership struct {
	Group     string
	Displaced chan struct{}
}

// Registry is the process-wide name/id/tail table plus notify bus and group
// membership map (spec §4.5). Reads (Get, List, Subscribe) are lock-free or
// RWMutex-guarded; mutations (NextID, Insert, UpdateTail, Join, Leave) are
// only ever called from the Writer Core or Subscription Engine goroutines
// per spec.md's ownership rules.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*entry
	byID   map[uint64]*entry
	nextID atomic.Uint64
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]*entry),
		byID:   make(map[uint64]*entry),
	}
}

// Load populates the registry from previously persisted topics, typically
// called once at boot with durablelog.Store.ListTopics's result. tails
// supplies each topic's last durable sequence (durablelog.Store.
// TailSequence), so the Writer Core's per-topic counters resume past the
// last committed record instead of restarting at zero and overwriting
// already-durable entries. maxID seeds the id counter so newly
// auto-created topics never collide.
func (r *Registry) Load(topics []Topic, tails map[uint64]uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var maxID uint64
	for _, t := range topics {
		e := &entry{id: t.ID, name: t.Name, createdAt: t.CreatedAt, notifyCh: make(chan struct{}), members: make(map[string]*Membership)}
		e.tail.Store(tails[t.ID])
		r.byName[t.Name] = e
		r.byID[t.ID] = e
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	r.nextID.Store(maxID)
}

// Get performs a lock-free-friendly read lookup by name.
func (r *Registry) Get(name string) (Topic, bool) {
	r.mu.RLock()
	e, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return Topic{}, false
	}
	return Topic{ID: e.id, Name: e.name, CreatedAt: e.createdAt}, true
}

// GetByID looks up a topic by id.
func (r *Registry) GetByID(id uint64) (Topic, bool) {
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return Topic{}, false
	}
	return Topic{ID: e.id, Name: e.name, CreatedAt: e.createdAt}, true
}

// List returns every registered topic ordered lexicographically by name.
func (r *Registry) List() []Topic {
	r.mu.RLock()
	out := make([]Topic, 0, len(r.byName))
	for _, e := range r.byName {
		out = append(out, Topic{ID: e.id, Name: e.name, CreatedAt: e.createdAt})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NextID allocates the next auto-increment topic id. Writer-only.
func (r *Registry) NextID() uint64 { return r.nextID.Add(1) }

// Insert registers a brand-new topic in memory after the Writer Core has
// durably committed it via EnsureTopic. Writer-only.
func (r *Registry) Insert(t Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &entry{id: t.ID, name: t.Name, createdAt: t.CreatedAt, notifyCh: make(chan struct{}), members: make(map[string]*Membership)}
	r.byName[t.Name] = e
	r.byID[t.ID] = e
}

// Tail returns the in-memory tail sequence for topicID (0 if unknown).
func (r *Registry) Tail(topicID uint64) uint64 {
	r.mu.RLock()
	e, ok := r.byID[topicID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	return e.tail.Load()
}

// UpdateTail advances the in-memory tail sequence and wakes every current
// notify subscriber for topicID. Writer-only, called once per distinct
// topic touched by a successfully committed batch, establishing the
// happens-before relation spec §5(iii) requires between commit and wake.
func (r *Registry) UpdateTail(topicID, newSeq uint64) {
	r.mu.RLock()
	e, ok := r.byID[topicID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	e.tail.Store(newSeq)

	e.notifyMu.Lock()
	close(e.notifyCh)
	e.notifyCh = make(chan struct{})
	e.notifyMu.Unlock()
}

// Subscribe returns the current wake channel for topicID. The caller must
// capture this reference before performing its next read, per spec §4.3's
// lost-wakeup avoidance rule ("subscribe before the first read after an
// empty poll").
func (r *Registry) Subscribe(topicID uint64) (<-chan struct{}, error) {
	r.mu.RLock()
	e, ok := r.byID[topicID]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.ErrTopicNotFound
	}
	e.notifyMu.Lock()
	ch := e.notifyCh
	e.notifyMu.Unlock()
	return ch, nil
}

// Join registers a session as the active member of (topicID, group),
// displacing any previous member by closing its Displaced channel (spec
// §4.4's group takeover). Returns the new Membership the caller owns.
func (r *Registry) Join(topicID uint64, group string) (*Membership, error) {
	r.mu.RLock()
	e, ok := r.byID[topicID]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.ErrTopicNotFound
	}

	m := &Membership{Group: group, Displaced: make(chan struct{})}
	e.membersMu.Lock()
	if prev, exists := e.members[group]; exists {
		close(prev.Displaced)
	}
	e.members[group] = m
	e.membersMu.Unlock()
	return m, nil
}

// Leave removes m from (topicID, group)'s membership, but only if m is
// still the current holder — a session that already lost a race to
// displacement must not evict its successor.
func (r *Registry) Leave(topicID uint64, group string, m *Membership) {
	r.mu.RLock()
	e, ok := r.byID[topicID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	e.membersMu.Lock()
	if cur, exists := e.members[group]; exists && cur == m {
		delete(e.members, group)
	}
	e.membersMu.Unlock()
}
