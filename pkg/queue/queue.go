// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package queue implements the single priority queue with TTL, ack
// tracking and value/time priority blend, spec §4.4. Package queuemgr
// arbitrates across many of these.
package queue

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Push when the queue is at its configured
// capacity and NewestFirst does not permit displacing a lower-priority
// entry.
var ErrQueueFull = errors.New("queue_full")

// Type names one of the three queue kinds a Config can describe.
type Type int

const (
	DCCL Type = iota
	CCL
	Data
)

func (t Type) String() string {
	switch t {
	case DCCL:
		return "dccl"
	case CCL:
		return "ccl"
	case Data:
		return "data"
	default:
		return "unknown"
	}
}

// Key identifies a Queue instance within a queuemgr.Manager.
type Key struct {
	Type Type
	ID   uint16
}

// FrameKey identifies one Entry: spec §4.4's "(queue_type, queue_id,
// sequence)".
type FrameKey struct {
	Key
	Sequence uint64
}

// Config configures one Queue, spec §4.4's queue config data model.
type Config struct {
	Type    Type
	ID      uint16
	MaxSize int
	TTL     time.Duration

	// ValueBase scales the time-based priority: P(e,t) = ValueBase *
	// (t-Created)/TTL.
	ValueBase float64

	// NewestFirst breaks equal-priority ties LIFO instead of FIFO, and
	// allows Push to displace the queue's lowest-priority entry instead
	// of rejecting when full.
	NewestFirst bool

	BlackoutTime time.Duration

	// OnDemand marks a queue as producing frames only when explicitly
	// requested by queuemgr.Manager.FindNextSenderForQueue, never by
	// queuemgr.Manager.FindNextSender's opportunistic sweep across every managed
	// queue. Consulted by the queue manager, not by Queue itself.
	OnDemand bool

	AckRequiredDefault bool
	DestDefault        uint16
}

// Entry is one queued user frame, spec §4.4.
type Entry struct {
	Key          FrameKey
	Bytes        []byte
	Src          uint16
	Dest         uint16
	AckRequested bool
	Created      time.Time
	TTL          time.Duration
	ValueBase    float64
}

// Priority returns P(e,t) = ValueBase*(t-Created)/TTL, spec §4.4. Exported
// so queuemgr.Manager can compare entries across queues when arbitrating.
func (e Entry) Priority(now time.Time) float64 {
	if e.TTL <= 0 {
		return e.ValueBase
	}
	return e.ValueBase * now.Sub(e.Created).Seconds() / e.TTL.Seconds()
}

func (e Entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.After(e.Created.Add(e.TTL))
}

// ExpireFunc is invoked exactly once per entry that ExpireTick removes for
// having outlived its TTL.
type ExpireFunc func(Entry)

// SizeChangeFunc is invoked on every insertion and removal, spec §4.4.
type SizeChangeFunc func(key Key, size int)

// Queue holds the entries for one Config.
type Queue struct {
	cfg Config
	key Key

	entries []Entry
	nextSeq uint64

	lastSendByDest map[uint16]time.Time

	onExpire     ExpireFunc
	onSizeChange SizeChangeFunc

	log *logrus.Entry
}

// Option configures a new Queue.
type Option func(*Queue)

// WithExpireCallback sets the callback ExpireTick invokes per expired
// entry.
func WithExpireCallback(fn ExpireFunc) Option {
	return func(q *Queue) { q.onExpire = fn }
}

// WithSizeChangeCallback sets the callback fired on every insert/remove.
func WithSizeChangeCallback(fn SizeChangeFunc) Option {
	return func(q *Queue) { q.onSizeChange = fn }
}

// New creates an empty Queue for cfg.
func New(cfg Config, opts ...Option) *Queue {
	q := &Queue{
		cfg:            cfg,
		key:            Key{Type: cfg.Type, ID: cfg.ID},
		lastSendByDest: make(map[uint16]time.Time),
		log:            logrus.WithFields(logrus.Fields{"component": "queue", "type": cfg.Type, "id": cfg.ID}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Key returns this Queue's Key.
func (q *Queue) Key() Key { return q.key }

// Config returns this Queue's Config.
func (q *Queue) Config() Config { return q.cfg }

// Size returns the number of entries currently queued.
func (q *Queue) Size() int { return len(q.entries) }

func (q *Queue) notifySizeChange() {
	if q.onSizeChange != nil {
		q.onSizeChange(q.key, len(q.entries))
	}
}

// Push inserts e, assigning it the next sequence number under this Queue's
// key and stamping Created with now when the caller left it zero. It rejects with ErrQueueFull when the queue is at capacity, unless
// Config.NewestFirst permits evicting the current lowest-priority entry
// (spec §4.4).
func (q *Queue) Push(e Entry, now time.Time) (FrameKey, error) {
	if q.cfg.MaxSize > 0 && len(q.entries) >= q.cfg.MaxSize {
		if !q.cfg.NewestFirst {
			return FrameKey{}, errors.Wrapf(ErrQueueFull, "queue %s/%d at capacity %d", q.key.Type, q.key.ID, q.cfg.MaxSize)
		}
		q.evictLowestPriority(now)
	}

	e.Key = FrameKey{Key: q.key, Sequence: q.nextSeq}
	q.nextSeq++
	if e.Created.IsZero() {
		e.Created = now
	}
	if e.ValueBase == 0 {
		e.ValueBase = q.cfg.ValueBase
	}
	if e.TTL == 0 {
		e.TTL = q.cfg.TTL
	}

	q.entries = append(q.entries, e)
	q.notifySizeChange()
	return e.Key, nil
}

func (q *Queue) evictLowestPriority(now time.Time) {
	if len(q.entries) == 0 {
		return
	}

	worst := 0
	worstP := q.entries[0].Priority(now)
	for i := 1; i < len(q.entries); i++ {
		if p := q.entries[i].Priority(now); p < worstP {
			worst, worstP = i, p
		}
	}

	victim := q.entries[worst]
	q.entries = append(q.entries[:worst], q.entries[worst+1:]...)
	q.notifySizeChange()
	if q.onExpire != nil {
		q.onExpire(victim)
	}
}

// Top returns the highest-priority entry that fits within maxBytes and
// isn't blacked out for its destination, spec §4.4. Ties break FIFO unless
// Config.NewestFirst, then LIFO.
func (q *Queue) Top(now time.Time, maxBytes int) (Entry, bool) {
	return q.top(now, maxBytes, nil)
}

// TopForDest behaves like Top but only considers entries addressed to
// dest, used by queuemgr.Manager once a modem frame's destination is
// locked (spec §4.5).
func (q *Queue) TopForDest(now time.Time, maxBytes int, dest uint16) (Entry, bool) {
	return q.top(now, maxBytes, &dest)
}

func (q *Queue) top(now time.Time, maxBytes int, dest *uint16) (Entry, bool) {
	candidates := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		if e.expired(now) {
			continue
		}
		if len(e.Bytes) > maxBytes {
			continue
		}
		if dest != nil && e.Dest != *dest {
			continue
		}
		if last, ok := q.lastSendByDest[e.Dest]; ok && now.Sub(last) < q.cfg.BlackoutTime {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return Entry{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		pi, pj := candidates[i].Priority(now), candidates[j].Priority(now)
		if pi != pj {
			return pi > pj
		}
		if q.cfg.NewestFirst {
			return candidates[i].Key.Sequence > candidates[j].Key.Sequence
		}
		return candidates[i].Key.Sequence < candidates[j].Key.Sequence
	})
	return candidates[0], true
}

// RecordSend marks now as the last time a frame was sent to dest, arming
// Config.BlackoutTime for subsequent Top calls.
func (q *Queue) RecordSend(dest uint16, now time.Time) {
	q.lastSendByDest[dest] = now
}

func (q *Queue) removeByKey(key FrameKey) (Entry, bool) {
	for i, e := range q.entries {
		if e.Key == key {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			q.notifySizeChange()
			return e, true
		}
	}
	return Entry{}, false
}

// PopAcknowledged removes the entry identified by key after its ack was
// received.
func (q *Queue) PopAcknowledged(key FrameKey) (Entry, bool) {
	return q.removeByKey(key)
}

// PopSentNoAck removes the entry identified by key after it was
// transmitted without an ack being requested.
func (q *Queue) PopSentNoAck(key FrameKey) (Entry, bool) {
	return q.removeByKey(key)
}

// ExpireTick removes every entry past its TTL as of now, invoking the
// expire callback exactly once per removed entry, spec §8.
func (q *Queue) ExpireTick(now time.Time) int {
	kept := q.entries[:0]
	expired := 0
	for _, e := range q.entries {
		if e.expired(now) {
			expired++
			if q.onExpire != nil {
				q.onExpire(e)
			}
			continue
		}
		kept = append(kept, e)
	}
	if expired > 0 {
		q.entries = kept
		q.notifySizeChange()
		q.log.WithField("count", expired).Debug("queue: expired entries")
	}
	return expired
}
