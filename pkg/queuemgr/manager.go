// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package queuemgr implements the multi-queue arbitration, frame
// stitching/unstitching and ack bookkeeping of spec §4.5. It holds
// queue.Queue values by key rather than the source's bidirectional
// Queue<->Manager references (spec §9 Design Notes).
package queuemgr

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/MikeGodin/goby-acomms/pkg/queue"
)

// ErrNoAvailableDestination is returned by FindNextSender when no queue
// has an eligible entry, spec §4.5.
var ErrNoAvailableDestination = errors.New("queue_no_available_destination")

// ErrStitchMalformed is returned when UnstitchFrame encounters an
// inconsistent length prefix; spec §4.5 says the remainder is then
// dropped rather than the whole call failing loudly to the caller, so
// ReceiveModemFrame logs this instead of propagating it.
var ErrStitchMalformed = errors.New("stitch_error")

// Request describes what the driver is asking the manager for: up to
// MaxBytes of payload, optionally locked to Dest.
type Request struct {
	Dest     *uint16
	MaxBytes int
}

// AckCallback fires once per Entry whose ack was matched, spec §8.
type AckCallback func(entry queue.Entry)

// ReceiveCallback fires once per inbound user frame, keyed by the queue it
// was addressed to.
type ReceiveCallback func(key queue.Key, payload []byte)

// Manager arbitrates across many queue.Queue values, spec §4.5.
type Manager struct {
	queues map[queue.Key]*queue.Queue

	waitingForAck map[int][]queue.FrameKey

	onAck     AckCallback
	onReceive ReceiveCallback
	onSize    queue.SizeChangeFunc

	log *logrus.Entry
}

// Option configures a new Manager.
type Option func(*Manager)

// WithAckCallback sets the callback invoked when HandleAck matches a
// frame number to waiting entries.
func WithAckCallback(fn AckCallback) Option {
	return func(m *Manager) { m.onAck = fn }
}

// WithReceiveCallback sets the callback invoked for every inbound user
// frame ReceiveModemFrame unstitches.
func WithReceiveCallback(fn ReceiveCallback) Option {
	return func(m *Manager) { m.onReceive = fn }
}

// WithSizeChangeCallback forwards every managed queue's size-change events
// to fn.
func WithSizeChangeCallback(fn queue.SizeChangeFunc) Option {
	return func(m *Manager) { m.onSize = fn }
}

// NewManager creates an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		queues:        make(map[queue.Key]*queue.Queue),
		waitingForAck: make(map[int][]queue.FrameKey),
		log:           logrus.WithField("component", "queuemgr"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddQueue registers a new queue.Queue for cfg and returns it. Calling
// AddQueue twice for the same (Type, ID) replaces the prior queue.
func (m *Manager) AddQueue(cfg queue.Config) *queue.Queue {
	key := queue.Key{Type: cfg.Type, ID: cfg.ID}
	q := queue.New(cfg,
		queue.WithExpireCallback(func(e queue.Entry) {
			m.log.WithFields(logrus.Fields{"queue": key, "seq": e.Key.Sequence}).Debug("queuemgr: entry expired")
		}),
		queue.WithSizeChangeCallback(func(k queue.Key, size int) {
			if m.onSize != nil {
				m.onSize(k, size)
			}
		}),
	)
	m.queues[key] = q
	return q
}

// Queue returns the queue registered under key, if any.
func (m *Manager) Queue(key queue.Key) (*queue.Queue, bool) {
	q, ok := m.queues[key]
	return q, ok
}

// Push pushes e unchanged onto the queue registered under key. The queue
// header of spec §8 scenario 1 is not added here: PrepareUserFrame
// prepends it when the entry is packed into a modem frame.
func (m *Manager) Push(key queue.Key, e queue.Entry, now time.Time) (queue.FrameKey, error) {
	q, ok := m.queues[key]
	if !ok {
		return queue.FrameKey{}, errors.Errorf("queuemgr: no queue registered for %+v", key)
	}
	return q.Push(e, now)
}

// ExpireTick runs Queue.ExpireTick across every managed queue.
func (m *Manager) ExpireTick(now time.Time) {
	for _, q := range m.queues {
		q.ExpireTick(now)
	}
}

func (m *Manager) sortedKeys() []queue.Key {
	keys := make([]queue.Key, 0, len(m.queues))
	for k := range m.queues {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].ID < keys[j].ID
	})
	return keys
}

// FindNextSender scans every managed queue and returns the highest
// priority eligible entry, spec §4.5. When req.Dest is set, only entries
// addressed to it are considered. When it is nil, the highest-priority
// eligible entry across all queues establishes the destination for this
// selection (the
// caller is expected to re-invoke with Dest locked for subsequent frames
// of the same modem frame). Destination ties break by ascending queue id.
// Queues configured OnDemand are skipped: they only ever produce frames
// for FindNextSenderForQueue's explicit, targeted lookup.
func (m *Manager) FindNextSender(req Request, now time.Time) (queue.Entry, queue.Key, error) {
	var (
		best      queue.Entry
		bestKey   queue.Key
		bestP     float64
		found     bool
	)

	for _, key := range m.sortedKeys() {
		q := m.queues[key]
		if q.Config().OnDemand {
			continue
		}
		var (
			e  queue.Entry
			ok bool
		)
		if req.Dest != nil {
			e, ok = q.TopForDest(now, req.MaxBytes, *req.Dest)
		} else {
			e, ok = q.Top(now, req.MaxBytes)
		}
		if !ok {
			continue
		}

		p := e.Priority(now)
		if !found || p > bestP {
			best, bestKey, bestP, found = e, key, p, true
		}
	}

	if !found {
		return queue.Entry{}, queue.Key{}, ErrNoAvailableDestination
	}
	return best, bestKey, nil
}

// FindNextSenderForQueue looks up an eligible entry in exactly the queue
// named by key, ignoring its OnDemand setting and every other managed
// queue. It is the targeted counterpart to FindNextSender's opportunistic
// sweep, grounded on queue_manager.h's set_on_demand/set_data_on_demand_cb
// mechanism: an on-demand queue only ever hands out a frame in response to
// a request naming it directly, never by being swept into a MAC-triggered
// cycle's opportunistic fill.
func (m *Manager) FindNextSenderForQueue(key queue.Key, req Request, now time.Time) (queue.Entry, error) {
	q, ok := m.queues[key]
	if !ok {
		return queue.Entry{}, errors.Errorf("queuemgr: no queue registered for %+v", key)
	}

	var (
		e     queue.Entry
		found bool
	)
	if req.Dest != nil {
		e, found = q.TopForDest(now, req.MaxBytes, *req.Dest)
	} else {
		e, found = q.Top(now, req.MaxBytes)
	}
	if !found {
		return queue.Entry{}, ErrNoAvailableDestination
	}
	return e, nil
}

// EncodeQueueHeader returns the 3-byte header identifying key that leads a
// user frame: [type][id-high][id-low].
func EncodeQueueHeader(key queue.Key) []byte {
	return []byte{byte(key.Type), byte(key.ID >> 8), byte(key.ID)}
}

// DecodeQueueHeader strips and decodes a 3-byte queue header, returning
// the remaining payload.
func DecodeQueueHeader(b []byte) (queue.Key, []byte, error) {
	if len(b) < 3 {
		return queue.Key{}, nil, errors.Wrap(ErrStitchMalformed, "queue header truncated")
	}
	key := queue.Key{Type: queue.Type(b[0]), ID: uint16(b[1])<<8 | uint16(b[2])}
	return key, b[3:], nil
}

// PrepareUserFrame renders e as a user frame ready for stitching: its
// queue header followed by its payload bytes.
func PrepareUserFrame(key queue.Key, e queue.Entry) []byte {
	return append(EncodeQueueHeader(key), e.Bytes...)
}

// StitchFrame concatenates userFrames into a single modem frame body,
// spec §4.5: "[len byte][user_frame_bytes]" records, with the length byte
// omitted when there's exactly one frame and it plus one length byte
// exactly fills budget (the single-frame optimization).
func StitchFrame(userFrames [][]byte, budget int) ([]byte, error) {
	if len(userFrames) == 1 && len(userFrames[0])+1 == budget {
		return append([]byte{}, userFrames[0]...), nil
	}

	out := make([]byte, 0, budget)
	for i, f := range userFrames {
		if len(f) > 255 {
			return nil, errors.Wrapf(ErrStitchMalformed, "user frame %d is %d bytes, exceeds 255-byte length prefix", i, len(f))
		}
		if len(out)+1+len(f) > budget {
			return nil, errors.Wrapf(ErrStitchMalformed, "user frame %d would exceed budget %d", i, budget)
		}
		out = append(out, byte(len(f)))
		out = append(out, f...)
	}
	return out, nil
}

// UnstitchFrame is StitchFrame's inverse. On a malformed length prefix,
// the remainder of data is dropped and ErrStitchMalformed is returned
// alongside whatever frames parsed cleanly before the corruption.
func UnstitchFrame(data []byte, budget int) ([][]byte, error) {
	if len(data) == budget-1 {
		return [][]byte{data}, nil
	}

	var frames [][]byte
	pos := 0
	for pos < len(data) {
		length := int(data[pos])
		pos++
		if pos+length > len(data) {
			return frames, errors.Wrapf(ErrStitchMalformed, "length %d at offset %d exceeds remaining %d bytes", length, pos-1, len(data)-pos)
		}
		frames = append(frames, data[pos:pos+length])
		pos += length
	}
	return frames, nil
}

// ReceiveModemFrame unstitches data and dispatches each user frame's
// payload to the receive callback keyed by its embedded queue header,
// spec §4.5's inbound mirror of the outbound path.
func (m *Manager) ReceiveModemFrame(data []byte, budget int) error {
	frames, err := UnstitchFrame(data, budget)
	if err != nil {
		m.log.WithError(err).Warn("queuemgr: dropping malformed modem frame remainder")
	}

	for _, f := range frames {
		key, payload, herr := DecodeQueueHeader(f)
		if herr != nil {
			m.log.WithError(herr).Warn("queuemgr: dropping user frame with bad queue header")
			continue
		}
		if m.onReceive != nil {
			m.onReceive(key, payload)
		}
	}
	return err
}

// WaitForAck records that frameNumber's transmission carried keys and
// should invoke the ack callback for each when HandleAck matches it.
func (m *Manager) WaitForAck(frameNumber int, keys []queue.FrameKey) {
	m.waitingForAck[frameNumber] = keys
}

// HandleAck matches an inbound $CAACK against WaitForAck's bookkeeping,
// spec §4.5 and §8: every match invokes the ack callback exactly once and
// pops the corresponding entry; an unmatched ack is logged, not fatal.
func (m *Manager) HandleAck(frameNumber int, src, dest uint16) bool {
	keys, ok := m.waitingForAck[frameNumber]
	if !ok {
		m.log.WithFields(logrus.Fields{"frame": frameNumber, "src": src, "dest": dest}).
			Debug("queuemgr: unmatched ack")
		return false
	}
	delete(m.waitingForAck, frameNumber)

	for _, key := range keys {
		q, ok := m.queues[key.Key]
		if !ok {
			continue
		}
		e, popped := q.PopAcknowledged(key)
		if popped && m.onAck != nil {
			m.onAck(e)
		}
	}
	return true
}
