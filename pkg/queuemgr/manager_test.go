// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package queuemgr

import (
	"bytes"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/MikeGodin/goby-acomms/pkg/queue"
)

func TestLoopbackPushThenReceive(t *testing.T) {
	m := NewManager()
	m.AddQueue(queue.Config{Type: queue.DCCL, ID: 1, MaxSize: 10, TTL: time.Minute, ValueBase: 1})

	payload := []byte{0x20, 0x00, 0x80, 0x25, 0x00, 0x00, 0x61, 0x62, 0x63, 0x64, 0x31, 0x32, 0x33, 0x34}
	now := time.Now()
	key := queue.Key{Type: queue.DCCL, ID: 1}

	if _, err := m.Push(key, queue.Entry{Bytes: payload, Dest: 1}, now); err != nil {
		t.Fatalf("Push: %v", err)
	}

	entry, gotKey, err := m.FindNextSender(Request{MaxBytes: 32}, now)
	if err != nil {
		t.Fatalf("FindNextSender: %v", err)
	}
	if gotKey != key {
		t.Fatalf("FindNextSender key = %+v, want %+v", gotKey, key)
	}

	userFrame := PrepareUserFrame(gotKey, entry)
	modemFrame, err := StitchFrame([][]byte{userFrame}, 32)
	if err != nil {
		t.Fatalf("StitchFrame: %v", err)
	}

	var received [][]byte
	var receivedKey queue.Key
	m2 := NewManager(WithReceiveCallback(func(k queue.Key, b []byte) {
		receivedKey = k
		received = append(received, b)
	}))
	if err := m2.ReceiveModemFrame(modemFrame, 32); err != nil {
		t.Fatalf("ReceiveModemFrame: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("receive callback fired %d times, want 1", len(received))
	}
	if !bytes.Equal(received[0], payload) {
		t.Fatalf("received payload = %x, want %x", received[0], payload)
	}
	if receivedKey != key {
		t.Fatalf("received key = %+v, want %+v", receivedKey, key)
	}
}

func TestFindNextSenderDestFilter(t *testing.T) {
	m := NewManager()
	m.AddQueue(queue.Config{Type: queue.DCCL, ID: 1, MaxSize: 10, TTL: time.Minute, ValueBase: 1})
	now := time.Now()

	if _, err := m.Push(queue.Key{Type: queue.DCCL, ID: 1}, queue.Entry{Bytes: []byte("a"), Dest: 5}, now); err != nil {
		t.Fatalf("Push: %v", err)
	}

	dest := uint16(9)
	if _, _, err := m.FindNextSender(Request{Dest: &dest, MaxBytes: 32}, now); !errors.Is(err, ErrNoAvailableDestination) {
		t.Fatalf("FindNextSender error = %v, want ErrNoAvailableDestination", err)
	}
}

func TestFindNextSenderTieBreaksByQueueID(t *testing.T) {
	m := NewManager()
	m.AddQueue(queue.Config{Type: queue.DCCL, ID: 5, MaxSize: 10, TTL: time.Minute, ValueBase: 1})
	m.AddQueue(queue.Config{Type: queue.DCCL, ID: 2, MaxSize: 10, TTL: time.Minute, ValueBase: 1})
	now := time.Now()

	m.Push(queue.Key{Type: queue.DCCL, ID: 5}, queue.Entry{Bytes: []byte("a")}, now)
	m.Push(queue.Key{Type: queue.DCCL, ID: 2}, queue.Entry{Bytes: []byte("b")}, now)

	_, key, err := m.FindNextSender(Request{MaxBytes: 32}, now)
	if err != nil {
		t.Fatalf("FindNextSender: %v", err)
	}
	if key.ID != 2 {
		t.Fatalf("FindNextSender picked queue %d, want the lower id 2 on a tie", key.ID)
	}
}

func TestFindNextSenderSkipsOnDemandQueues(t *testing.T) {
	m := NewManager()
	m.AddQueue(queue.Config{Type: queue.DCCL, ID: 1, MaxSize: 10, TTL: time.Minute, ValueBase: 1, OnDemand: true})
	now := time.Now()

	key := queue.Key{Type: queue.DCCL, ID: 1}
	if _, err := m.Push(key, queue.Entry{Bytes: []byte("a"), Dest: 1}, now); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if _, _, err := m.FindNextSender(Request{MaxBytes: 32}, now); !errors.Is(err, ErrNoAvailableDestination) {
		t.Fatalf("FindNextSender error = %v, want ErrNoAvailableDestination (on-demand queue must be skipped)", err)
	}

	entry, err := m.FindNextSenderForQueue(key, Request{MaxBytes: 32}, now)
	if err != nil {
		t.Fatalf("FindNextSenderForQueue: %v", err)
	}
	if string(entry.Bytes) != "a" {
		t.Fatalf("FindNextSenderForQueue entry = %q, want %q", entry.Bytes, "a")
	}
}

func TestStitchSingleFrameOptimization(t *testing.T) {
	frame := make([]byte, 31)
	out, err := StitchFrame([][]byte{frame}, 32)
	if err != nil {
		t.Fatalf("StitchFrame: %v", err)
	}
	if len(out) != 31 {
		t.Fatalf("StitchFrame optimized output len = %d, want 31 (no length byte)", len(out))
	}

	back, err := UnstitchFrame(out, 32)
	if err != nil {
		t.Fatalf("UnstitchFrame: %v", err)
	}
	if len(back) != 1 || len(back[0]) != 31 {
		t.Fatalf("UnstitchFrame = %v, want one 31-byte frame", back)
	}
}

func TestStitchMultiFrameRoundTrip(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{4, 5}
	out, err := StitchFrame([][]byte{a, b}, 32)
	if err != nil {
		t.Fatalf("StitchFrame: %v", err)
	}

	back, err := UnstitchFrame(out, 32)
	if err != nil {
		t.Fatalf("UnstitchFrame: %v", err)
	}
	if len(back) != 2 || !bytes.Equal(back[0], a) || !bytes.Equal(back[1], b) {
		t.Fatalf("UnstitchFrame = %v, want [%v %v]", back, a, b)
	}
}

func TestUnstitchMalformedLengthDropsRemainder(t *testing.T) {
	data := []byte{5, 1, 2} // claims 5 bytes follow, only 2 present
	frames, err := UnstitchFrame(data, 32)
	if !errors.Is(err, ErrStitchMalformed) {
		t.Fatalf("UnstitchFrame error = %v, want ErrStitchMalformed", err)
	}
	if len(frames) != 0 {
		t.Fatalf("UnstitchFrame frames = %v, want none parsed before the corruption", frames)
	}
}

func TestHandleAckMatchesAndPops(t *testing.T) {
	var acked []queue.Entry
	m := NewManager(WithAckCallback(func(e queue.Entry) { acked = append(acked, e) }))
	m.AddQueue(queue.Config{Type: queue.DCCL, ID: 1, MaxSize: 10, TTL: time.Minute, ValueBase: 1})
	now := time.Now()

	key, err := m.Push(queue.Key{Type: queue.DCCL, ID: 1}, queue.Entry{Bytes: []byte("a")}, now)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	m.WaitForAck(3, []queue.FrameKey{key})

	if !m.HandleAck(3, 1, 2) {
		t.Fatalf("HandleAck(3) = false, want true")
	}
	if len(acked) != 1 {
		t.Fatalf("ack callback fired %d times, want 1", len(acked))
	}

	q, _ := m.Queue(queue.Key{Type: queue.DCCL, ID: 1})
	if q.Size() != 0 {
		t.Fatalf("queue size after ack = %d, want 0", q.Size())
	}
}

func TestHandleAckUnmatchedIsNotFatal(t *testing.T) {
	m := NewManager()
	if m.HandleAck(99, 1, 2) {
		t.Fatalf("HandleAck for an unregistered frame number should return false")
	}
}
