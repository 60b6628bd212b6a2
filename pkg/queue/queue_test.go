// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package queue

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestPushThenTop(t *testing.T) {
	q := New(Config{Type: DCCL, ID: 1, MaxSize: 10, TTL: 30 * time.Second, ValueBase: 1})
	now := time.Now()

	key, err := q.Push(Entry{Bytes: []byte("abcd"), Dest: 2}, now)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	top, ok := q.Top(now, 32)
	if !ok {
		t.Fatalf("Top() returned false, want an entry")
	}
	if top.Key != key {
		t.Fatalf("Top().Key = %+v, want %+v", top.Key, key)
	}
}

func TestTTLExpiryInvokesCallbackOnce(t *testing.T) {
	var expired []Entry
	q := New(Config{Type: DCCL, ID: 1, MaxSize: 10, TTL: 5 * time.Second, ValueBase: 1},
		WithExpireCallback(func(e Entry) { expired = append(expired, e) }))

	now := time.Now()
	if _, err := q.Push(Entry{Bytes: []byte("x")}, now); err != nil {
		t.Fatalf("Push: %v", err)
	}

	later := now.Add(6 * time.Second)
	n := q.ExpireTick(later)
	if n != 1 {
		t.Fatalf("ExpireTick removed %d entries, want 1", n)
	}
	if len(expired) != 1 {
		t.Fatalf("expire callback fired %d times, want 1", len(expired))
	}

	if _, ok := q.Top(later, 32); ok {
		t.Fatalf("Top() after expiry should return false")
	}
}

func TestQueueFullRejectsWithoutNewestFirst(t *testing.T) {
	q := New(Config{Type: DCCL, ID: 1, MaxSize: 1, TTL: time.Minute, ValueBase: 1})
	now := time.Now()

	if _, err := q.Push(Entry{Bytes: []byte("a")}, now); err != nil {
		t.Fatalf("first Push: %v", err)
	}
	if _, err := q.Push(Entry{Bytes: []byte("b")}, now); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second Push error = %v, want ErrQueueFull", err)
	}
}

func TestNewestFirstEvictsLowestPriority(t *testing.T) {
	q := New(Config{Type: DCCL, ID: 1, MaxSize: 1, TTL: time.Minute, ValueBase: 1, NewestFirst: true})
	now := time.Now()

	if _, err := q.Push(Entry{Bytes: []byte("old")}, now); err != nil {
		t.Fatalf("first Push: %v", err)
	}
	key2, err := q.Push(Entry{Bytes: []byte("new")}, now.Add(time.Second))
	if err != nil {
		t.Fatalf("second Push: %v", err)
	}

	if q.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", q.Size())
	}
	top, ok := q.Top(now.Add(time.Second), 32)
	if !ok || top.Key != key2 {
		t.Fatalf("Top() = %+v, %v; want the newer entry", top, ok)
	}
}

func TestBlackoutSkipsRecentDestination(t *testing.T) {
	q := New(Config{Type: DCCL, ID: 1, MaxSize: 10, TTL: time.Minute, ValueBase: 1, BlackoutTime: 10 * time.Second})
	now := time.Now()

	if _, err := q.Push(Entry{Bytes: []byte("a"), Dest: 5}, now); err != nil {
		t.Fatalf("Push: %v", err)
	}
	q.RecordSend(5, now)

	if _, ok := q.Top(now.Add(2*time.Second), 32); ok {
		t.Fatalf("Top() during blackout should return false")
	}
	if _, ok := q.Top(now.Add(20*time.Second), 32); !ok {
		t.Fatalf("Top() after blackout elapses should return an entry")
	}
}

func TestPopAcknowledgedRemovesEntry(t *testing.T) {
	q := New(Config{Type: DCCL, ID: 1, MaxSize: 10, TTL: time.Minute, ValueBase: 1})
	now := time.Now()

	key, _ := q.Push(Entry{Bytes: []byte("a")}, now)
	if _, ok := q.PopAcknowledged(key); !ok {
		t.Fatalf("PopAcknowledged returned false for a known key")
	}
	if q.Size() != 0 {
		t.Fatalf("Size() = %d after pop, want 0", q.Size())
	}
}

func TestSizeDoesNotFitBudget(t *testing.T) {
	q := New(Config{Type: DCCL, ID: 1, MaxSize: 10, TTL: time.Minute, ValueBase: 1})
	now := time.Now()

	if _, err := q.Push(Entry{Bytes: make([]byte, 40)}, now); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if _, ok := q.Top(now, 32); ok {
		t.Fatalf("Top() should reject an entry larger than maxBytes")
	}
}
