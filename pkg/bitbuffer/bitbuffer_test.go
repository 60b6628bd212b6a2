// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bitbuffer

import "testing"

func TestPushPopRoundTrip(t *testing.T) {
	tests := []struct {
		value uint64
		nBits int
	}{
		{0, 1},
		{1, 1},
		{42, 8},
		{0xFF, 8},
		{0x1FF, 9},
		{0xFFFFFFFFFFFFFFFF, 64},
	}

	for _, test := range tests {
		b := New()
		if err := b.Push(test.value, test.nBits); err != nil {
			t.Fatalf("Push(%d, %d) errored: %v", test.value, test.nBits, err)
		}
		if b.SizeBits() != test.nBits {
			t.Fatalf("after Push(%d, %d), SizeBits() = %d, want %d", test.value, test.nBits, b.SizeBits(), test.nBits)
		}

		got, err := b.Pop(test.nBits)
		if err != nil {
			t.Fatalf("Pop(%d) errored: %v", test.nBits, err)
		}

		mask := uint64(1)<<test.nBits - 1
		if test.nBits == 64 {
			mask = ^uint64(0)
		}
		if want := test.value & mask; got != want {
			t.Fatalf("Pop(%d) = %d, want %d", test.nBits, got, want)
		}
	}
}

func TestPopPastEndOverflows(t *testing.T) {
	b := New()
	_ = b.Push(1, 4)

	if _, err := b.Pop(5); err == nil {
		t.Fatalf("Pop(5) on a 4-bit buffer should have errored")
	}
}

func TestPushPastCapOverflows(t *testing.T) {
	b := New(WithMaxBits(8))
	if err := b.Push(0, 8); err != nil {
		t.Fatalf("Push up to the cap errored: %v", err)
	}
	if err := b.Push(0, 1); err == nil {
		t.Fatalf("Push past the cap should have errored")
	}
}

func TestToBytesZeroPadsTail(t *testing.T) {
	b := New()
	_ = b.Push(0x5, 3) // 101 LSB-first -> bits [1,0,1]

	bs := b.ToBytes()
	if len(bs) != 1 {
		t.Fatalf("ToBytes() produced %d bytes, want 1", len(bs))
	}
	if bs[0] != 0x5 {
		t.Fatalf("ToBytes() = %#x, want %#x", bs[0], 0x5)
	}
}

func TestFromBytesLoadsExactBits(t *testing.T) {
	b, err := FromBytes([]byte{0xFF, 0x01}, 9)
	if err != nil {
		t.Fatalf("FromBytes errored: %v", err)
	}
	if b.SizeBits() != 9 {
		t.Fatalf("SizeBits() = %d, want 9", b.SizeBits())
	}

	got, err := b.Pop(9)
	if err != nil {
		t.Fatalf("Pop(9) errored: %v", err)
	}
	if got != 0x1FF {
		t.Fatalf("Pop(9) = %#x, want %#x", got, 0x1FF)
	}
}

func TestByteRoundTrip(t *testing.T) {
	b := New()
	_ = b.Push(0xAB, 8)
	_ = b.Push(0x3, 2)

	bs := b.ToBytes()
	b2, err := FromBytes(bs, 10)
	if err != nil {
		t.Fatalf("FromBytes errored: %v", err)
	}

	if v, _ := b2.Pop(8); v != 0xAB {
		t.Fatalf("first byte round-tripped to %#x, want %#x", v, 0xAB)
	}
	if v, _ := b2.Pop(2); v != 0x3 {
		t.Fatalf("trailing bits round-tripped to %#x, want %#x", v, 0x3)
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	b := New()
	_ = b.Push(7, 4)

	if v, err := b.Peek(4); err != nil || v != 7 {
		t.Fatalf("Peek(4) = %d, %v; want 7, nil", v, err)
	}
	if b.RemainingBits() != 4 {
		t.Fatalf("Peek advanced the read cursor: RemainingBits() = %d, want 4", b.RemainingBits())
	}
	if v, _ := b.Pop(4); v != 7 {
		t.Fatalf("Pop(4) after Peek = %d, want 7", v)
	}
}
