// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package bitbuffer implements an ordered sequence of bits with independent
// write and read cursors, used by the DCCL field codecs to pack values at
// sub-byte granularity.
package bitbuffer

import "github.com/pkg/errors"

// DefaultMaxBits caps a BitBuffer at 2^20 bits (128 KiB) unless overridden with
// WithMaxBits. DCCL messages fit in a handful of bytes; the cap exists to
// turn a runaway field width into an error instead of an allocation storm.
const DefaultMaxBits = 1 << 20

// ErrOverflow is returned when a Pop would read past the write cursor or a
// Push would grow the buffer past its bit cap.
var ErrOverflow = errors.New("codec_overflow")

// BitBuffer holds bits LSB-first within each byte, little-endian across
// bytes, with a write cursor (bits appended so far) and a read cursor
// (bits consumed so far). writePos >= readPos is an invariant.
type BitBuffer struct {
	bits    []bool
	readPos int
	maxBits int
}

// Option configures a new BitBuffer.
type Option func(*BitBuffer)

// WithMaxBits overrides DefaultMaxBits.
func WithMaxBits(n int) Option {
	return func(b *BitBuffer) { b.maxBits = n }
}

// New creates an empty BitBuffer.
func New(opts ...Option) *BitBuffer {
	b := &BitBuffer{maxBits: DefaultMaxBits}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FromBytes loads exactly nBits from b, LSB-first within each byte,
// little-endian across bytes (the inverse of ToBytes). Extra bits in the
// final byte beyond nBits are discarded.
func FromBytes(b []byte, nBits int, opts ...Option) (*BitBuffer, error) {
	if nBits < 0 || nBits > len(b)*8 {
		return nil, errors.Wrapf(ErrOverflow, "FromBytes: %d bits requested from %d bytes", nBits, len(b))
	}

	buf := New(opts...)
	if nBits > buf.maxBits {
		return nil, errors.Wrapf(ErrOverflow, "FromBytes: %d bits exceeds cap %d", nBits, buf.maxBits)
	}

	buf.bits = make([]bool, 0, nBits)
	for i := 0; i < nBits; i++ {
		byteIdx := i / 8
		bitIdx := i % 8
		buf.bits = append(buf.bits, (b[byteIdx]>>bitIdx)&1 == 1)
	}
	return buf, nil
}

// Push appends the low nBits of value, LSB-first.
func (b *BitBuffer) Push(value uint64, nBits int) error {
	if nBits < 0 {
		return errors.Wrap(ErrOverflow, "Push: negative bit width")
	}
	if len(b.bits)+nBits > b.maxBits {
		return errors.Wrapf(ErrOverflow, "Push: %d bits would exceed cap %d", len(b.bits)+nBits, b.maxBits)
	}

	for i := 0; i < nBits; i++ {
		b.bits = append(b.bits, (value>>i)&1 == 1)
	}
	return nil
}

// Pop consumes and returns the next nBits as an unsigned value, LSB-first.
func (b *BitBuffer) Pop(nBits int) (uint64, error) {
	if nBits < 0 || b.readPos+nBits > len(b.bits) {
		return 0, errors.Wrapf(ErrOverflow, "Pop: %d bits requested, %d remaining", nBits, b.RemainingBits())
	}

	var value uint64
	for i := 0; i < nBits; i++ {
		if b.bits[b.readPos+i] {
			value |= 1 << i
		}
	}
	b.readPos += nBits
	return value, nil
}

// Peek behaves like Pop but does not advance the read cursor.
func (b *BitBuffer) Peek(nBits int) (uint64, error) {
	save := b.readPos
	v, err := b.Pop(nBits)
	b.readPos = save
	return v, err
}

// Append pushes every remaining unread bit of other onto b, in order,
// without disturbing other's read cursor. Used by the DCCL field codecs to
// concatenate a field's independently-built BitBuffer onto a message body.
func (b *BitBuffer) Append(other *BitBuffer) error {
	n := other.RemainingBits()
	for i := 0; i < n; i++ {
		bit := other.bits[other.readPos+i]
		v := uint64(0)
		if bit {
			v = 1
		}
		if err := b.Push(v, 1); err != nil {
			return err
		}
	}
	return nil
}

// SizeBits returns the total number of bits written so far.
func (b *BitBuffer) SizeBits() int {
	return len(b.bits)
}

// RemainingBits returns the bits not yet consumed by Pop.
func (b *BitBuffer) RemainingBits() int {
	return len(b.bits) - b.readPos
}

// ToBytes renders the written bits as bytes, zero-padded at the tail to a
// whole-byte boundary. The read cursor is not consulted.
func (b *BitBuffer) ToBytes() []byte {
	nBytes := (len(b.bits) + 7) / 8
	out := make([]byte, nBytes)
	for i, bit := range b.bits {
		if bit {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}
