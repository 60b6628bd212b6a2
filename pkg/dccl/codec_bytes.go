// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import (
	"math"

	"github.com/pkg/errors"

	"github.com/MikeGodin/goby-acomms/pkg/bitbuffer"
)

// BytesCodec is the default byte-string codec, spec §4.2: identical framing
// to StringCodec (length prefix then raw bytes) but no truncation contract
// documented for it in the spec, so out-of-range length is a hard error.
//
// The length prefix is shifted by +1, the same convention IntCodec/
// FloatCodec use to reserve wire value 0 for absent: wire 0 means absent,
// wire 1..MaxLength+1 maps to length 0..MaxLength. Without the shift, a
// present-but-empty byte string and an absent one would both encode to a
// length prefix of 0 and be indistinguishable on decode.
type BytesCodec struct{}

func (c *BytesCodec) Kind() CodecKind { return Variable }

func (c *BytesCodec) Validate(fd *FieldDescriptor) error {
	if fd.Options.MaxLength <= 0 {
		return errors.Wrapf(ErrValidation, "field %q: bytes MaxLength must be > 0", fd.Name)
	}
	return nil
}

func (c *BytesCodec) lenBits(fd *FieldDescriptor) int {
	bits := int(math.Ceil(math.Log2(float64(fd.Options.MaxLength + 2))))
	if bits < 1 {
		bits = 1
	}
	return bits
}

func (c *BytesCodec) Encode(_ *Codec, fd *FieldDescriptor, v FieldValue) (*bitbuffer.BitBuffer, error) {
	buf := bitbuffer.New()
	if !v.Present {
		return buf, buf.Push(0, c.lenBits(fd))
	}
	if len(v.Bytes) > fd.Options.MaxLength {
		return nil, errors.Wrapf(ErrOutOfRange, "field %q: %d bytes exceeds MaxLength %d", fd.Name, len(v.Bytes), fd.Options.MaxLength)
	}

	if err := buf.Push(uint64(len(v.Bytes))+1, c.lenBits(fd)); err != nil {
		return nil, err
	}
	for _, b := range v.Bytes {
		if err := buf.Push(uint64(b), 8); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (c *BytesCodec) Decode(_ *Codec, fd *FieldDescriptor, buf *bitbuffer.BitBuffer, _ int) (FieldValue, error) {
	n, err := buf.Pop(c.lenBits(fd))
	if err != nil {
		return FieldValue{}, errors.Wrap(ErrMalformed, err.Error())
	}
	if n == 0 {
		return Absent(TypeBytes), nil
	}
	n--

	out := make([]byte, n)
	for i := range out {
		b, err := buf.Pop(8)
		if err != nil {
			return FieldValue{}, errors.Wrap(ErrMalformed, err.Error())
		}
		out[i] = byte(b)
	}
	return BytesValue(out), nil
}

func (c *BytesCodec) Size(_ *Codec, fd *FieldDescriptor, v FieldValue) (int, error) {
	if !v.Present {
		return c.lenBits(fd), nil
	}
	if len(v.Bytes) > fd.Options.MaxLength {
		return 0, errors.Wrapf(ErrOutOfRange, "field %q: %d bytes exceeds MaxLength %d", fd.Name, len(v.Bytes), fd.Options.MaxLength)
	}
	return c.lenBits(fd) + len(v.Bytes)*8, nil
}

func (c *BytesCodec) MinSize(_ *Codec, fd *FieldDescriptor) int { return c.lenBits(fd) }
func (c *BytesCodec) MaxSize(_ *Codec, fd *FieldDescriptor) int {
	return c.lenBits(fd) + fd.Options.MaxLength*8
}
