// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import (
	"math"

	"github.com/pkg/errors"

	"github.com/MikeGodin/goby-acomms/pkg/bitbuffer"
)

// StringCodec is the default string codec, spec §4.2: a length prefix of
// ceil(log2(MaxLength+2)) bits, then 8 bits per byte. Encode silently
// truncates values past MaxLength unless fd.Options.StrictString is set
// (spec §9 Open Question), in which case it returns ErrStringTruncated.
//
// The length prefix is shifted by +1, the same convention IntCodec/
// FloatCodec use to reserve wire value 0 for absent: wire 0 means absent,
// wire 1..MaxLength+1 maps to length 0..MaxLength. Without the shift, a
// present-but-empty string and an absent one would both encode to a
// length prefix of 0 and be indistinguishable on decode.
type StringCodec struct{}

func (c *StringCodec) Kind() CodecKind { return Variable }

func (c *StringCodec) Validate(fd *FieldDescriptor) error {
	if fd.Options.MaxLength <= 0 {
		return errors.Wrapf(ErrValidation, "field %q: string MaxLength must be > 0", fd.Name)
	}
	return nil
}

func (c *StringCodec) lenBits(fd *FieldDescriptor) int {
	bits := int(math.Ceil(math.Log2(float64(fd.Options.MaxLength + 2))))
	if bits < 1 {
		bits = 1
	}
	return bits
}

func (c *StringCodec) Encode(_ *Codec, fd *FieldDescriptor, v FieldValue) (*bitbuffer.BitBuffer, error) {
	buf := bitbuffer.New()
	if !v.Present {
		return buf, buf.Push(0, c.lenBits(fd))
	}

	s := v.Str
	if len(s) > fd.Options.MaxLength {
		if fd.Options.StrictString {
			return nil, errors.Wrapf(ErrStringTruncated, "field %q: %d bytes exceeds MaxLength %d", fd.Name, len(s), fd.Options.MaxLength)
		}
		s = s[:fd.Options.MaxLength]
	}

	if err := buf.Push(uint64(len(s))+1, c.lenBits(fd)); err != nil {
		return nil, err
	}
	for i := 0; i < len(s); i++ {
		if err := buf.Push(uint64(s[i]), 8); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (c *StringCodec) Decode(_ *Codec, fd *FieldDescriptor, buf *bitbuffer.BitBuffer, _ int) (FieldValue, error) {
	n, err := buf.Pop(c.lenBits(fd))
	if err != nil {
		return FieldValue{}, errors.Wrap(ErrMalformed, err.Error())
	}
	if n == 0 {
		return Absent(TypeString), nil
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
	return StringValue(string(out)), nil
}

func (c *StringCodec) Size(_ *Codec, fd *FieldDescriptor, v FieldValue) (int, error) {
	if !v.Present {
		return c.lenBits(fd), nil
	}
	n := len(v.Str)
	if n > fd.Options.MaxLength {
		n = fd.Options.MaxLength
	}
	return c.lenBits(fd) + n*8, nil
}

func (c *StringCodec) MinSize(_ *Codec, fd *FieldDescriptor) int { return c.lenBits(fd) }
func (c *StringCodec) MaxSize(_ *Codec, fd *FieldDescriptor) int {
	return c.lenBits(fd) + fd.Options.MaxLength*8
}
