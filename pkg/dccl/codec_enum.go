// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import (
	"math"

	"github.com/pkg/errors"

	"github.com/MikeGodin/goby-acomms/pkg/bitbuffer"
)

// EnumCodec is the default enum codec, spec §4.2: width = ceil(log2(n+1)),
// wire 0 means absent, wire values 1..n index EnumValues in declaration
// order.
type EnumCodec struct{}

func (c *EnumCodec) Kind() CodecKind { return Fixed }

func (c *EnumCodec) Validate(fd *FieldDescriptor) error {
	if len(fd.Options.EnumValues) == 0 {
		return errors.Wrapf(ErrValidation, "field %q: enum has no EnumValues", fd.Name)
	}
	return nil
}

func (c *EnumCodec) bits(fd *FieldDescriptor) int {
	n := len(fd.Options.EnumValues)
	bits := int(math.Ceil(math.Log2(float64(n + 1))))
	if bits < 1 {
		bits = 1
	}
	return bits
}

func (c *EnumCodec) Encode(_ *Codec, fd *FieldDescriptor, v FieldValue) (*bitbuffer.BitBuffer, error) {
	buf := bitbuffer.New()
	if !v.Present {
		return buf, buf.Push(0, c.bits(fd))
	}

	n := len(fd.Options.EnumValues)
	idx := int(v.EnumVal)
	if idx < 1 || idx > n {
		return nil, errors.Wrapf(ErrOutOfRange, "field %q: enum index %d out of [1,%d]", fd.Name, idx, n)
	}
	return buf, buf.Push(uint64(idx), c.bits(fd))
}

func (c *EnumCodec) Decode(_ *Codec, fd *FieldDescriptor, buf *bitbuffer.BitBuffer, _ int) (FieldValue, error) {
	wire, err := buf.Pop(c.bits(fd))
	if err != nil {
		return FieldValue{}, errors.Wrap(ErrMalformed, err.Error())
	}
	if wire == 0 {
		return Absent(TypeEnum), nil
	}

	values := fd.Options.EnumValues
	if int(wire) > len(values) {
		return FieldValue{}, errors.Wrapf(ErrMalformed, "field %q: enum wire value %d out of range", fd.Name, wire)
	}
	return EnumValue(int32(wire), values[wire-1]), nil
}

func (c *EnumCodec) Size(_ *Codec, fd *FieldDescriptor, _ FieldValue) (int, error) {
	return c.bits(fd), nil
}

func (c *EnumCodec) MinSize(_ *Codec, fd *FieldDescriptor) int { return c.bits(fd) }
func (c *EnumCodec) MaxSize(_ *Codec, fd *FieldDescriptor) int { return c.bits(fd) }
