// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import (
	"math"

	"github.com/pkg/errors"

	"github.com/MikeGodin/goby-acomms/pkg/bitbuffer"
)

// FloatCodec is the default floating-point codec, spec §4.2: identical to
// IntCodec's bounded rule but with step = 10^(-Precision) instead of 1, so
// decode is exact only up to that step (spec §8 round-trip invariant).
type FloatCodec struct{}

func (c *FloatCodec) Kind() CodecKind { return Fixed }

func (c *FloatCodec) Validate(fd *FieldDescriptor) error {
	o := fd.Options
	if o.Max < o.Min {
		return errors.Wrapf(ErrValidation, "field %q: max %v < min %v", fd.Name, o.Max, o.Min)
	}
	if width(o.Min, o.Max, o.Precision) > 63 {
		return errors.Wrapf(ErrValidation, "field %q: range/precision too wide for a 64-bit wire value", fd.Name)
	}
	return nil
}

func (c *FloatCodec) step(fd *FieldDescriptor) float64 {
	return math.Pow(10, float64(-fd.Options.Precision))
}

func (c *FloatCodec) bits(fd *FieldDescriptor) int {
	return width(fd.Options.Min, fd.Options.Max, fd.Options.Precision)
}

func (c *FloatCodec) Encode(_ *Codec, fd *FieldDescriptor, v FieldValue) (*bitbuffer.BitBuffer, error) {
	buf := bitbuffer.New()
	if !v.Present {
		return buf, buf.Push(0, c.bits(fd))
	}

	o := fd.Options
	if v.Float < o.Min || v.Float > o.Max {
		return nil, errors.Wrapf(ErrOutOfRange, "field %q: %v not in [%v, %v]", fd.Name, v.Float, o.Min, o.Max)
	}

	step := c.step(fd)
	wire := uint64(math.Round((v.Float-o.Min)/step)) + 1
	return buf, buf.Push(wire, c.bits(fd))
}

func (c *FloatCodec) Decode(_ *Codec, fd *FieldDescriptor, buf *bitbuffer.BitBuffer, _ int) (FieldValue, error) {
	wire, err := buf.Pop(c.bits(fd))
	if err != nil {
		return FieldValue{}, errors.Wrap(ErrMalformed, err.Error())
	}
	if wire == 0 {
		return Absent(TypeFloat), nil
	}

	step := c.step(fd)
	return FloatValue(fd.Options.Min + float64(wire-1)*step), nil
}

func (c *FloatCodec) Size(_ *Codec, fd *FieldDescriptor, _ FieldValue) (int, error) {
	return c.bits(fd), nil
}

func (c *FloatCodec) MinSize(_ *Codec, fd *FieldDescriptor) int { return c.bits(fd) }
func (c *FloatCodec) MaxSize(_ *Codec, fd *FieldDescriptor) int { return c.bits(fd) }
