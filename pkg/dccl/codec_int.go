// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import (
	"math"

	"github.com/pkg/errors"

	"github.com/MikeGodin/goby-acomms/pkg/bitbuffer"
)

// IntCodec is the default bounded integer codec, spec §4.2: wire 0 means
// "absent", wire values 1..N map onto [Min, Max]. Signed selects whether
// FieldValue.Int or FieldValue.Uint carries the decoded value.
type IntCodec struct {
	Signed bool
}

func (c *IntCodec) Kind() CodecKind { return Fixed }

func (c *IntCodec) Validate(fd *FieldDescriptor) error {
	o := fd.Options
	if o.Max < o.Min {
		return errors.Wrapf(ErrValidation, "field %q: max %v < min %v", fd.Name, o.Max, o.Min)
	}
	if width(o.Min, o.Max, 0) > 63 {
		return errors.Wrapf(ErrValidation, "field %q: range too wide for a 64-bit wire value", fd.Name)
	}
	return nil
}

// width computes ceil(log2((max-min)/step + 2)), spec §4.2's bounded
// integer width rule: the +2 reserves wire value 0 for "absent" and
// rounds the top of the range up to a representable slot.
func width(min, max float64, precision int) int {
	step := math.Pow(10, float64(-precision))
	n := (max-min)/step + 2
	if n < 2 {
		n = 2
	}
	bits := int(math.Ceil(math.Log2(n)))
	if bits < 1 {
		bits = 1
	}
	return bits
}

func (c *IntCodec) bits(fd *FieldDescriptor) int {
	return width(fd.Options.Min, fd.Options.Max, 0)
}

func (c *IntCodec) Encode(_ *Codec, fd *FieldDescriptor, v FieldValue) (*bitbuffer.BitBuffer, error) {
	buf := bitbuffer.New()
	if !v.Present {
		return buf, buf.Push(0, c.bits(fd))
	}

	val := float64(v.Int)
	if !c.Signed {
		val = float64(v.Uint)
	}
	o := fd.Options
	if val < o.Min || val > o.Max {
		return nil, errors.Wrapf(ErrOutOfRange, "field %q: %v not in [%v, %v]", fd.Name, val, o.Min, o.Max)
	}

	wire := uint64(math.Round((val-o.Min)/1.0)) + 1
	return buf, buf.Push(wire, c.bits(fd))
}

func (c *IntCodec) Decode(_ *Codec, fd *FieldDescriptor, buf *bitbuffer.BitBuffer, _ int) (FieldValue, error) {
	wire, err := buf.Pop(c.bits(fd))
	if err != nil {
		return FieldValue{}, errors.Wrap(ErrMalformed, err.Error())
	}
	if wire == 0 {
		if c.Signed {
			return Absent(TypeInt64), nil
		}
		return Absent(TypeUint64), nil
	}

	val := fd.Options.Min + float64(wire-1)
	if c.Signed {
		return IntValue(int64(math.Round(val))), nil
	}
	return UintValue(uint64(math.Round(val))), nil
}

func (c *IntCodec) Size(_ *Codec, fd *FieldDescriptor, _ FieldValue) (int, error) {
	return c.bits(fd), nil
}

func (c *IntCodec) MinSize(_ *Codec, fd *FieldDescriptor) int { return c.bits(fd) }
func (c *IntCodec) MaxSize(_ *Codec, fd *FieldDescriptor) int { return c.bits(fd) }
