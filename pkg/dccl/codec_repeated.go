// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import (
	"math"

	"github.com/pkg/errors"

	"github.com/MikeGodin/goby-acomms/pkg/bitbuffer"
)

// RepeatedCodec is the default repeated-field codec, spec §4.2: a length
// prefix of ceil(log2(MaxRepeat+1)) bits, then each element encoded via its
// own bound FieldCodec back to back.
type RepeatedCodec struct{}

func (c *RepeatedCodec) Kind() CodecKind { return Variable }

func (c *RepeatedCodec) Validate(fd *FieldDescriptor) error {
	if fd.Element == nil {
		return errors.Wrapf(ErrValidation, "field %q: repeated field has no Element descriptor", fd.Name)
	}
	if fd.Options.MaxRepeat <= 0 {
		return errors.Wrapf(ErrValidation, "field %q: repeated field needs MaxRepeat > 0", fd.Name)
	}
	return nil
}

func (c *RepeatedCodec) lenBits(fd *FieldDescriptor) int {
	bits := int(math.Ceil(math.Log2(float64(fd.Options.MaxRepeat + 1))))
	if bits < 1 {
		bits = 1
	}
	return bits
}

func (c *RepeatedCodec) Encode(dc *Codec, fd *FieldDescriptor, v FieldValue) (*bitbuffer.BitBuffer, error) {
	buf := bitbuffer.New()
	elems := v.Repeated
	if len(elems) > fd.Options.MaxRepeat {
		return nil, errors.Wrapf(ErrOutOfRange, "field %q: %d elements exceeds MaxRepeat %d", fd.Name, len(elems), fd.Options.MaxRepeat)
	}

	if err := buf.Push(uint64(len(elems)), c.lenBits(fd)); err != nil {
		return nil, err
	}
	for i, e := range elems {
		elemBuf, err := fd.Element.codec.Encode(dc, fd.Element, e)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q: element %d", fd.Name, i)
		}
		if err := buf.Append(elemBuf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (c *RepeatedCodec) Decode(dc *Codec, fd *FieldDescriptor, buf *bitbuffer.BitBuffer, remainingBits int) (FieldValue, error) {
	n, err := buf.Pop(c.lenBits(fd))
	if err != nil {
		return FieldValue{}, errors.Wrap(ErrMalformed, err.Error())
	}
	remainingBits -= c.lenBits(fd)

	elems := make([]FieldValue, 0, n)
	for i := uint64(0); i < n; i++ {
		e, err := fd.Element.codec.Decode(dc, fd.Element, buf, remainingBits)
		if err != nil {
			return FieldValue{}, errors.Wrapf(err, "field %q: element %d", fd.Name, i)
		}
		elems = append(elems, e)
	}
	return RepeatedValue(elems), nil
}

func (c *RepeatedCodec) Size(dc *Codec, fd *FieldDescriptor, v FieldValue) (int, error) {
	bits := c.lenBits(fd)
	for i, e := range v.Repeated {
		sz, err := fd.Element.codec.Size(dc, fd.Element, e)
		if err != nil {
			return 0, errors.Wrapf(err, "field %q: element %d", fd.Name, i)
		}
		bits += sz
	}
	return bits, nil
}

func (c *RepeatedCodec) MinSize(dc *Codec, fd *FieldDescriptor) int {
	return c.lenBits(fd)
}

func (c *RepeatedCodec) MaxSize(dc *Codec, fd *FieldDescriptor) int {
	return c.lenBits(fd) + fd.Options.MaxRepeat*fd.Element.codec.MaxSize(dc, fd.Element)
}
