// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import (
	"github.com/pkg/errors"

	"github.com/MikeGodin/goby-acomms/pkg/bitbuffer"
)

// BoolCodec is the default boolean codec, spec §4.2: 2 bits, 0=absent,
// 1=false, 2=true.
type BoolCodec struct{}

const boolBits = 2

func (c *BoolCodec) Kind() CodecKind           { return Fixed }
func (c *BoolCodec) Validate(*FieldDescriptor) error { return nil }

func (c *BoolCodec) Encode(_ *Codec, _ *FieldDescriptor, v FieldValue) (*bitbuffer.BitBuffer, error) {
	buf := bitbuffer.New()
	wire := uint64(0)
	if v.Present {
		if v.Bool {
			wire = 2
		} else {
			wire = 1
		}
	}
	return buf, buf.Push(wire, boolBits)
}

func (c *BoolCodec) Decode(_ *Codec, _ *FieldDescriptor, buf *bitbuffer.BitBuffer, _ int) (FieldValue, error) {
	wire, err := buf.Pop(boolBits)
	if err != nil {
		return FieldValue{}, errors.Wrap(ErrMalformed, err.Error())
	}
	switch wire {
	case 0:
		return Absent(TypeBool), nil
	case 1:
		return BoolValue(false), nil
	default:
		return BoolValue(true), nil
	}
}

func (c *BoolCodec) Size(_ *Codec, _ *FieldDescriptor, _ FieldValue) (int, error) { return boolBits, nil }
func (c *BoolCodec) MinSize(_ *Codec, _ *FieldDescriptor) int                     { return boolBits }
func (c *BoolCodec) MaxSize(_ *Codec, _ *FieldDescriptor) int                     { return boolBits }
