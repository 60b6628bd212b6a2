// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import (
	"github.com/pkg/errors"

	"github.com/MikeGodin/goby-acomms/pkg/bitbuffer"
)

// MessageCodec is the default sub-message codec, spec §4.2: recursive
// encode with no additional per-field framing; a 1-bit presence flag is
// prepended only when fd.Options.Optional is set.
type MessageCodec struct{}

func (c *MessageCodec) Kind() CodecKind { return Variable }

func (c *MessageCodec) Validate(fd *FieldDescriptor) error {
	if fd.Sub == nil {
		return errors.Wrapf(ErrValidation, "field %q: message field has no Sub descriptor", fd.Name)
	}
	if fd.NewSub == nil {
		return errors.Wrapf(ErrValidation, "field %q: message field has no NewSub factory", fd.Name)
	}
	return nil
}

func (c *MessageCodec) Encode(dc *Codec, fd *FieldDescriptor, v FieldValue) (*bitbuffer.BitBuffer, error) {
	buf := bitbuffer.New()
	if fd.Options.Optional {
		presence := uint64(0)
		if v.Present {
			presence = 1
		}
		if err := buf.Push(presence, 1); err != nil {
			return nil, err
		}
		if !v.Present {
			return buf, nil
		}
	} else if !v.Present {
		return nil, errors.Wrapf(ErrValidation, "field %q: required message field is absent", fd.Name)
	}

	body, err := dc.encodeFields(fd.Sub.Fields, v.Message.DCCLFields())
	if err != nil {
		return nil, errors.Wrapf(err, "field %q", fd.Name)
	}
	if err := buf.Append(body); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *MessageCodec) Decode(dc *Codec, fd *FieldDescriptor, buf *bitbuffer.BitBuffer, remainingBits int) (FieldValue, error) {
	if fd.Options.Optional {
		presence, err := buf.Pop(1)
		if err != nil {
			return FieldValue{}, errors.Wrap(ErrMalformed, err.Error())
		}
		remainingBits--
		if presence == 0 {
			return Absent(TypeMessage), nil
		}
	}

	values, err := dc.decodeFields(fd.Sub.Fields, buf, remainingBits)
	if err != nil {
		return FieldValue{}, errors.Wrapf(err, "field %q", fd.Name)
	}

	msg := fd.NewSub()
	if err := msg.DCCLSetFields(values); err != nil {
		return FieldValue{}, errors.Wrapf(ErrMalformed, "field %q: %v", fd.Name, err)
	}
	return MessageValue(msg), nil
}

func (c *MessageCodec) Size(dc *Codec, fd *FieldDescriptor, v FieldValue) (int, error) {
	bits := 0
	if fd.Options.Optional {
		bits++
		if !v.Present {
			return bits, nil
		}
	}
	body, err := dc.encodeFields(fd.Sub.Fields, v.Message.DCCLFields())
	if err != nil {
		return 0, err
	}
	return bits + body.SizeBits(), nil
}

func (c *MessageCodec) MinSize(dc *Codec, fd *FieldDescriptor) int {
	// An optional sub-message's true minimum is the bare presence bit:
	// Encode lets an absent value skip the sub-body entirely, mirroring
	// Size's own !v.Present short-circuit above.
	if fd.Options.Optional {
		return 1
	}
	return fd.Sub.bodyMinBits
}

func (c *MessageCodec) MaxSize(dc *Codec, fd *FieldDescriptor) int {
	bits := 0
	if fd.Options.Optional {
		bits++
	}
	return bits + fd.Sub.bodyMaxBits
}
