// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import (
	"github.com/pkg/errors"

	"github.com/MikeGodin/goby-acomms/pkg/bitbuffer"
)

// IDCodec encodes/decodes the DCCL id that leads every wire message. It is
// self-terminating: DecodeID must consume exactly as many bits as EncodeID
// produced for that id, with no external length hint, so IDFromEncoded can
// work without look-ahead.
type IDCodec interface {
	EncodeID(id uint16) (*bitbuffer.BitBuffer, error)
	DecodeID(buf *bitbuffer.BitBuffer) (uint16, error)
}

// DefaultIDCodec is spec §4.3's default: a single byte for id<128, else two
// bytes with a continuation bit in the first byte's high bit. This caps the
// two-byte form at 32767, matching spec §6's documented range; larger ids
// need a user-supplied IDCodec.
type DefaultIDCodec struct{}

func (DefaultIDCodec) EncodeID(id uint16) (*bitbuffer.BitBuffer, error) {
	buf := bitbuffer.New()
	if id < 128 {
		return buf, buf.Push(uint64(id), 8)
	}
	if id > 32767 {
		return nil, errors.Wrapf(ErrTooLarge, "id %d exceeds DefaultIDCodec's two-byte range (max 32767)", id)
	}

	low7 := uint64(id&0x7F) | 0x80
	high8 := uint64(id >> 7)
	if err := buf.Push(low7, 8); err != nil {
		return nil, err
	}
	if err := buf.Push(high8, 8); err != nil {
		return nil, err
	}
	return buf, nil
}

func (DefaultIDCodec) DecodeID(buf *bitbuffer.BitBuffer) (uint16, error) {
	b0, err := buf.Pop(8)
	if err != nil {
		return 0, errors.Wrap(ErrMalformed, "DecodeID: "+err.Error())
	}
	if b0&0x80 == 0 {
		return uint16(b0), nil
	}

	b1, err := buf.Pop(8)
	if err != nil {
		return 0, errors.Wrap(ErrMalformed, "DecodeID: "+err.Error())
	}
	return uint16(b0&0x7F) | uint16(b1)<<7, nil
}

