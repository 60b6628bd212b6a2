// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import "github.com/MikeGodin/goby-acomms/pkg/bitbuffer"

// DefaultCodecName is the FieldCodec binding name used when a
// FieldDescriptor does not request one explicitly.
const DefaultCodecName = "dccl.default"

// CodecKind distinguishes a FieldCodec whose wire size is constant across
// every legal value (Fixed, exposing only Size/MinSize==MaxSize) from one
// whose size varies per value (Variable).
type CodecKind int

const (
	Fixed CodecKind = iota
	Variable
)

// FieldCodec is the capability set every field-level codec implements,
// spec §4.2. Encode, Decode, Size, MinSize and MaxSize receive the owning
// Codec so Message and
// Repeated codecs can recurse into sub-descriptors/elements without a
// separate inheritance hierarchy (spec §9 Design Notes).
type FieldCodec interface {
	// Kind reports whether Size is constant (Fixed) across legal values.
	Kind() CodecKind

	// Validate rejects options this codec cannot honor, e.g. Max below
	// Min on a bounded integer or an enum with no EnumValues.
	Validate(fd *FieldDescriptor) error

	// Encode renders v as a self-contained BitBuffer. The caller
	// concatenates this with sibling fields' buffers.
	Encode(c *Codec, fd *FieldDescriptor, v FieldValue) (*bitbuffer.BitBuffer, error)

	// Decode consumes this field's bits from buf. remainingBits is the
	// number of bits left in the surrounding message; the stock codecs
	// pass it on to nested decodes but do not bound their reads by it,
	// and a read past the end of buf fails with ErrMalformed.
	Decode(c *Codec, fd *FieldDescriptor, buf *bitbuffer.BitBuffer, remainingBits int) (FieldValue, error)

	// Size returns the exact encoded bit width of v under fd's options.
	Size(c *Codec, fd *FieldDescriptor, v FieldValue) (int, error)

	// MinSize and MaxSize bound Size across every legal value of fd.
	MinSize(c *Codec, fd *FieldDescriptor) int
	MaxSize(c *Codec, fd *FieldDescriptor) int
}

// codecKey identifies a FieldCodec binding.
type codecKey struct {
	Type FieldType
	Name string
}

// defaultCodecBindings is the stock field codec library, keyed by
// (FieldType, codec name). Codec.RegisterCodec extends or overrides it.
func defaultCodecBindings() map[codecKey]FieldCodec {
	return map[codecKey]FieldCodec{
		{TypeInt64, DefaultCodecName}:    &IntCodec{Signed: true},
		{TypeUint64, DefaultCodecName}:   &IntCodec{Signed: false},
		{TypeFloat, DefaultCodecName}:    &FloatCodec{},
		{TypeBool, DefaultCodecName}:     &BoolCodec{},
		{TypeEnum, DefaultCodecName}:     &EnumCodec{},
		{TypeString, DefaultCodecName}:   &StringCodec{},
		{TypeBytes, DefaultCodecName}:    &BytesCodec{},
		{TypeMessage, DefaultCodecName}:  &MessageCodec{},
		{TypeRepeated, DefaultCodecName}: &RepeatedCodec{},
	}
}
