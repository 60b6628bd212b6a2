// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

// FieldOptions configures a bound FieldCodec. Not every field applies to
// every codec; each concrete codec's Validate rejects the options it does
// not understand or that are out of range for its kind.
type FieldOptions struct {
	// Min/Max bound an Int/Uint/Float field's legal domain.
	Min, Max float64

	// Precision is the number of decimal digits a Float field's wire
	// integer preserves; step = 10^(-Precision).
	Precision int

	// MaxLength bounds a String/Bytes field's encoded length in bytes.
	MaxLength int

	// StrictString turns StringCodec's default silent truncation into an
	// ErrStringTruncated encode failure (spec §9 Open Question).
	StrictString bool

	// EnumValues maps an Enum field's wire integers to symbolic names, in
	// declaration order; wire value 0 is reserved for absent.
	EnumValues []string

	// MaxRepeat bounds a Repeated field's element count.
	MaxRepeat int

	// Optional marks a Message field as carrying a presence bit.
	Optional bool

	// CodecName selects a non-default FieldCodec registered under this
	// name for the field's FieldType. Empty means "dccl.default".
	CodecName string

	// ExtensionValue is passed verbatim to this field's registered hook
	// (Codec.RegisterHook), if any; e.g. the queue layer tags a field as
	// carrying "dest" or "ttl" this way so a shared hook can dispatch on
	// it without hard-coding field names.
	ExtensionValue interface{}
}

// codecName defaults CodecName to the package-wide default binding name.
func (o FieldOptions) codecName() string {
	if o.CodecName == "" {
		return DefaultCodecName
	}
	return o.CodecName
}

// FieldDescriptor describes one field of a Descriptor: its wire position,
// caller-facing type, options, and (after Validate) its bound codec.
type FieldDescriptor struct {
	Name    string
	Type    FieldType
	Options FieldOptions

	// ExtensionNumber, when non-zero, makes this field a hook target:
	// Codec.Encode and Codec.Decode invoke any hook registered for this
	// number with the field's value as they traverse the descriptor.
	ExtensionNumber int

	// Element describes a Repeated field's element type/options; nil for
	// any other FieldType.
	Element *FieldDescriptor

	// Sub is the nested message schema for a Message field; nil for any
	// other FieldType. It is validated (codecs bound, sizes computed)
	// together with the containing Descriptor.
	Sub *Descriptor

	// NewSub constructs an empty Message to decode a Message field into;
	// required whenever Type is TypeMessage.
	NewSub func() Message

	// codec is filled in by Codec.Validate. Per-field bit bounds aren't
	// cached here; MinSize/MaxSize recompute from Options on demand, and
	// Descriptor.bodyMinBits/bodyMaxBits cache the summed body bounds.
	codec FieldCodec
}

// Descriptor is the schema for one DCCL message type, registered under a
// DCCL id (1-65535). Codecs and the queue layer hold non-owning references
// to a Descriptor; the Registry exclusively owns it.
type Descriptor struct {
	ID     uint16
	Name   string
	Fields []FieldDescriptor

	// MaxBytes overrides the package default (32) for this descriptor's
	// wire budget check during Validate.
	MaxBytes int

	validated   bool
	idBits      int
	bodyMinBits int
	bodyMaxBits int
}

// Validated reports whether Codec.Validate has successfully processed this
// descriptor.
func (d *Descriptor) Validated() bool { return d.validated }

// BodyBitBounds returns the validated min/max body size in bits, excluding
// the id codec's bits.
func (d *Descriptor) BodyBitBounds() (min, max int) { return d.bodyMinBits, d.bodyMaxBits }
