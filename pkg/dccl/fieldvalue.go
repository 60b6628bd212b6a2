// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import "fmt"

// FieldType names the type a caller sees on a Message's field, independent
// of the wire representation the bound FieldCodec chooses internally (e.g.
// a Float field with min/max/precision is carried as an unsigned integer
// on the wire).
type FieldType int

const (
	TypeInt64 FieldType = iota
	TypeUint64
	TypeFloat
	TypeBool
	TypeString
	TypeBytes
	TypeEnum
	TypeMessage
	TypeRepeated
)

func (t FieldType) String() string {
	switch t {
	case TypeInt64:
		return "int64"
	case TypeUint64:
		return "uint64"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	case TypeEnum:
		return "enum"
	case TypeMessage:
		return "message"
	case TypeRepeated:
		return "repeated"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// FieldValue is a tagged variant over every value a DCCL field can carry.
// Exactly one of the typed accessors is meaningful per Type; Present
// distinguishes an explicitly-absent optional field (wire value 0) from a
// field carrying its domain's zero value.
type FieldValue struct {
	Type    FieldType
	Present bool

	Int     int64
	Uint    uint64
	Float   float64
	Bool    bool
	Str     string
	Bytes   []byte
	EnumVal int32
	EnumSym string

	// Message is the nested value for a TypeMessage field.
	Message Message

	// Repeated holds the element values for a TypeRepeated field.
	Repeated []FieldValue
}

// Message is implemented by generated or hand-written DCCL message types.
// Descriptor returns the schema this value should be encoded/decoded
// against; Fields returns the live field values in descriptor order for
// encode, and is the target of decode.
type Message interface {
	DCCLDescriptor() *Descriptor
	DCCLFields() []FieldValue
	DCCLSetFields([]FieldValue) error
}

// Absent returns an absent FieldValue of the given type, used by codecs to
// represent "not set" (wire value 0) on decode.
func Absent(t FieldType) FieldValue {
	return FieldValue{Type: t, Present: false}
}

// IntValue returns a present signed-integer FieldValue.
func IntValue(v int64) FieldValue { return FieldValue{Type: TypeInt64, Present: true, Int: v} }

// UintValue returns a present unsigned-integer FieldValue.
func UintValue(v uint64) FieldValue { return FieldValue{Type: TypeUint64, Present: true, Uint: v} }

// FloatValue returns a present floating-point FieldValue.
func FloatValue(v float64) FieldValue { return FieldValue{Type: TypeFloat, Present: true, Float: v} }

// BoolValue returns a present boolean FieldValue.
func BoolValue(v bool) FieldValue { return FieldValue{Type: TypeBool, Present: true, Bool: v} }

// StringValue returns a present string FieldValue.
func StringValue(v string) FieldValue { return FieldValue{Type: TypeString, Present: true, Str: v} }

// BytesValue returns a present byte-string FieldValue.
func BytesValue(v []byte) FieldValue { return FieldValue{Type: TypeBytes, Present: true, Bytes: v} }

// EnumValue returns a present enum FieldValue.
func EnumValue(v int32, sym string) FieldValue {
	return FieldValue{Type: TypeEnum, Present: true, EnumVal: v, EnumSym: sym}
}

// MessageValue returns a present sub-message FieldValue.
func MessageValue(m Message) FieldValue {
	return FieldValue{Type: TypeMessage, Present: true, Message: m}
}

// RepeatedValue returns a present repeated FieldValue.
func RepeatedValue(elems []FieldValue) FieldValue {
	return FieldValue{Type: TypeRepeated, Present: true, Repeated: elems}
}
