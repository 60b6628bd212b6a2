// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import (
	"testing"

	"github.com/pkg/errors"
)

// compositeMessage exercises string, enum, bool, sub-message and repeated
// fields together.
type compositeMessage struct {
	descriptor *Descriptor
	Name       string
	Status     int32
	StatusSym  string
	Active     bool
	Reading    *readingMessage
	Samples    []int64
}

type readingMessage struct {
	Depth int64
}

func readingDescriptor() *Descriptor {
	return &Descriptor{
		Fields: []FieldDescriptor{
			{Name: "depth", Type: TypeInt64, Options: FieldOptions{Min: 0, Max: 1000}},
		},
	}
}

func (m *readingMessage) DCCLDescriptor() *Descriptor { return nil }
func (m *readingMessage) DCCLFields() []FieldValue     { return []FieldValue{IntValue(m.Depth)} }
func (m *readingMessage) DCCLSetFields(vs []FieldValue) error {
	m.Depth = vs[0].Int
	return nil
}

func compositeDescriptor() *Descriptor {
	return &Descriptor{
		ID:   20,
		Name: "CompositeMessage",
		Fields: []FieldDescriptor{
			{Name: "name", Type: TypeString, Options: FieldOptions{MaxLength: 8}},
			{Name: "status", Type: TypeEnum, Options: FieldOptions{EnumValues: []string{"OK", "WARN", "FAIL"}}},
			{Name: "active", Type: TypeBool},
			{
				Name: "reading", Type: TypeMessage,
				Options: FieldOptions{Optional: true},
				Sub:     readingDescriptor(),
				NewSub:  func() Message { return &readingMessage{} },
			},
			{
				Name: "samples", Type: TypeRepeated,
				Options: FieldOptions{MaxRepeat: 4},
				Element: &FieldDescriptor{Name: "sample", Type: TypeInt64, Options: FieldOptions{Min: 0, Max: 255}},
			},
		},
	}
}

func (m *compositeMessage) DCCLDescriptor() *Descriptor { return m.descriptor }

func (m *compositeMessage) DCCLFields() []FieldValue {
	samples := make([]FieldValue, len(m.Samples))
	for i, s := range m.Samples {
		samples[i] = IntValue(s)
	}

	reading := Absent(TypeMessage)
	if m.Reading != nil {
		reading = MessageValue(m.Reading)
	}

	return []FieldValue{
		StringValue(m.Name),
		EnumValue(m.Status, m.StatusSym),
		BoolValue(m.Active),
		reading,
		RepeatedValue(samples),
	}
}

func (m *compositeMessage) DCCLSetFields(vs []FieldValue) error {
	m.Name = vs[0].Str
	m.Status = vs[1].EnumVal
	m.StatusSym = vs[1].EnumSym
	m.Active = vs[2].Bool
	if vs[3].Present {
		m.Reading = vs[3].Message.(*readingMessage)
	} else {
		m.Reading = nil
	}
	m.Samples = m.Samples[:0]
	for _, e := range vs[4].Repeated {
		m.Samples = append(m.Samples, e.Int)
	}
	return nil
}

func newValidatedComposite(t *testing.T) (*Codec, *Descriptor) {
	t.Helper()
	reg := NewRegistry()
	c := NewCodec(reg)
	d := compositeDescriptor()
	if err := c.Validate(d); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return c, d
}

func TestCompositeRoundTrip(t *testing.T) {
	c, d := newValidatedComposite(t)

	msg := &compositeMessage{
		descriptor: d,
		Name:       "buoy1",
		Status:     2,
		StatusSym:  "WARN",
		Active:     true,
		Reading:    &readingMessage{Depth: 42},
		Samples:    []int64{1, 2, 3},
	}
	b, err := c.Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out := &compositeMessage{descriptor: d}
	if err := c.Decode(b, out); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if out.Name != "buoy1" || out.StatusSym != "WARN" || !out.Active || out.Reading == nil || out.Reading.Depth != 42 {
		t.Fatalf("round-trip mismatch: %+v", out)
	}
	if len(out.Samples) != 3 || out.Samples[0] != 1 || out.Samples[2] != 3 {
		t.Fatalf("samples round-tripped wrong: %v", out.Samples)
	}
}

func TestCompositeOptionalSubMessageAbsent(t *testing.T) {
	c, d := newValidatedComposite(t)

	msg := &compositeMessage{descriptor: d, Name: "x", Status: 1, StatusSym: "OK"}
	b, err := c.Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out := &compositeMessage{descriptor: d}
	if err := c.Decode(b, out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Reading != nil {
		t.Fatalf("expected absent sub-message, got %+v", out.Reading)
	}

	// Size monotonicity: an absent optional sub-message must not encode
	// smaller than the descriptor's own claimed minimum body size.
	bodyBuf, err := c.encodeFields(d.Fields, msg.DCCLFields())
	if err != nil {
		t.Fatalf("encodeFields: %v", err)
	}
	min, max := d.BodyBitBounds()
	if bodyBuf.SizeBits() < min {
		t.Fatalf("encoded body size %d bits < claimed min %d bits", bodyBuf.SizeBits(), min)
	}
	if bodyBuf.SizeBits() > max {
		t.Fatalf("encoded body size %d bits > claimed max %d bits", bodyBuf.SizeBits(), max)
	}
}

func TestStringTruncatesSilentlyByDefault(t *testing.T) {
	c, d := newValidatedComposite(t)

	msg := &compositeMessage{descriptor: d, Name: "way too long", Status: 1, StatusSym: "OK"}
	b, err := c.Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out := &compositeMessage{descriptor: d}
	if err := c.Decode(b, out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Name != "way too " {
		t.Fatalf("Name = %q, want truncated to 8 bytes", out.Name)
	}
}

func TestStrictStringRejectsOverflow(t *testing.T) {
	reg := NewRegistry()
	c := NewCodec(reg)
	d := &Descriptor{
		ID:   21,
		Name: "StrictString",
		Fields: []FieldDescriptor{
			{Name: "name", Type: TypeString, Options: FieldOptions{MaxLength: 4, StrictString: true}},
		},
	}
	if err := c.Validate(d); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	msg := &simpleStringMessage{descriptor: d, Value: "toolong"}
	if _, err := c.Encode(msg); !errors.Is(err, ErrStringTruncated) {
		t.Fatalf("Encode error = %v, want ErrStringTruncated", err)
	}
}

type simpleStringMessage struct {
	descriptor *Descriptor
	Value      string
}

func (m *simpleStringMessage) DCCLDescriptor() *Descriptor { return m.descriptor }
func (m *simpleStringMessage) DCCLFields() []FieldValue     { return []FieldValue{StringValue(m.Value)} }
func (m *simpleStringMessage) DCCLSetFields(vs []FieldValue) error {
	m.Value = vs[0].Str
	return nil
}

func TestRepeatedOverMaxRejected(t *testing.T) {
	c, d := newValidatedComposite(t)

	msg := &compositeMessage{
		descriptor: d, Name: "x", Status: 1, StatusSym: "OK",
		Samples: []int64{1, 2, 3, 4, 5},
	}
	if _, err := c.Encode(msg); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Encode error = %v, want ErrOutOfRange", err)
	}
}

func TestEnumUnknownIndexRejected(t *testing.T) {
	c, d := newValidatedComposite(t)

	msg := &compositeMessage{descriptor: d, Name: "x", Status: 9, StatusSym: "?"}
	if _, err := c.Encode(msg); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Encode error = %v, want ErrOutOfRange", err)
	}
}
