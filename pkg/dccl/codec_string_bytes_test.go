// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import "testing"

// A present-but-empty string/bytes value must round-trip distinct from an
// absent one: both used to collapse to the same wire length prefix of 0.
func TestStringPresentEmptyRoundTripsDistinctFromAbsent(t *testing.T) {
	fd := &FieldDescriptor{Name: "s", Type: TypeString, Options: FieldOptions{MaxLength: 8}}
	c := &StringCodec{}
	if err := c.Validate(fd); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	buf, err := c.Encode(nil, fd, StringValue(""))
	if err != nil {
		t.Fatalf("Encode(present empty): %v", err)
	}
	got, err := c.Decode(nil, fd, buf, buf.SizeBits())
	if err != nil {
		t.Fatalf("Decode(present empty): %v", err)
	}
	if !got.Present {
		t.Fatalf("decoded present-empty string as absent")
	}
	if got.Str != "" {
		t.Fatalf("decoded string = %q, want empty", got.Str)
	}

	absentBuf, err := c.Encode(nil, fd, Absent(TypeString))
	if err != nil {
		t.Fatalf("Encode(absent): %v", err)
	}
	gotAbsent, err := c.Decode(nil, fd, absentBuf, absentBuf.SizeBits())
	if err != nil {
		t.Fatalf("Decode(absent): %v", err)
	}
	if gotAbsent.Present {
		t.Fatalf("decoded absent string as present")
	}
}

func TestBytesPresentEmptyRoundTripsDistinctFromAbsent(t *testing.T) {
	fd := &FieldDescriptor{Name: "b", Type: TypeBytes, Options: FieldOptions{MaxLength: 8}}
	c := &BytesCodec{}
	if err := c.Validate(fd); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	buf, err := c.Encode(nil, fd, BytesValue(nil))
	if err != nil {
		t.Fatalf("Encode(present empty): %v", err)
	}
	got, err := c.Decode(nil, fd, buf, buf.SizeBits())
	if err != nil {
		t.Fatalf("Decode(present empty): %v", err)
	}
	if !got.Present {
		t.Fatalf("decoded present-empty bytes as absent")
	}
	if len(got.Bytes) != 0 {
		t.Fatalf("decoded bytes = %v, want empty", got.Bytes)
	}

	absentBuf, err := c.Encode(nil, fd, Absent(TypeBytes))
	if err != nil {
		t.Fatalf("Encode(absent): %v", err)
	}
	gotAbsent, err := c.Decode(nil, fd, absentBuf, absentBuf.SizeBits())
	if err != nil {
		t.Fatalf("Decode(absent): %v", err)
	}
	if gotAbsent.Present {
		t.Fatalf("decoded absent bytes as present")
	}
}
