// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package nmea implements the ASCII sentence framing the WHOI Micro-Modem
// speaks over its serial link, spec §4.6: "$TTSSS,f1,f2,...*HH".
package nmea

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrBadChecksum is returned by Parse under ModeValidate/ModeRequire when a
// sentence's trailing checksum doesn't match its body.
var ErrBadChecksum = errors.New("nmea_bad_checksum")

// ErrShortLine is returned by Parse when a line is too short to contain a
// well-formed sentence (missing '$', talker, or sentence id).
var ErrShortLine = errors.New("nmea_short_line")

// ChecksumMode selects how Parse treats a sentence's checksum field.
type ChecksumMode int

const (
	// ModeIgnore accepts any or no checksum without validating it.
	ModeIgnore ChecksumMode = iota
	// ModeValidate requires a checksum to be present and correct.
	ModeValidate
	// ModeRequire is an alias of ModeValidate kept distinct in the API so
	// callers can express "checksum is mandatory" versus "if present,
	// must be correct" should that distinction be needed later; today
	// both enforce the same check.
	ModeRequire
)

// Sentence is a parsed or to-be-formatted NMEA line: "$" + Talker + ID +
// comma-joined Fields + "*" + checksum + CRLF.
type Sentence struct {
	Talker string
	ID     string
	Fields []string
}

// TalkerID returns the 5-character sentence identifier Talker + ID (e.g.
// "CADRQ"), without the leading "$".
func (s Sentence) TalkerID() string {
	return s.Talker + s.ID
}

// Format renders s with a freshly computed XOR checksum and a trailing
// "\r\n", spec §4.6: the formatter always appends a valid checksum.
func (s Sentence) Format() string {
	body := s.Talker + s.ID
	if len(s.Fields) > 0 {
		body += "," + strings.Join(s.Fields, ",")
	}
	return fmt.Sprintf("$%s*%02X\r\n", body, xorChecksum(body))
}

// Parse decodes line (with or without a trailing CRLF) into a Sentence,
// spec §4.6. mode controls checksum enforcement.
func Parse(line string, mode ChecksumMode) (Sentence, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 6 || line[0] != '$' {
		return Sentence{}, errors.Wrapf(ErrShortLine, "line %q", line)
	}

	body := line[1:]
	checksum := ""
	if star := strings.IndexByte(body, '*'); star >= 0 {
		checksum = body[star+1:]
		body = body[:star]
	}

	if mode != ModeIgnore {
		if checksum == "" {
			return Sentence{}, errors.Wrapf(ErrBadChecksum, "line %q: no checksum present", line)
		}
		want := fmt.Sprintf("%02X", xorChecksum(body))
		if !strings.EqualFold(checksum, want) {
			return Sentence{}, errors.Wrapf(ErrBadChecksum, "line %q: checksum %s, want %s", line, checksum, want)
		}
	}

	fields := strings.Split(body, ",")
	if len(fields) == 0 || len(fields[0]) < 5 {
		return Sentence{}, errors.Wrapf(ErrShortLine, "line %q: talker+id too short", line)
	}

	return Sentence{
		Talker: fields[0][:2],
		ID:     fields[0][2:],
		Fields: fields[1:],
	}, nil
}

// xorChecksum XORs every byte of s together, spec §4.6.
func xorChecksum(s string) byte {
	var sum byte
	for i := 0; i < len(s); i++ {
		sum ^= s[i]
	}
	return sum
}
