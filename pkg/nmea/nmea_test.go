// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package nmea

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestFormatThenParseValidateRoundTrips(t *testing.T) {
	s := Sentence{Talker: "CC", ID: "CYC", Fields: []string{"0", "1", "2", "0", "1", "1"}}
	line := s.Format()

	if !strings.HasSuffix(line, "\r\n") {
		t.Fatalf("Format() = %q, want trailing CRLF", line)
	}

	got, err := Parse(line, ModeValidate)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Talker != "CC" || got.ID != "CYC" || len(got.Fields) != 6 {
		t.Fatalf("Parse() = %+v, want Talker=CC ID=CYC 6 fields", got)
	}
}

func TestTamperedByteFailsChecksum(t *testing.T) {
	s := Sentence{Talker: "CC", ID: "CFG", Fields: []string{"TAT", "50"}}
	line := s.Format()
	tampered := strings.Replace(line, "TAT", "TAX", 1)

	if _, err := Parse(tampered, ModeValidate); !errors.Is(err, ErrBadChecksum) {
		t.Fatalf("Parse(tampered) error = %v, want ErrBadChecksum", err)
	}
}

func TestIgnoreModeAcceptsMissingChecksum(t *testing.T) {
	if _, err := Parse("$CCCFG,TAT,50\r\n", ModeIgnore); err != nil {
		t.Fatalf("Parse under ModeIgnore: %v", err)
	}
}

func TestValidateModeRejectsMissingChecksum(t *testing.T) {
	if _, err := Parse("$CCCFG,TAT,50\r\n", ModeValidate); !errors.Is(err, ErrBadChecksum) {
		t.Fatalf("Parse error = %v, want ErrBadChecksum", err)
	}
}

func TestTalkerID(t *testing.T) {
	s := Sentence{Talker: "CA", ID: "DRQ"}
	if got := s.TalkerID(); got != "CADRQ" {
		t.Fatalf("TalkerID() = %q, want CADRQ", got)
	}
}
