// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package modem

import (
	"fmt"
	"time"
)

// Link is the abstract byte-oriented transport the driver talks to: a
// full-duplex link delivering or accepting newline-terminated ASCII lines,
// spec §1's external-collaborator boundary. The driver never touches a
// concrete serial or TCP implementation directly, mirroring the teacher's
// bbc.Modem boundary between a CLA and its transport.
type Link interface {
	// WriteLine writes one line, terminator included by the caller.
	WriteLine(line string) error

	// ReadLine returns the next available line with its terminator
	// stripped, or ok=false if none is currently buffered. Non-blocking:
	// the driver polls this from Tick.
	ReadLine() (line string, ok bool, err error)

	// Close shuts the link down. Idempotent.
	Close() error
}

// HydroidLink wraps an underlying Link with the Hydroid acoustic gateway's
// framing, spec §6: writes are prefixed with "#M<id>", reads have that same
// fixed-length prefix stripped, and a "#G<id>\r\n" GPS poll is written on
// its own schedule rather than on every line.
type HydroidLink struct {
	inner Link
	id    int

	pollInterval time.Duration
	lastPoll     time.Time
	now          func() time.Time
}

// NewHydroidLink wraps inner with Hydroid gateway framing for modem id.
// pollInterval of zero disables the periodic GPS poll.
func NewHydroidLink(inner Link, id int, pollInterval time.Duration, now func() time.Time) *HydroidLink {
	if now == nil {
		now = time.Now
	}
	return &HydroidLink{inner: inner, id: id, pollInterval: pollInterval, now: now}
}

func (h *HydroidLink) prefix() string {
	return fmt.Sprintf("#M%d", h.id)
}

// WriteLine prepends the gateway's "#M<id>" framing before delegating.
func (h *HydroidLink) WriteLine(line string) error {
	return h.inner.WriteLine(h.prefix() + line)
}

// ReadLine strips the gateway's fixed-length write prefix from whatever the
// inner link hands back, tolerating lines it didn't itself frame (e.g. the
// gateway's own status chatter) by passing them through unstripped.
func (h *HydroidLink) ReadLine() (string, bool, error) {
	line, ok, err := h.inner.ReadLine()
	if !ok || err != nil {
		return line, ok, err
	}
	prefix := h.prefix()
	if len(line) >= len(prefix) && line[:len(prefix)] == prefix {
		line = line[len(prefix):]
	}
	return line, true, nil
}

// Close delegates to the inner link.
func (h *HydroidLink) Close() error {
	return h.inner.Close()
}

// PollGPSIfDue writes a "#G<id>\r\n" GPS poll if pollInterval has elapsed
// since the last one, spec §6's "emits #G<id>\r\n periodically". Called
// from Driver.Tick so polling shares the single-threaded cooperative model.
func (h *HydroidLink) PollGPSIfDue() error {
	if h.pollInterval <= 0 {
		return nil
	}
	now := h.now()
	if !h.lastPoll.IsZero() && now.Sub(h.lastPoll) < h.pollInterval {
		return nil
	}
	h.lastPoll = now
	return h.inner.WriteLine(fmt.Sprintf("#G%d\r\n", h.id))
}
