// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package modem

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/MikeGodin/goby-acomms/pkg/nmea"
	"github.com/MikeGodin/goby-acomms/pkg/queue"
	"github.com/MikeGodin/goby-acomms/pkg/queuemgr"
)

// RangingOptions carries the per-ranging-type parameters spec §4.7's
// "Initiation of ranging" paragraph names: a beacon mask for REMUS LBL, up
// to four receive frequencies for narrowband LBL. Unused for the other
// two types.
type RangingOptions struct {
	BeaconMask  []int
	Frequencies []int
}

func intFields(vs []int) []string {
	fields := make([]string, len(vs))
	for i, v := range vs {
		fields[i] = strconv.Itoa(v)
	}
	return fields
}

func (d *Driver) initiateRanging(t RangingType, src, dest uint16, opts RangingOptions) error {
	switch t {
	case ModemTwoWayPing:
		line := nmea.Sentence{Talker: "CC", ID: "MPC", Fields: []string{fmtU16(src), fmtU16(dest)}}.Format()
		d.enqueue(line, "MPC")
		return nil

	case RemusLBLRanging:
		d.maybeConfigureRemusTurnaround()
		line := nmea.Sentence{Talker: "CC", ID: "PDT", Fields: intFields(opts.BeaconMask)}.Format()
		d.enqueue(line, "PDT")
		return nil

	case NarrowbandLBLRanging:
		freqs := opts.Frequencies
		if len(freqs) > 4 {
			freqs = freqs[:4]
		}
		line := nmea.Sentence{Talker: "CC", ID: "PNT", Fields: intFields(freqs)}.Format()
		d.enqueue(line, "PNT")
		return nil

	case ModemOneWaySynchronous:
		return errors.Wrap(ErrRangingOutOfSyncMode, "one-way synchronous ranging is passive, never initiated")

	default:
		return errors.Errorf("modem: unknown ranging type %v", t)
	}
}

// maybeConfigureRemusTurnaround pushes RemusTurnaroundMs to the modem's
// "TAT" NVRAM key before a REMUS LBL ranging request, mirroring
// mm_driver.cpp's handle_initiate_ranging REMUS_LBL_RANGING branch, which
// writes the turnaround-time config ahead of $CCPDT whenever the currently
// known value doesn't already match. The comparison is a direct
// inequality (see handleNVRAMReport's note on the same bug elsewhere).
func (d *Driver) maybeConfigureRemusTurnaround() {
	if d.cfg.RemusTurnaroundMs <= 0 {
		return
	}
	want := strconv.Itoa(d.cfg.RemusTurnaroundMs)
	if d.nvram["TAT"] != want {
		d.writeSingleCfg("TAT", want)
	}
}

func fmtU16(v uint16) string {
	return strconv.FormatUint(uint64(v), 10)
}

func parseU16(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// initiateTransmission implements spec §4.7's "Initiation of data
// transmission": build $CCCYC,seq,src,dest,rate,ack,npkt, pre-fetching up
// to npkt frames from the queue manager and caching them by frame index
// so anticipated $CADRQ rows are served from cache.
func (d *Driver) initiateTransmission(src, dest uint16, rate int, ackRequired bool) error {
	if rate < 0 || rate >= len(PacketRates) {
		return errors.Errorf("modem: rate %d out of range [0,%d]", rate, len(PacketRates)-1)
	}
	pr := PacketRates[rate]

	d.cachedOutgoingFrames = make(map[int][]byte)

	now := d.now()
	var keysSent []queue.FrameKey
	for i := 1; i <= pr.FramesPerPacket; i++ {
		frame, keys := d.buildFrame(dest, pr.BytesPerFrame, now, ackRequired)
		d.cachedOutgoingFrames[i] = frame
		keysSent = append(keysSent, keys...)
	}

	ackFlag := 0
	if ackRequired {
		ackFlag = 1
	}
	seq := d.cycleSeq
	line := nmea.Sentence{
		Talker: "CC",
		ID:     "CYC",
		Fields: []string{strconv.Itoa(seq), fmtU16(src), fmtU16(dest), strconv.Itoa(rate), strconv.Itoa(ackFlag), strconv.Itoa(pr.FramesPerPacket)},
	}.Format()
	d.enqueue(line, "CYC")

	if ackRequired && len(keysSent) > 0 {
		d.framesAwaitingAck[seq] = true
		d.qm.WaitForAck(seq, keysSent)
	}
	d.cycleSeq++
	return nil
}

// initiateMiniTransmission implements mm_driver.cpp's handle_initiate_
// transmission SLOT_MINI branch: a $CCMUC mini-packet carries a single
// 13-bit-packed, 2-byte payload sent immediately, bypassing the
// $CCCYC/$CADRQ multi-frame cycle entirely and carrying no ack. The top 3
// bits of the first byte are reserved (13 bits fit in 2 bytes with 3 to
// spare) and are masked off with a warning if the queued data doesn't
// already fit within them.
func (d *Driver) initiateMiniTransmission(src, dest uint16) error {
	req := queuemgr.Request{Dest: &dest, MaxBytes: MiniPacketSize}
	entry, key, err := d.qm.FindNextSender(req, d.now())
	if err != nil {
		return ErrNoDataAvailable
	}

	payload := make([]byte, MiniPacketSize)
	copy(payload, entry.Bytes)
	if payload[0]&0xE0 != 0 {
		d.log.WithField("dest", dest).Warn("modem: mini-packet payload overflows 13 bits, truncating")
		payload[0] &= 0x1F
	}

	line := nmea.Sentence{
		Talker: "CC",
		ID:     "MUC",
		Fields: []string{fmtU16(src), fmtU16(dest), hex.EncodeToString(payload)},
	}.Format()
	d.enqueue(line, "MUC")

	if q, ok := d.qm.Queue(key); ok {
		q.RecordSend(dest, d.now())
		q.PopSentNoAck(entry.Key)
	}
	return nil
}

// buildFrame pulls queued user frames addressed to dest from the queue
// manager until budget bytes is filled and stitches them into one modem
// frame, spec §4.5/§4.7. Entries not requiring an ack are popped from
// their queue immediately, fire-and-forget; ack-required entries stay
// queued until HandleAck (via WaitForAck bookkeeping the caller sets up).
func (d *Driver) buildFrame(dest uint16, budget int, now time.Time, ackRequired bool) ([]byte, []queue.FrameKey) {
	var userFrames [][]byte
	var keys []queue.FrameKey
	used := 0
	seen := make(map[queue.FrameKey]bool)

	for {
		req := queuemgr.Request{Dest: &dest, MaxBytes: budget - used - 1}
		if req.MaxBytes <= 0 {
			break
		}
		entry, gotKey, err := d.qm.FindNextSender(req, now)
		if err != nil {
			break
		}
		if seen[entry.Key] {
			// Nothing else eligible for dest; without this the same
			// still-queued (ack-pending) entry would get selected again.
			break
		}
		seen[entry.Key] = true
		uf := queuemgr.PrepareUserFrame(gotKey, entry)
		if used+1+len(uf) > budget {
			break
		}
		userFrames = append(userFrames, uf)
		keys = append(keys, entry.Key)
		used += 1 + len(uf)
		if q, ok := d.qm.Queue(gotKey); ok {
			q.RecordSend(dest, now)
			if !ackRequired {
				q.PopSentNoAck(entry.Key)
			}
		}
	}

	if len(userFrames) == 0 {
		return nil, nil
	}
	frame, err := queuemgr.StitchFrame(userFrames, budget)
	if err != nil {
		d.log.WithError(err).Warn("modem: failed to stitch outgoing frame")
		return nil, nil
	}
	return frame, keys
}
