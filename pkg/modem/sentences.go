// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package modem

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/MikeGodin/goby-acomms/pkg/nmea"
)

// SetExpectedNVRAM records the value startup configuration expects key to
// hold, so the next matching $CACFG/$CACFQ can detect drift between what
// was requested and what the modem actually reports.
func (d *Driver) SetExpectedNVRAM(key, value string) {
	d.nvramExpected[key] = value
}

// dispatch routes one parsed inbound sentence per the table in spec §4.7.
// Any successfully parsed sentence resets globalFail: the retry cap is on
// total failures without progress, and hearing from the modem at all is
// progress, mirroring mm_driver.cpp's process_receive resetting
// global_fail_count_ unconditionally as its first statement. Every
// CA-talker sentence then first tries to match the head of outQueue's
// expected echo (step 3), except $CAERR which instead advances retry
// accounting (step 5).
func (d *Driver) dispatch(s nmea.Sentence, now time.Time) error {
	d.globalFail = 0

	if s.ID == "ERR" {
		return d.failHead(now)
	}
	if s.Talker == "CA" {
		d.matchEcho(s.ID)
	}

	switch s.ID {
	case "REV":
		return d.handleREV(s, now)
	case "CFG", "CFQ":
		return d.handleNVRAMReport(s)
	case "CLK":
		return d.handleCLK(s, now)
	case "DRQ":
		return d.handleDRQ(s)
	case "CYC":
		return d.handleCYC(s)
	case "RXD", "MUA":
		return d.handleRXD(s)
	case "ACK":
		return d.handleACK(s)
	case "MPR":
		return d.handleRangingReply(ModemTwoWayPing, s)
	case "TTA":
		return d.handleRangingReply(d.lastRangingType, s)
	case "TOA":
		return d.handleTOA(s)
	case "XST":
		return d.handleXST(s)
	case "RXP":
		return d.handleRXP(s)
	default:
		return nil
	}
}

func (d *Driver) handleREV(s nmea.Sentence, now time.Time) error {
	if len(s.Fields) == 0 {
		return nil
	}
	switch s.Fields[0] {
	case "INIT":
		d.emit("reboot", "")
		time.Sleep(d.cfg.WaitAfterReboot)
		d.clockSet = false
		return nil

	case "AUV":
		if len(s.Fields) < 2 {
			return nil
		}
		reportedSec, err := parseFloat(s.Fields[1])
		if err != nil {
			return err
		}
		reported := time.Unix(0, int64(reportedSec*float64(time.Second)))
		if absDuration(now.Sub(reported)) > d.cfg.AllowedMsDiff {
			d.clockSet = false
		}
		return nil
	}
	return nil
}

// handleNVRAMReport updates the NVRAM shadow map for $CACFG/$CACFQ and
// checks for drift against SetExpectedNVRAM, spec §9's Open Question
// about the operator-precedence bug: the comparison below is a direct
// inequality, not a negated equality, on purpose.
func (d *Driver) handleNVRAMReport(s nmea.Sentence) error {
	if len(s.Fields) < 2 {
		return nil
	}
	key, value := s.Fields[0], s.Fields[1]
	d.nvram[key] = value

	if expected, ok := d.nvramExpected[key]; ok {
		if d.nvram[key] != expected {
			d.emit("nvram_drift", key)
		}
	}
	return nil
}

func (d *Driver) handleCLK(s nmea.Sentence, now time.Time) error {
	if len(s.Fields) < 6 {
		return nil
	}
	year, err1 := strconv.Atoi(s.Fields[0])
	month, err2 := strconv.Atoi(s.Fields[1])
	day, err3 := strconv.Atoi(s.Fields[2])
	hour, err4 := strconv.Atoi(s.Fields[3])
	min, err5 := strconv.Atoi(s.Fields[4])
	sec, err6 := strconv.Atoi(s.Fields[5])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil {
		return nil
	}
	reported := time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
	if absDuration(now.Sub(reported)) <= d.cfg.AllowedMsDiff {
		d.clockSet = true
	}
	return nil
}

// handleDRQ answers a data request from cache, spec §8 scenario 3. A
// missing cache entry gets an empty payload to silence further DRQs for
// that frame.
func (d *Driver) handleDRQ(s nmea.Sentence) error {
	if len(s.Fields) < 4 {
		return nil
	}
	src, err := parseU16(s.Fields[1])
	if err != nil {
		return err
	}
	dest, err := parseU16(s.Fields[2])
	if err != nil {
		return err
	}
	frameNo, err := strconv.Atoi(s.Fields[3])
	if err != nil {
		return err
	}

	payloadHex := ""
	if frame, ok := d.cachedOutgoingFrames[frameNo]; ok {
		payloadHex = hex.EncodeToString(frame)
	}

	line := nmea.Sentence{
		Talker: "CC",
		ID:     "TXD",
		Fields: []string{fmtU16(src), fmtU16(dest), strconv.Itoa(frameNo), payloadHex},
	}.Format()
	d.enqueue(line, "TXD")
	return nil
}

// handleCYC tracks an observed cycle initiation. When it wasn't us who
// started it, cache enough outgoing frames to answer anticipated DRQs,
// spec §4.7's $CACYC row; the bytes-per-frame of the rate used is also
// remembered for unstitching subsequent receives at that rate.
func (d *Driver) handleCYC(s nmea.Sentence) error {
	if len(s.Fields) < 6 {
		return nil
	}
	src, err := parseU16(s.Fields[1])
	if err != nil {
		return err
	}
	dest, err := parseU16(s.Fields[2])
	if err != nil {
		return err
	}
	rate, err := strconv.Atoi(s.Fields[3])
	if err != nil || rate < 0 || rate >= len(PacketRates) {
		return nil
	}
	ackFlag, err := strconv.Atoi(s.Fields[4])
	if err != nil {
		return err
	}
	npkt, err := strconv.Atoi(s.Fields[5])
	if err != nil {
		return err
	}

	d.lastRxBudget = PacketRates[rate].BytesPerFrame

	if src != d.nodeID {
		now := d.now()
		for i := 1; i <= npkt; i++ {
			if _, ok := d.cachedOutgoingFrames[i]; ok {
				continue
			}
			frame, _ := d.buildFrame(dest, PacketRates[rate].BytesPerFrame, now, ackFlag != 0)
			if frame != nil {
				d.cachedOutgoingFrames[i] = frame
			}
		}
	}
	return nil
}

// handleRXD delivers an inbound user frame upward through the queue
// manager, folding in any pending one-way-sync TOA, spec §4.7's
// $CARXD/$CAMUA row. The two sentences don't share a field layout:
// $CARXD carries (src, dest, ack_requested, frame#, hexdata), while
// $CAMUA (the mini-packet receive report) carries only (src, dest,
// hexdata) with no frame number or ack flag.
func (d *Driver) handleRXD(s nmea.Sentence) error {
	var payloadField int
	switch s.ID {
	case "MUA":
		payloadField = 2
	default: // "RXD"
		payloadField = 4
	}
	if len(s.Fields) <= payloadField {
		return nil
	}
	payload, err := hex.DecodeString(s.Fields[payloadField])
	if err != nil {
		return err
	}

	if err := d.qm.ReceiveModemFrame(payload, d.lastRxBudget); err != nil {
		d.log.WithError(err).Debug("modem: receive frame had malformed stitching")
	}

	if d.pendingTOA != nil {
		reply := RangingReply{
			Type:              ModemOneWaySynchronous,
			Src:               d.pendingTOA.src,
			Dest:              d.pendingTOA.dest,
			OneWayTravelTimes: []float64{d.now().Sub(d.pendingTOA.requested).Seconds()},
		}
		d.pendingTOA = nil
		if d.onRanging != nil {
			d.onRanging(reply)
		}
	}
	return nil
}

func (d *Driver) handleACK(s nmea.Sentence) error {
	if len(s.Fields) < 3 {
		return nil
	}
	src, err := parseU16(s.Fields[0])
	if err != nil {
		return err
	}
	dest, err := parseU16(s.Fields[1])
	if err != nil {
		return err
	}
	frameNo, err := strconv.Atoi(s.Fields[2])
	if err != nil {
		return err
	}

	delete(d.framesAwaitingAck, frameNo)
	d.qm.HandleAck(frameNo, src, dest)
	return nil
}

// handleRangingReply covers $CAMPR and $CATTA, spec §4.7's row for those
// two sentences: reply fields carry (responder, requester, times...),
// the reverse of how the original request named src/dest.
func (d *Driver) handleRangingReply(t RangingType, s nmea.Sentence) error {
	if len(s.Fields) < 3 {
		return nil
	}
	origDest, err := parseU16(s.Fields[0])
	if err != nil {
		return err
	}
	origSrc, err := parseU16(s.Fields[1])
	if err != nil {
		return err
	}

	var times []float64
	for _, f := range s.Fields[2:] {
		v, ferr := parseFloat(f)
		if ferr != nil {
			continue
		}
		times = append(times, v)
	}

	if d.onRanging != nil {
		d.onRanging(RangingReply{Type: t, Src: origSrc, Dest: origDest, OneWayTravelTimes: times})
	}
	return nil
}

// handleTOA records a pending one-way-sync TOA for the next $CARXD/$CAMUA
// to fold in, but only while the clock is PPS-disciplined, spec §4.7.
func (d *Driver) handleTOA(s nmea.Sentence) error {
	if !d.clkMode.ppsDisciplined() {
		return ErrRangingOutOfSyncMode
	}
	if len(s.Fields) < 2 {
		return nil
	}
	origDest, err := parseU16(s.Fields[0])
	if err != nil {
		return err
	}
	origSrc, err := parseU16(s.Fields[1])
	if err != nil {
		return err
	}
	d.pendingTOA = &pendingTOA{src: origSrc, dest: origDest, requested: d.now()}
	return nil
}

// handleXST records the transmit-side clock discipline mode reported
// after a transmission, spec §4.7's $CAXST row.
func (d *Driver) handleXST(s nmea.Sentence) error {
	if len(s.Fields) == 0 {
		return nil
	}
	code, err := strconv.Atoi(s.Fields[len(s.Fields)-1])
	if err != nil || code < 0 || code > int(ClkSyncToPPSAndCCClkBad) {
		return nil
	}
	d.clkMode = ClkMode(code)
	return nil
}

// handleRXP discards a stale pending TOA, spec §4.7's $CARXP row.
func (d *Driver) handleRXP(nmea.Sentence) error {
	if d.pendingTOA != nil {
		d.pendingTOA = nil
		return ErrStaleTOA
	}
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// formatSetClock renders $CCCLK for SetClock.
func formatSetClock(t time.Time) string {
	t = t.UTC()
	return nmea.Sentence{
		Talker: "CC",
		ID:     "CLK",
		Fields: []string{
			strconv.Itoa(t.Year()),
			strconv.Itoa(int(t.Month())),
			strconv.Itoa(t.Day()),
			strconv.Itoa(t.Hour()),
			strconv.Itoa(t.Minute()),
			strconv.Itoa(t.Second()),
		},
	}.Format()
}
