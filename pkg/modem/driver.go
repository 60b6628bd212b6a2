// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package modem implements the WHOI Micro-Modem driver state machine,
// spec §4.7: a line-oriented request/response protocol engine over a
// serial link, cycle and ranging orchestration, retry/backoff and clock
// synchronisation. The core runs single-threaded cooperative (spec §5):
// Tick is the one mutating entrypoint, mirroring the source's do_work.
package modem

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/MikeGodin/goby-acomms/pkg/nmea"
	"github.com/MikeGodin/goby-acomms/pkg/queuemgr"
)

// outboundCmd is one entry of the driver's outQueue: a formatted NMEA line
// plus the talker-stripped sentence id its echo must match, spec §4.7
// step 3 ("$CCCFG" → "$CACFG").
type outboundCmd struct {
	line     string
	echoID   string
	attempts int
}

// pendingTOA tracks a one-way synchronous ranging exchange awaiting a
// $CARXD/$CAMUA fold-in; a $CARXP discards it, spec §4.7's $CARXD/$CAMUA
// and $CARXP rows.
type pendingTOA struct {
	src, dest uint16
	requested time.Time
}

// EventCallback is invoked for named driver-lifecycle occurrences (reboot,
// retries exceeded, ...) that spec §7 doesn't treat as errors escaping
// Tick.
type EventCallback func(Event)

// RangingCallback is invoked once a ranging exchange completes, spec §8
// scenario 6.
type RangingCallback func(RangingReply)

// Driver is the modem driver state machine, spec §3's "Driver state"
// fields given Go types. All fields are process-local and reset by
// Startup.
type Driver struct {
	cfg  Config
	link Link
	qm   *queuemgr.Manager
	now  func() time.Time

	startupDone     bool
	clockSet        bool
	waitingForModem bool
	lastWriteTime   time.Time
	presentFail     int
	globalFail      int

	nvram         map[string]string
	nvramExpected map[string]string

	clkMode         ClkMode
	lastRangingType RangingType
	pendingTOA      *pendingTOA

	cachedOutgoingFrames map[int][]byte
	framesAwaitingAck    map[int]bool

	outQueue []outboundCmd
	closed   bool

	nodeID       uint16
	cycleSeq     int
	lastRxBudget int

	onEvent   EventCallback
	onRanging RangingCallback

	log *logrus.Entry
}

// Option configures a new Driver.
type Option func(*Driver)

// WithClock injects a monotonic now function; defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// WithEventCallback sets the callback for driver lifecycle events (reboot,
// retries exceeded, and so on).
func WithEventCallback(fn EventCallback) Option {
	return func(d *Driver) { d.onEvent = fn }
}

// WithRangingCallback sets the callback invoked when a ranging exchange
// completes.
func WithRangingCallback(fn RangingCallback) Option {
	return func(d *Driver) { d.onRanging = fn }
}

// WithNodeID sets this driver's own modem id, used to tell apart cycles we
// initiated from ones we're merely party to, spec §4.7's $CACYC row.
func WithNodeID(id uint16) Option {
	return func(d *Driver) { d.nodeID = id }
}

// NewDriver creates a Driver over link using cfg, dispatching queue
// selection and ack bookkeeping to qm.
func NewDriver(cfg Config, link Link, qm *queuemgr.Manager, opts ...Option) *Driver {
	d := &Driver{
		cfg:  cfg,
		link: link,
		qm:   qm,
		now:  time.Now,
		log:  logrus.WithField("component", "modem"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.reset()
	return d
}

func (d *Driver) reset() {
	d.startupDone = false
	d.clockSet = false
	d.waitingForModem = false
	d.lastWriteTime = time.Time{}
	d.presentFail = 0
	d.globalFail = 0
	d.nvram = make(map[string]string)
	d.nvramExpected = make(map[string]string)
	d.clkMode = ClkNoSync
	d.lastRangingType = ModemOneWaySynchronous
	d.pendingTOA = nil
	d.cachedOutgoingFrames = make(map[int][]byte)
	d.framesAwaitingAck = make(map[int]bool)
	d.outQueue = nil
	d.closed = false
	d.cycleSeq = 0
	d.lastRxBudget = PacketRates[0].BytesPerFrame
}

// Startup resets all process-local state, spec §3: "all process-local,
// reset by startup".
func (d *Driver) Startup() {
	d.reset()
	d.startupDone = true
	d.log.Info("modem: startup")
}

// Shutdown is synchronous and idempotent: it closes the link, marks
// startupDone false, and drops the outbound queue without invoking
// callbacks for discarded entries, spec §5.
func (d *Driver) Shutdown() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.startupDone = false
	d.outQueue = nil
	return d.link.Close()
}

func (d *Driver) emit(name, detail string) {
	if d.onEvent != nil {
		d.onEvent(Event{Name: name, Detail: detail})
	}
}

// enqueue appends a formatted command to outQueue, spec §4.7 step 1.
func (d *Driver) enqueue(line, echoID string) {
	d.outQueue = append(d.outQueue, outboundCmd{line: line, echoID: echoID})
}

// Tick drives one do_work pass: it reads and dispatches any buffered
// inbound lines, then advances the outQueue write/retry state machine,
// spec §4.7 steps 2-5. Per-sentence dispatch errors are logged and
// swallowed to keep the loop alive (spec §7); only ErrModemUnresponsive
// escapes.
func (d *Driver) Tick(now time.Time) error {
	if !d.startupDone {
		return ErrNotStarted
	}

	for {
		line, ok, err := d.link.ReadLine()
		if err != nil {
			d.log.WithError(err).Warn("modem: link read error")
			break
		}
		if !ok {
			break
		}
		if derr := d.dispatchLine(line, now); derr != nil {
			if errors.Is(derr, ErrModemUnresponsive) {
				return derr
			}
			d.log.WithError(derr).WithField("line", line).Debug("modem: dispatch error")
		}
	}

	if gw, ok := d.link.(*HydroidLink); ok {
		if err := gw.PollGPSIfDue(); err != nil {
			d.log.WithError(err).Warn("modem: gps poll write failed")
		}
	}

	return d.pumpOutQueue(now)
}

func (d *Driver) pumpOutQueue(now time.Time) error {
	if len(d.outQueue) == 0 {
		return nil
	}

	if !d.waitingForModem {
		head := d.outQueue[0]
		if err := d.link.WriteLine(head.line); err != nil {
			return errors.Wrap(err, "modem: write")
		}
		d.outQueue[0].attempts++
		d.waitingForModem = true
		d.lastWriteTime = now
		return nil
	}

	if now.Sub(d.lastWriteTime) < d.cfg.ModemWait {
		return nil
	}

	return d.failHead(now)
}

// failHead advances retry accounting for the head of outQueue after a
// timeout or a $CAERR rejection, spec §4.7 steps 4-5.
func (d *Driver) failHead(now time.Time) error {
	d.presentFail++
	d.globalFail++
	d.waitingForModem = false

	if d.presentFail > d.cfg.Retries {
		dropped := d.outQueue[0]
		d.outQueue = d.outQueue[1:]
		d.presentFail = 0
		d.emit("retries_exceeded", dropped.line)
		d.log.WithError(ErrRetriesExceeded).WithField("line", dropped.line).Warn("modem: dropping command")
	}

	if d.globalFail >= d.cfg.MaxFailsBeforeDead {
		d.log.Error("modem: max fails before dead reached, closing link")
		_ = d.Shutdown()
		d.emit("modem_unresponsive", "")
		return ErrModemUnresponsive
	}

	if len(d.outQueue) > 0 {
		if err := d.link.WriteLine(d.outQueue[0].line); err != nil {
			return errors.Wrap(err, "modem: resend")
		}
		d.outQueue[0].attempts++
		d.waitingForModem = true
		d.lastWriteTime = now
	}
	return nil
}

// matchEcho pops the head of outQueue if its expected echo id matches id,
// resetting retry accounting, spec §4.7 step 3.
func (d *Driver) matchEcho(id string) bool {
	if len(d.outQueue) == 0 || d.outQueue[0].echoID != id {
		return false
	}
	d.outQueue = d.outQueue[1:]
	d.presentFail = 0
	d.waitingForModem = false
	return true
}

func (d *Driver) dispatchLine(line string, now time.Time) error {
	sentence, err := nmea.Parse(line, nmea.ModeValidate)
	if err != nil {
		d.log.WithError(err).WithField("line", line).Debug("modem: nmea parse error")
		return nil
	}
	return d.dispatch(sentence, now)
}

// InitiateRanging performs the ranging initiation documented in spec
// §4.7's final paragraph. ModemOneWaySynchronous is passive and returns
// ErrRangingOutOfSyncMode immediately since it is never initiated.
func (d *Driver) InitiateRanging(t RangingType, src, dest uint16, opts RangingOptions) error {
	if !d.startupDone {
		return ErrNotStarted
	}
	d.lastRangingType = t
	return d.initiateRanging(t, src, dest, opts)
}

// InitiateTransmission builds and enqueues $CCCYC for a new cycle, spec
// §4.7's "Initiation of data transmission". It pre-fetches up to npkt
// frames from the queue manager and caches them by frame index so
// incoming $CADRQ rows are served from cache.
func (d *Driver) InitiateTransmission(src, dest uint16, rate int, ackRequired bool) error {
	if !d.startupDone {
		return ErrNotStarted
	}
	return d.initiateTransmission(src, dest, rate, ackRequired)
}

// InitiateMiniTransmission sends one queued frame to dest as a $CCMUC
// mini-packet: a single 2-byte payload transmitted immediately, bypassing
// the $CCCYC/$CADRQ cycle and carrying no ack, mm_driver.cpp's
// handle_initiate_transmission SLOT_MINI branch. It returns
// ErrNoDataAvailable if nothing is queued for dest.
func (d *Driver) InitiateMiniTransmission(src, dest uint16) error {
	if !d.startupDone {
		return ErrNotStarted
	}
	return d.initiateMiniTransmission(src, dest)
}

// writeSingleCfg enqueues one $CCCFG,key,value and records the value we
// expect back for NVRAM drift detection, mirroring mm_driver.cpp's
// write_single_cfg updating its own map immediately "so we know various
// values immediately".
func (d *Driver) writeSingleCfg(key, value string) {
	line := nmea.Sentence{Talker: "CC", ID: "CFG", Fields: []string{key, value}}.Format()
	d.enqueue(line, "CFG")
	d.nvram[key] = value
	d.nvramExpected[key] = value
}

// PushStartupConfig enqueues this node's NVRAM configuration the way
// mm_driver.cpp's write_cfg/query_all_cfg do at the end of startup(): an
// optional full reset (skipped over a Hydroid gateway link), this node's
// SRC id, every configured NVRAM key in ascending order, then a query for
// the modem's complete NVRAM map so later drift can be detected even
// against values this driver never itself set. Callers that want this
// behavior invoke it once after Startup and before the first Tick.
func (d *Driver) PushStartupConfig() {
	if _, hydroid := d.link.(*HydroidLink); d.cfg.ResetNVRAM && !hydroid {
		d.writeSingleCfg("ALL", "0")
	}

	d.writeSingleCfg("SRC", fmtU16(d.nodeID))

	keys := make([]string, 0, len(d.cfg.NVRAMConfig))
	for k := range d.cfg.NVRAMConfig {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		d.writeSingleCfg(k, d.cfg.NVRAMConfig[k])
	}

	line := nmea.Sentence{Talker: "CC", ID: "CFQ", Fields: []string{"ALL"}}.Format()
	d.enqueue(line, "CFQ")
}

// SetClock busy-waits for the local sub-second to land in [1ms,50ms] past
// the top of the second, then enqueues $CCCLK, spec §4.7's "Clock
// setting" (the WHOI sync-nav alignment requirement).
func (d *Driver) SetClock() {
	for {
		sub := d.now().Nanosecond() / int(time.Millisecond)
		if sub >= 1 && sub <= 50 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	t := d.now()
	d.enqueue(formatSetClock(t), "CLK")
}
