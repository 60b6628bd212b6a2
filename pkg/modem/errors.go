// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package modem

import "github.com/pkg/errors"

// Sentinel errors per the driver_*/ranging_* taxonomy, spec §7.
var (
	// ErrModemUnresponsive is returned by Tick when MaxFailsBeforeDead is
	// reached; it is the only driver_* error that escapes Tick rather
	// than being logged and absorbed.
	ErrModemUnresponsive = errors.New("driver_unresponsive")

	// ErrRetriesExceeded marks the RetriesExceeded event fired when a
	// command is dropped from outQueue after Config.Retries resends.
	ErrRetriesExceeded = errors.New("driver_retries_exceeded")

	// ErrNotStarted is returned by operations attempted before Startup.
	ErrNotStarted = errors.New("driver_not_started")

	// ErrRangingOutOfSyncMode is the discard reason for a TOA report
	// received while ClkMode isn't PPS-disciplined, spec §4.7.
	ErrRangingOutOfSyncMode = errors.New("ranging_out_of_sync_mode")

	// ErrStaleTOA is the discard reason reported when a $CARXP arrives
	// while a TOA is still pending; that pending TOA is dropped.
	ErrStaleTOA = errors.New("ranging_stale_toa")

	// ErrNoDataAvailable is returned by InitiateMiniTransmission when the
	// queue manager has nothing queued for dest, mirroring
	// handle_initiate_transmission's SLOT_MINI branch silently doing
	// nothing when the outbound queue comes back empty.
	ErrNoDataAvailable = errors.New("no_data_available")
)
