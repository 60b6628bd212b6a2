// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package modem

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config carries the driver's timing constants and the Hydroid gateway
// framing options, spec §4.7 and §6. Everything else (message schema,
// queue config) is supplied pre-parsed per spec §1's external-collaborator
// boundary; this is the one corner of ambient config the spec leaves in
// scope.
type Config struct {
	// ModemWait is how long do_work waits for an echo before resending,
	// spec §4.7 step 4.
	ModemWait time.Duration `toml:"modem_wait"`

	// Retries caps per-command resends before the head of outQueue is
	// dropped with a RetriesExceeded event.
	Retries int `toml:"retries"`

	// MaxFailsBeforeDead caps cumulative failures without progress before
	// the driver closes and signals ErrModemUnresponsive.
	MaxFailsBeforeDead int `toml:"max_fails_before_dead"`

	// WaitAfterReboot is slept through on a $CAREV,INIT reboot notice.
	WaitAfterReboot time.Duration `toml:"wait_after_reboot"`

	// AllowedMsDiff bounds clock comparisons in $CAREV,AUV and $CACLK,
	// spec §4.7 (default 2000ms).
	AllowedMsDiff time.Duration `toml:"allowed_ms_diff"`

	// GatewayGPSPollInterval is the period of the Hydroid gateway's
	// "#G<id>\r\n" GPS poll, spec §6 (default 30s), for the caller to pass
	// as NewHydroidLink's pollInterval, where zero disables polling. The
	// Driver itself does not read it.
	GatewayGPSPollInterval time.Duration `toml:"gateway_gps_poll_interval"`

	// GatewayID is the modem id for "#M<id>" / "#G<id>" Hydroid gateway
	// framing, for the caller to pass as NewHydroidLink's id. The Driver
	// itself does not read it.
	GatewayID int `toml:"gateway_id"`

	// ResetNVRAM, if set, has PushStartupConfig write "$CCCFG,ALL,0" before
	// anything else, mm_driver.cpp's write_cfg(). Ignored when the driver
	// is talking through a HydroidLink: a full reset also resets the
	// modem's baud rate away from the one the buoy speaks.
	ResetNVRAM bool `toml:"reset_nvram"`

	// NVRAMConfig lists NVRAM key/value pairs PushStartupConfig writes via
	// $CCCFG, in ascending key order, mm_driver.cpp's write_cfg().
	NVRAMConfig map[string]string `toml:"nvram_cfg"`

	// RemusTurnaroundMs, if positive, is pushed to the modem's "TAT" NVRAM
	// key before InitiateRanging(RemusLBLRanging, ...) if it isn't already
	// configured to that value, mm_driver.cpp's handle_initiate_ranging.
	RemusTurnaroundMs int `toml:"remus_turnaround_ms"`
}

// DefaultConfig returns the constants spec §4.7 documents by name.
func DefaultConfig() Config {
	return Config{
		ModemWait:              3 * time.Second,
		Retries:                3,
		MaxFailsBeforeDead:     5,
		WaitAfterReboot:        2 * time.Second,
		AllowedMsDiff:          2000 * time.Millisecond,
		GatewayGPSPollInterval: 30 * time.Second,
	}
}

// tomlConfig mirrors Config's field layout for decoding, following the
// teacher's cmd/dtnd/configuration.go pattern of a dedicated TOML shape
// kept separate from the runtime struct's Go-native types.
type tomlConfig struct {
	ModemWaitSeconds              float64           `toml:"modem_wait_seconds"`
	Retries                       int               `toml:"retries"`
	MaxFailsBeforeDead            int               `toml:"max_fails_before_dead"`
	WaitAfterRebootSeconds        float64           `toml:"wait_after_reboot_seconds"`
	AllowedMsDiff                 int               `toml:"allowed_ms_diff"`
	GatewayGPSPollIntervalSeconds float64           `toml:"gateway_gps_poll_interval_seconds"`
	GatewayID                     int               `toml:"gateway_id"`
	ResetNVRAM                    bool              `toml:"reset_nvram"`
	NVRAMConfig                   map[string]string `toml:"nvram_cfg"`
	RemusTurnaroundMs             int               `toml:"remus_turnaround_ms"`
}

// LoadConfigFile decodes a TOML file into Config, starting from
// DefaultConfig so an omitted key keeps its documented default.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	var tc tomlConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		return Config{}, errors.Wrapf(err, "modem: decoding config %s", path)
	}

	if tc.ModemWaitSeconds != 0 {
		cfg.ModemWait = time.Duration(tc.ModemWaitSeconds * float64(time.Second))
	}
	if tc.Retries != 0 {
		cfg.Retries = tc.Retries
	}
	if tc.MaxFailsBeforeDead != 0 {
		cfg.MaxFailsBeforeDead = tc.MaxFailsBeforeDead
	}
	if tc.WaitAfterRebootSeconds != 0 {
		cfg.WaitAfterReboot = time.Duration(tc.WaitAfterRebootSeconds * float64(time.Second))
	}
	if tc.AllowedMsDiff != 0 {
		cfg.AllowedMsDiff = time.Duration(tc.AllowedMsDiff) * time.Millisecond
	}
	if tc.GatewayGPSPollIntervalSeconds != 0 {
		cfg.GatewayGPSPollInterval = time.Duration(tc.GatewayGPSPollIntervalSeconds * float64(time.Second))
	}
	cfg.GatewayID = tc.GatewayID
	cfg.ResetNVRAM = tc.ResetNVRAM
	cfg.NVRAMConfig = tc.NVRAMConfig
	if tc.RemusTurnaroundMs != 0 {
		cfg.RemusTurnaroundMs = tc.RemusTurnaroundMs
	}

	return cfg, nil
}
