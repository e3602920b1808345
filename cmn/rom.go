// Package cmn provides common configuration types and read-mostly runtime
// tuning knobs shared by every core package.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import "time"

// readMostly caches the handful of tuning knobs that are read on every hot
// path (sequencer resets, pipe resends, reconnect backoff) so that callers
// don't have to take the config's lock on every access. Refreshed whenever
// the config is (re)loaded.
type readMostly struct {
	reconnectSecs         int
	resetRatePerMin       int
	resetRequestWindowSec int
	streamRatePerSec      int
	obsolescenceHrs       int
	testingEnv            bool
}

var Rom readMostly

func (rom *readMostly) Set(cfg *Config) {
	rom.reconnectSecs = cfg.Tunables.ReconnectSeconds
	rom.resetRatePerMin = cfg.Tunables.ResetRatePerMin
	rom.resetRequestWindowSec = cfg.Tunables.ResetRequestWindowSeconds
	rom.streamRatePerSec = cfg.Tunables.StreamRatePerSec
	rom.obsolescenceHrs = cfg.Tunables.ObsolescenceHours
}

func (rom *readMostly) ReconnectBackoff() time.Duration {
	return time.Duration(rom.reconnectSecs) * time.Second
}
func (rom *readMostly) ResetRatePerMin() int  { return rom.resetRatePerMin }
func (rom *readMostly) StreamRatePerSec() int { return rom.streamRatePerSec }
func (rom *readMostly) ObsolescenceWindow() time.Duration {
	return time.Duration(rom.obsolescenceHrs) * time.Hour
}

// ResetRequestWindow is the rate-limit period for repeated out-of-sequence
// reset requests for the same (channel, ObjectCode) (spec §4.3: "rate-
// limited to once per 3 min per code per channel" — configurable here,
// defaulting to that literal value).
func (rom *readMostly) ResetRequestWindow() time.Duration {
	return time.Duration(rom.resetRequestWindowSec) * time.Second
}
func (rom *readMostly) TestingEnv() bool { return rom.testingEnv }

func init() {
	Rom.reconnectSecs = 60
	Rom.resetRatePerMin = 30000
	Rom.resetRequestWindowSec = 180
	Rom.streamRatePerSec = 100
	Rom.obsolescenceHrs = 24
}
