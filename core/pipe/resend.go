/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package pipe

import (
	"time"

	"github.com/spiderwiz/fabric/cmn/nlog"
)

// DefaultResendRatePerMin is the default throttle for replaying skipped
// ranges (spec §4.6: "rate-moderated by a configurable lines-per-minute
// throttle (default 30,000)").
const DefaultResendRatePerMin = 30000

// Retransmit is the owner callback invoked once per resent payload.
type Retransmit func(index uint64, payload string) error

// ResendPending replays every currently pending skipped range, reading
// each item from disk/memory via Get-compatible indexed lookup, rate-
// moderated, and clears a range from the sidecar only once fully resent.
func (p *Pipe) ResendPending(ratePerMin int, retransmit Retransmit) {
	if ratePerMin <= 0 {
		ratePerMin = DefaultResendRatePerMin
	}
	interval := time.Minute / time.Duration(ratePerMin)

	for _, r := range p.SkippedRanges() {
		if err := p.resendRange(r, interval, retransmit); err != nil {
			nlog.Warningf("pipe: resend range %d-%d: %v", r.From, r.To, err)
			continue
		}
		p.ClearRange(r)
	}
}

func (p *Pipe) resendRange(r Range, interval time.Duration, retransmit Retransmit) error {
	for idx := r.From; idx < r.To; idx++ {
		p.mu.Lock()
		payload, err := p.lookupLocked(idx)
		p.mu.Unlock()
		if err != nil {
			return err
		}
		if err := retransmit(idx, payload); err != nil {
			return err
		}
		if interval > 0 {
			time.Sleep(interval)
		}
	}
	return nil
}

// lookupLocked finds a previously-put item by its modular index, whether
// it's still in the in-memory block or already flushed to a file. Unlike
// Get it does not advance nextGet: resends never consume the cursor.
func (p *Pipe) lookupLocked(index uint64) (string, error) {
	if index >= p.blockStart {
		offset := index - p.blockStart
		if offset < uint64(len(p.block)) {
			return p.block[offset], nil
		}
	}
	return p.readFromFileLocked(index)
}
